package domain

import "time"

// FlowState is the overall state of a remote job flow as reported by the
// cluster service.
type FlowState string

const (
	FlowStarting      FlowState = "STARTING"
	FlowBootstrapping FlowState = "BOOTSTRAPPING"
	FlowRunning       FlowState = "RUNNING"
	FlowWaiting       FlowState = "WAITING"
	FlowShuttingDown  FlowState = "SHUTTING_DOWN"
	FlowCompleted     FlowState = "COMPLETED"
	FlowFailed        FlowState = "FAILED"
	FlowTerminated    FlowState = "TERMINATED"
)

// Alive reports whether the flow can still make progress. Flows are created
// keep-alive, so they sit in WAITING between steps; once a flow reports
// COMPLETED without the completion marker having been observed, no further
// output will ever appear and the flow counts as dead.
func (s FlowState) Alive() bool {
	switch s {
	case FlowShuttingDown, FlowCompleted, FlowFailed, FlowTerminated:
		return false
	}
	return true
}

// StepState is the state of a single remote step.
type StepState string

const (
	StepPending   StepState = "PENDING"
	StepRunning   StepState = "RUNNING"
	StepCompleted StepState = "COMPLETED"
	StepFailed    StepState = "FAILED"
	StepCancelled StepState = "CANCELLED"
)

// StepStatus is the reported status of one step, positionally ordered: two
// entries per iteration, rank then process, in submission order.
type StepStatus struct {
	State     StepState
	StartTime time.Time
	EndTime   time.Time
}

// FlowStatus is the result of describing a remote job flow.
type FlowStatus struct {
	State FlowState
	Steps []StepStatus
}

// IterationForStepOffset maps a step slot in the remote flow's step list to
// the iteration it belongs to. Load-bearing for completion detection: the
// step list must be read in submission order for this mapping to hold.
func IterationForStepOffset(offset int) int {
	return offset / StepsPerIteration
}

// LastCompletedProcessIteration returns the iteration index of the most
// recent fully-completed process step, or -1 if no iteration has one.
//
// The scan walks process slots sequentially from the start and stops at the
// first non-completed entry; a later step being complete does not count if
// an earlier one is not, since only the positional order identifies which
// iteration a status belongs to.
func LastCompletedProcessIteration(steps []StepStatus) int {
	i := 1
	for i < len(steps) && steps[i].State == StepCompleted {
		i += StepsPerIteration
	}
	return IterationForStepOffset(i) - 1
}

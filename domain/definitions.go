// Package domain provides definitions for grading Jobs, their remote steps,
// and the step-offset bookkeeping used for completion detection.
package domain

import "fmt"

// Every iteration occupies two step slots in submission order: the rank step
// at the even offset and the process step at the odd offset.
const StepsPerIteration = 2

// CompletionMarker is the literal prefix of the first record of a finished
// process step's primary output. It is the sole completion signal.
const CompletionMarker = "FinalRank"

// Job is one submitter's tracked job. The driver owning the Job is its only
// writer. LastOutputLocation is set iff IterationNo > 0.
type Job struct {
	SubmitterID        string
	FlowID             string // remote job handle, empty when none exists
	IterationNo        int
	InputLocation      string
	LastOutputLocation string
	State              Status
}

func (j *Job) String() string {
	return fmt.Sprintf("submitter:%s, flow:%s, iter:%d, state:%s", j.SubmitterID, j.FlowID, j.IterationNo, j.State)
}

// Step describes one remote streaming step. Immutable once built.
type Step struct {
	Mapper      string
	Reducer     string
	Input       string
	Output      string
	NumMappers  int
	NumReducers int
}

// IterationPlan is the (rank, process) step pair for one iteration.
// Process.Input must equal Rank.Output.
type IterationPlan struct {
	Rank    Step
	Process Step
}

// Validate an IterationPlan, returning an error if the process step is not
// fed by the rank step.
func (p *IterationPlan) Validate() error {
	if p.Process.Input != p.Rank.Output {
		return fmt.Errorf("invalid iteration plan: process input %q != rank output %q", p.Process.Input, p.Rank.Output)
	}
	return nil
}

// Status for a Job's lifecycle
type Status int

const (
	// Created, nothing submitted to the remote service yet
	New Status = iota

	// Remote job flow has been created
	Submitted

	// Remote job flow handle exists and steps are in flight
	Running

	// Completion marker observed. Terminal.
	Done

	// Remote flow died or the submitter's visit failed. Terminal unless the
	// driver is explicitly reset.
	Failed

	// Remote flow was killed on request. Terminal.
	Terminated
)

func (s Status) String() string {
	asString := [6]string{"New", "Submitted", "Running", "Done", "Failed", "Terminated"}
	return asString[s]
}

func (s Status) Terminal() bool {
	return s == Done || s == Failed || s == Terminated
}

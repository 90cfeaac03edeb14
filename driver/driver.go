// Package driver owns one submitter's job lifecycle: the iteration counter,
// the remote flow handle, and the state transitions between them. A
// JobDriver holds cluster and storage capabilities by composition and is
// the only writer to its Job record.
package driver

import (
	"bytes"
	"fmt"
	"time"

	uuid "github.com/nu7hatch/gouuid"
	log "github.com/sirupsen/logrus"

	"github.com/rankmaniac/rankmaniac/cluster"
	"github.com/rankmaniac/rankmaniac/common/errors"
	"github.com/rankmaniac/rankmaniac/domain"
	"github.com/rankmaniac/rankmaniac/storage"
)

const DefaultInstanceCount = 10

type JobDriver struct {
	client cluster.Client
	store  storage.Store
	job    domain.Job

	instanceCount int
}

// New creates a driver for a submitter whose first rank input is the given
// location, relative to the submitter's namespace.
func New(client cluster.Client, store storage.Store, submitterID, input string) *JobDriver {
	return &JobDriver{
		client: client,
		store:  store,
		job: domain.Job{
			SubmitterID:   submitterID,
			InputLocation: storage.JoinKey(submitterID, input),
			State:         domain.New,
		},
		instanceCount: DefaultInstanceCount,
	}
}

// SetInstanceCount overrides the cluster size used at submission.
func (d *JobDriver) SetInstanceCount(n int) *JobDriver {
	d.instanceCount = n
	return d
}

// Job returns a snapshot of the driver's job record.
func (d *JobDriver) Job() domain.Job {
	return d.job
}

// Submit creates the remote job flow with the plan's two steps. Only valid
// before any submission has happened.
func (d *JobDriver) Submit(plan *domain.IterationPlan) error {
	if d.job.State != domain.New {
		return errors.NewAlreadyRunning("%s already has an active job flow %s", d.job.SubmitterID, d.job.FlowID)
	}
	if err := plan.Validate(); err != nil {
		return err
	}

	id, err := d.client.Submit(d.flowName(), []domain.Step{plan.Rank, plan.Process}, d.instanceCount)
	if err != nil {
		return err
	}
	d.job.FlowID = string(id)
	d.job.State = domain.Submitted
	d.recordIteration(plan)
	d.job.State = domain.Running
	log.Infof("submitted flow %s for %s", id, d.job.SubmitterID)
	return nil
}

// AddIteration appends the plan's two steps to the existing flow. Only
// valid while the job is running.
func (d *JobDriver) AddIteration(plan *domain.IterationPlan) error {
	if d.job.State != domain.Running {
		return errors.NewNotRunning("%s has no running job flow (state %s)", d.job.SubmitterID, d.job.State)
	}
	if err := plan.Validate(); err != nil {
		return err
	}
	if err := d.client.AddSteps(cluster.FlowID(d.job.FlowID), []domain.Step{plan.Rank, plan.Process}); err != nil {
		return err
	}
	d.recordIteration(plan)
	return nil
}

// IsDone reads the first output key of the most recently completed process
// step and reports whether its content begins with the completion marker.
// Requires the default output directories in all iterations.
func (d *JobDriver) IsDone() (bool, error) {
	if d.job.FlowID == "" {
		return false, nil
	}
	status, err := d.client.Describe(cluster.FlowID(d.job.FlowID))
	if err != nil {
		return false, err
	}
	return d.DoneFromStatus(status)
}

// DoneFromStatus is IsDone for a status the caller already fetched. The
// remote service budgets roughly one describe per flow per poll interval,
// so callers that need the status anyway check completion through this
// instead of spending a second call.
func (d *JobDriver) DoneFromStatus(status *domain.FlowStatus) (bool, error) {
	iterNo := domain.LastCompletedProcessIteration(status.Steps)
	if iterNo < 0 {
		return false, nil
	}

	outdir := storage.JoinKey(d.job.SubmitterID, DefaultProcessOutput(iterNo))
	keys, err := d.store.List(outdir)
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}
	contents, err := d.store.GetContents(keys[0])
	if err != nil {
		return false, err
	}
	return bytes.HasPrefix(contents, []byte(domain.CompletionMarker)), nil
}

// IsAlive reports whether the remote flow can still make progress.
func (d *JobDriver) IsAlive() (bool, error) {
	if d.job.FlowID == "" {
		return false, nil
	}
	status, err := d.client.Describe(cluster.FlowID(d.job.FlowID))
	if err != nil {
		return false, err
	}
	return status.State.Alive(), nil
}

// Describe reports the remote flow's status.
func (d *JobDriver) Describe() (*domain.FlowStatus, error) {
	if d.job.FlowID == "" {
		return nil, errors.NewNotRunning("%s has no job flow to describe", d.job.SubmitterID)
	}
	return d.client.Describe(cluster.FlowID(d.job.FlowID))
}

// Terminate requests remote termination and drops the flow handle.
func (d *JobDriver) Terminate() error {
	if d.job.FlowID == "" {
		return errors.NewNotRunning("%s has no job flow to terminate", d.job.SubmitterID)
	}
	if err := d.client.Terminate(cluster.FlowID(d.job.FlowID)); err != nil {
		return err
	}
	log.Infof("terminated flow %s for %s", d.job.FlowID, d.job.SubmitterID)
	d.job.FlowID = ""
	d.job.State = domain.Terminated
	return nil
}

// Complete marks the job done after the completion marker was observed.
func (d *JobDriver) Complete() {
	d.job.State = domain.Done
}

// Fail marks the job failed. No-op once the job is in a terminal state.
func (d *JobDriver) Fail() {
	if !d.job.State.Terminal() {
		d.job.State = domain.Failed
	}
}

// Reset returns a failed driver to New so it can be resubmitted. The
// iteration counter and flow handle are cleared; the input location is
// kept.
func (d *JobDriver) Reset() error {
	if d.job.State != domain.Failed {
		return fmt.Errorf("cannot reset %s from state %s", d.job.SubmitterID, d.job.State)
	}
	d.job.FlowID = ""
	d.job.IterationNo = 0
	d.job.LastOutputLocation = ""
	d.job.State = domain.New
	return nil
}

func (d *JobDriver) recordIteration(plan *domain.IterationPlan) {
	d.job.IterationNo++
	d.job.LastOutputLocation = plan.Process.Output
}

// flowName generates a unique, submitter-tagged remote job name.
func (d *JobDriver) flowName() string {
	if id, err := uuid.NewV4(); err == nil {
		return fmt.Sprintf("%s-%s", d.job.SubmitterID, id.String())
	}
	return fmt.Sprintf("%s-%d", d.job.SubmitterID, time.Now().UnixNano())
}

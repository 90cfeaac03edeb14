// Package fake provides a scripted in-memory cluster.Client for tests.
package fake

import (
	"fmt"
	"sync"

	"github.com/rankmaniac/rankmaniac/cluster"
	"github.com/rankmaniac/rankmaniac/common/errors"
	"github.com/rankmaniac/rankmaniac/domain"
)

// Flow is the fake's record of one submitted job flow. Tests mutate State
// and Steps directly via the setters to script a scenario.
type Flow struct {
	Name     string
	State    domain.FlowState
	Steps    []domain.StepStatus
	StepDefs []domain.Step
}

type Client struct {
	mu     sync.Mutex
	flows  map[cluster.FlowID]*Flow
	nextID int

	// Errors to return from the next Describe calls, one per call.
	describeErrs []error

	submitErr error
}

func NewClient() *Client {
	return &Client{flows: make(map[cluster.FlowID]*Flow)}
}

func (c *Client) Submit(name string, steps []domain.Step, instanceCount int) (cluster.FlowID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitErr != nil {
		err := c.submitErr
		c.submitErr = nil
		return "", err
	}
	c.nextID++
	id := cluster.FlowID(fmt.Sprintf("j-%04d", c.nextID))
	flow := &Flow{Name: name, State: domain.FlowWaiting}
	for _, step := range steps {
		flow.StepDefs = append(flow.StepDefs, step)
		flow.Steps = append(flow.Steps, domain.StepStatus{State: domain.StepPending})
	}
	c.flows[id] = flow
	return id, nil
}

func (c *Client) AddSteps(id cluster.FlowID, steps []domain.Step) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	flow, ok := c.flows[id]
	if !ok {
		return errors.NewNotRunning("flow %s not found", id)
	}
	for _, step := range steps {
		flow.StepDefs = append(flow.StepDefs, step)
		flow.Steps = append(flow.Steps, domain.StepStatus{State: domain.StepPending})
	}
	return nil
}

func (c *Client) Describe(id cluster.FlowID) (*domain.FlowStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.describeErrs) > 0 {
		err := c.describeErrs[0]
		c.describeErrs = c.describeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	flow, ok := c.flows[id]
	if !ok {
		return nil, errors.NewNotRunning("flow %s not found", id)
	}
	status := &domain.FlowStatus{State: flow.State}
	status.Steps = append(status.Steps, flow.Steps...)
	return status, nil
}

func (c *Client) Terminate(id cluster.FlowID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	flow, ok := c.flows[id]
	if !ok {
		return errors.NewNotRunning("flow %s not found", id)
	}
	flow.State = domain.FlowTerminated
	return nil
}

// Flow returns the fake's record for a handle, or nil.
func (c *Client) Flow(id cluster.FlowID) *Flow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flows[id]
}

// SetFlowState scripts the overall state reported for a flow.
func (c *Client) SetFlowState(id cluster.FlowID, state domain.FlowState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if flow, ok := c.flows[id]; ok {
		flow.State = state
	}
}

// SetStepStatuses scripts the positional step statuses reported for a flow.
func (c *Client) SetStepStatuses(id cluster.FlowID, steps []domain.StepStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if flow, ok := c.flows[id]; ok {
		flow.Steps = steps
	}
}

// InjectDescribeErr queues an error for an upcoming Describe call.
func (c *Client) InjectDescribeErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.describeErrs = append(c.describeErrs, err)
}

// InjectSubmitErr makes the next Submit call fail.
func (c *Client) InjectSubmitErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitErr = err
}

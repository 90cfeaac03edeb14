// Package cluster defines the remote cluster-job service boundary. A flow is
// one remote job; steps are appended to it in pairs, one iteration at a
// time.
//
// Implementations must classify throttling responses as RateLimitError so
// callers can retry with backoff instead of failing. The service allows
// roughly one Describe per flow every 10 seconds.
package cluster

import "github.com/rankmaniac/rankmaniac/domain"

// FlowID is the remote job handle.
type FlowID string

type Client interface {
	// Submit creates a new keep-alive job flow with the given initial steps
	// and cluster size, returning its handle.
	Submit(name string, steps []domain.Step, instanceCount int) (FlowID, error)

	// AddSteps appends steps to an existing flow in submission order.
	AddSteps(id FlowID, steps []domain.Step) error

	// Describe reports the flow's overall state and the status of every step
	// in submission order.
	Describe(id FlowID) (*domain.FlowStatus, error)

	Terminate(id FlowID) error
}

package scheduler

import (
	"sort"
	"sync"

	"github.com/rankmaniac/rankmaniac/common/errors"
	"github.com/rankmaniac/rankmaniac/grading"
)

// JobRegistry maps submitter ids to their graders. It is owned by the
// orchestrator: initialized at start, cleared at stop, and handed to the
// scheduler by reference. Registration is where the one-active-job-per-
// submitter invariant is enforced, before any step is built.
type JobRegistry struct {
	mu      sync.Mutex
	graders map[string]*grading.Grader
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{graders: make(map[string]*grading.Grader)}
}

// Register adds a submitter's grader. Fails with AlreadyRunningError while
// the submitter still has a non-terminal job registered.
func (r *JobRegistry) Register(submitterID string, grader *grading.Grader) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.graders[submitterID]; ok {
		if !existing.Driver().Job().State.Terminal() {
			return errors.NewAlreadyRunning("%s already has an active job", submitterID)
		}
	}
	r.graders[submitterID] = grader
	return nil
}

// Get returns the submitter's grader, or nil when none is registered.
func (r *JobRegistry) Get(submitterID string) *grading.Grader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graders[submitterID]
}

func (r *JobRegistry) Remove(submitterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.graders, submitterID)
}

// SubmitterIDs returns the registered ids in sorted order.
func (r *JobRegistry) SubmitterIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.graders))
	for id := range r.graders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *JobRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graders = make(map[string]*grading.Grader)
}

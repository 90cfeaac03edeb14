package driver

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/rankmaniac/rankmaniac/domain"
	"github.com/rankmaniac/rankmaniac/storage"
)

// IterationParams configures the step pair for one iteration. RankOutput
// and ProcessOutput override the default output directories when set; the
// defaults are what IsDone expects, so overriding them breaks completion
// detection and is only useful for one-off reruns.
type IterationParams struct {
	RankMapper     string
	RankReducer    string
	ProcessMapper  string
	ProcessReducer string

	NumRankMappers  int
	NumRankReducers int

	RankOutput    string
	ProcessOutput string
}

// StepBuilder builds iteration step pairs, wiring the previous iteration's
// process output as the next iteration's rank input.
type StepBuilder struct {
	store storage.Store
}

func NewStepBuilder(store storage.Store) *StepBuilder {
	return &StepBuilder{store: store}
}

// BuildIteration builds the (rank, process) plan for the job's next
// iteration. Any keys already present under either output location are
// deleted first, so re-submitting a retried iteration cannot mix stale and
// fresh output.
func (b *StepBuilder) BuildIteration(job *domain.Job, params IterationParams) (*domain.IterationPlan, error) {
	var rankInput string
	if job.IterationNo == 0 {
		rankInput = job.InputLocation
	} else {
		if job.LastOutputLocation == "" {
			return nil, fmt.Errorf("job %s at iteration %d has no last output location", job.SubmitterID, job.IterationNo)
		}
		rankInput = job.LastOutputLocation
	}

	rankOutput := params.RankOutput
	if rankOutput == "" {
		rankOutput = storage.JoinKey(job.SubmitterID, DefaultRankOutput(job.IterationNo))
	}
	processOutput := params.ProcessOutput
	if processOutput == "" {
		processOutput = storage.JoinKey(job.SubmitterID, DefaultProcessOutput(job.IterationNo))
	}

	for _, output := range []string{rankOutput, processOutput} {
		if err := storage.ClearPrefix(b.store, output); err != nil {
			return nil, err
		}
	}

	plan := &domain.IterationPlan{
		Rank: domain.Step{
			Mapper:      storage.JoinKey(job.SubmitterID, params.RankMapper),
			Reducer:     storage.JoinKey(job.SubmitterID, params.RankReducer),
			Input:       rankInput,
			Output:      rankOutput,
			NumMappers:  params.NumRankMappers,
			NumReducers: params.NumRankReducers,
		},
		Process: domain.Step{
			Mapper:      storage.JoinKey(job.SubmitterID, params.ProcessMapper),
			Reducer:     storage.JoinKey(job.SubmitterID, params.ProcessReducer),
			Input:       rankOutput,
			Output:      processOutput,
			NumMappers:  1,
			NumReducers: 1,
		},
	}
	log.Debugf("built iteration %d for %s: rank %s -> %s, process -> %s",
		job.IterationNo, job.SubmitterID, rankInput, rankOutput, processOutput)
	return plan, nil
}

// DefaultRankOutput is the rank step's output directory for an iteration,
// relative to the submitter's namespace. The trailing slash marks it as a
// directory prefix.
func DefaultRankOutput(iterationNo int) string {
	return fmt.Sprintf("%d/rank/", iterationNo)
}

// DefaultProcessOutput is the process step's output directory for an
// iteration, relative to the submitter's namespace.
func DefaultProcessOutput(iterationNo int) string {
	return fmt.Sprintf("%d/process/", iterationNo)
}

// Package grading prepares a submitter's job and scores its result. The
// Grader holds a JobDriver by composition and consumes only its public
// contract, plus the object stores for staging submissions and reading
// final output.
package grading

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	log "github.com/sirupsen/logrus"

	"github.com/rankmaniac/rankmaniac/cluster"
	"github.com/rankmaniac/rankmaniac/common/errors"
	"github.com/rankmaniac/rankmaniac/config"
	"github.com/rankmaniac/rankmaniac/domain"
	"github.com/rankmaniac/rankmaniac/driver"
	"github.com/rankmaniac/rankmaniac/storage"
)

const (
	DefaultMaxIterations = 50

	// How many times to retry one remote call that keeps rate-limiting
	// before giving up on the submitter. With the constant 10s backoff this
	// bounds a single stall at about a minute.
	rateLimitRetries = 6

	rateLimitBackoff = 10 * time.Second

	// Reference datasets are staged under this namespace in the grading
	// store.
	datasetPrefix = "datasets"
)

// ErrNotDone is returned by scoring reads before the job has produced a
// completed iteration.
var ErrNotDone = errors.NewNotRunning("job has not completed an iteration yet")

type Grader struct {
	driver   *driver.JobDriver
	builder  *driver.StepBuilder
	students storage.Store
	grading  storage.Store

	submitterID  string
	infile       string
	maxIter      int
	multiplier   int
	retryBackoff time.Duration

	cfg config.TeamConfig
}

// NewGrader creates a grader for one submitter. students is the store
// submissions are uploaded to; grading is the isolated store jobs run in.
// infile names the dataset staged under datasetPrefix in the grading store.
func NewGrader(client cluster.Client, students, grading storage.Store, submitterID, infile string) *Grader {
	return &Grader{
		driver:       driver.New(client, grading, submitterID, infile),
		builder:      driver.NewStepBuilder(grading),
		students:     students,
		grading:      grading,
		submitterID:  submitterID,
		infile:       infile,
		maxIter:      DefaultMaxIterations,
		multiplier:   DefaultPenaltyMultiplier,
		retryBackoff: rateLimitBackoff,
	}
}

func (g *Grader) SetMaxIterations(n int) *Grader {
	g.maxIter = n
	return g
}

func (g *Grader) SetPenaltyMultiplier(m int) *Grader {
	g.multiplier = m
	return g
}

func (g *Grader) SetInstanceCount(n int) *Grader {
	g.driver.SetInstanceCount(n)
	return g
}

// Driver exposes the underlying JobDriver for lifecycle polling.
func (g *Grader) Driver() *driver.JobDriver {
	return g.driver
}

// Setup stages the submitter's files into the grading store, loads their
// config overrides, and submits the full run of iterations. Returns false
// with a nil error when the submitter has nothing to run.
//
// Remote calls that rate-limit are retried on a bounded constant backoff;
// exhausting the retries fails the setup.
func (g *Grader) Setup(ctx context.Context) (bool, error) {
	copied, err := g.copySubmission()
	if err != nil {
		return false, err
	}
	if !copied {
		return false, nil
	}

	// Stage the input dataset into the submitter's namespace so the first
	// rank step can read it.
	if err := g.grading.Copy(storage.JoinKey(datasetPrefix, g.infile), g.submitterID+"/"); err != nil {
		return false, err
	}

	g.cfg, err = config.Load(g.grading, g.submitterID)
	if err != nil {
		return false, err
	}
	params := driver.IterationParams{
		RankMapper:      g.cfg.RankMapper,
		RankReducer:     g.cfg.RankReducer,
		ProcessMapper:   g.cfg.ProcessMapper,
		ProcessReducer:  g.cfg.ProcessReducer,
		NumRankMappers:  g.cfg.NumRankMappers,
		NumRankReducers: g.cfg.NumRankReducers,
	}

	for i := 0; i < g.maxIter; i++ {
		job := g.driver.Job()
		plan, err := g.builder.BuildIteration(&job, params)
		if err != nil {
			return false, err
		}
		if err := g.submitWithRetry(ctx, plan, i == 0); err != nil {
			return false, err
		}
	}
	log.Infof("set up %d iterations for %s on %s", g.maxIter, g.submitterID, g.infile)
	return true, nil
}

// submitWithRetry pushes one iteration to the remote service, retrying only
// rate-limit errors.
func (g *Grader) submitWithRetry(ctx context.Context, plan *domain.IterationPlan, first bool) error {
	op := func() error {
		var err error
		if first {
			err = g.driver.Submit(plan)
		} else {
			err = g.driver.AddIteration(plan)
		}
		if err != nil && !errors.IsRateLimit(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.retryBackoff), rateLimitRetries), ctx)
	return backoff.Retry(op, policy)
}

// copySubmission replaces the submitter's grading namespace with the
// top-level files of their students-store namespace. Directory contents and
// Hadoop marker keys are skipped. Returns whether anything was copied,
// i.e. whether the submitter previously submitted at all.
func (g *Grader) copySubmission() (bool, error) {
	if err := storage.ClearPrefix(g.grading, g.submitterID+"/"); err != nil {
		return false, err
	}

	keys, err := g.students.List(g.submitterID + "/")
	if err != nil {
		return false, err
	}
	copied := 0
	for _, key := range keys {
		suffix := strings.SplitN(key, "/", 2)[1]
		if strings.Contains(suffix, "/") || strings.Contains(suffix, "$") {
			continue
		}
		contents, err := g.students.GetContents(key)
		if err != nil {
			return false, err
		}
		if err := g.grading.PutContents(key, contents); err != nil {
			return false, err
		}
		copied++
	}
	return copied > 0, nil
}

// Score computes the elapsed runtime and ranking penalty from a single
// remote describe, so scoring costs one throttled call instead of three.
// Returns ErrNotDone until the job has a completed iteration.
func (g *Grader) Score(reference []string, topN, maxPenaltyRank int) (time.Duration, int, error) {
	status, err := g.driver.Describe()
	if err != nil {
		return 0, 0, err
	}
	return g.ScoreFromStatus(status, reference, topN, maxPenaltyRank)
}

// ScoreFromStatus is Score for a flow status the caller already fetched;
// it needs no remote call at all, only object-store reads. The scheduler
// uses it to score inside the same describe budget as the completion
// check.
func (g *Grader) ScoreFromStatus(status *domain.FlowStatus, reference []string, topN, maxPenaltyRank int) (time.Duration, int, error) {
	iterNo := domain.LastCompletedProcessIteration(status.Steps)
	if iterNo < 0 {
		return 0, 0, ErrNotDone
	}
	produced, err := g.rankingForIteration(iterNo)
	if err != nil {
		return 0, 0, err
	}
	penalty, err := ComputePenalty(produced, reference, topN, maxPenaltyRank, g.multiplier)
	if err != nil {
		return 0, 0, err
	}
	return elapsedTime(status.Steps), penalty, nil
}

// ElapsedTime reports the job's execution time so far.
func (g *Grader) ElapsedTime() (time.Duration, error) {
	status, err := g.driver.Describe()
	if err != nil {
		return 0, err
	}
	return elapsedTime(status.Steps), nil
}

// elapsedTime sums the durations of every completed step up to and
// including the most recent completed process step. A step mid-sequence
// that is not completed truncates the sum, since positional order is what
// ties statuses to iterations.
func elapsedTime(steps []domain.StepStatus) time.Duration {
	maxStep := 0
	if iterNo := domain.LastCompletedProcessIteration(steps); iterNo >= 0 {
		maxStep = domain.StepsPerIteration*iterNo + 1
	}

	var elapsed time.Duration
	for i := 0; i <= maxStep && i < len(steps); i++ {
		step := steps[i]
		if step.State != domain.StepCompleted {
			break
		}
		elapsed += step.EndTime.Sub(step.StartTime)
	}
	return elapsed
}

// ProducedRanking parses the submitter's final ranking from the last
// completed process output. Returns ErrNotDone before any iteration has
// completed.
//
// Output records look like "FinalRank:<score>\t<id>". Records whose id
// cannot be isolated are kept as opaque entries rather than dropped, so
// malformed output draws the maximal penalty instead of shrinking the
// ranking.
func (g *Grader) ProducedRanking() ([]string, error) {
	status, err := g.driver.Describe()
	if err != nil {
		return nil, err
	}
	iterNo := domain.LastCompletedProcessIteration(status.Steps)
	if iterNo < 0 {
		return nil, ErrNotDone
	}
	return g.rankingForIteration(iterNo)
}

func (g *Grader) rankingForIteration(iterNo int) ([]string, error) {
	outdir := storage.JoinKey(g.submitterID, driver.DefaultProcessOutput(iterNo))
	keys, err := g.grading.List(outdir)
	if err != nil {
		return nil, err
	}

	var ranking []string
	for _, key := range keys {
		contents, err := g.grading.GetContents(key)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(contents), "\n") {
			line = strings.TrimRight(line, "\r")
			if !strings.HasPrefix(line, domain.CompletionMarker) {
				continue
			}
			ranking = append(ranking, parseRankedID(line))
		}
	}
	return ranking, nil
}

// Penalty scores the produced ranking against the reference ranking.
// Returns ErrNotDone until the job has a completed iteration.
func (g *Grader) Penalty(reference []string, topN, maxPenaltyRank int) (int, error) {
	done, err := g.driver.IsDone()
	if err != nil {
		return 0, err
	}
	if !done {
		return 0, ErrNotDone
	}
	produced, err := g.ProducedRanking()
	if err != nil {
		return 0, err
	}
	return ComputePenalty(produced, reference, topN, maxPenaltyRank, g.multiplier)
}

// parseRankedID extracts the node id from one final-rank record. The id is
// the field after the tab; a record without one yields the raw remainder of
// the line, which will not match any reference entry.
func parseRankedID(line string) string {
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return strings.TrimSpace(strings.TrimPrefix(line, domain.CompletionMarker))
}

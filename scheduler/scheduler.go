// Package scheduler waits on many submitters' remote jobs at once with a
// single-threaded cooperative sweep: submitters are visited in round-robin
// order, rate-limited visits are retried in place with bounded backoff, and
// one submitter's failure never aborts the sweep for the others.
package scheduler

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rankmaniac/rankmaniac/common/errors"
	"github.com/rankmaniac/rankmaniac/common/stats"
	"github.com/rankmaniac/rankmaniac/domain"
	"github.com/rankmaniac/rankmaniac/scoreboard"
)

const (
	// Pause between successive non-rate-limited polls, respecting the
	// remote service's call-frequency ceiling.
	DefaultPollInterval = 10 * time.Second

	// Backoff after a rate-limit error before retrying the same submitter.
	DefaultRateLimitBackoff = 10 * time.Second

	// Rate-limit retries per submitter visit before the visit counts as
	// failed. Bounded so tests can simulate exhaustion deterministically.
	DefaultMaxRateLimitRetries = 30
)

// ScoringConfig carries the reference data one sweep scores against.
type ScoringConfig struct {
	Reference      []string
	TopN           int
	MaxPenaltyRank int
	Session        int
}

// Outcome is the single recorded result for one submitter.
type Outcome struct {
	Record domain.ScoreRecord
	Err    error // reason, when the record carries a sentinel pair
}

// visitResult is the typed result of one submitter visit. The sweep
// pattern-matches on the kind instead of catching arbitrary errors.
type visitResult struct {
	kind   visitKind
	err    error
	record domain.ScoreRecord // populated on visitDone
	status *domain.FlowStatus // the visit's describe result, for scoring
}

type visitKind int

const (
	// Job still in flight; advance to the next submitter.
	visitContinue visitKind = iota

	// Completion marker observed and the job scored.
	visitDone

	// Job cannot finish, or the visit hit a non-retryable error.
	visitFailed

	// Remote service throttled the visit; retry the same submitter.
	visitRetry
)

type PollingScheduler struct {
	registry *JobRegistry
	board    scoreboard.Scoreboard
	scoring  ScoringConfig
	stat     stats.StatsReceiver

	pollInterval        time.Duration
	rateLimitBackoff    time.Duration
	maxRateLimitRetries int

	// Overridable for tests; blocking waits are how this scheduler
	// suspends, there is no parallel polling to yield to.
	sleep func(time.Duration)
}

func NewPollingScheduler(registry *JobRegistry, board scoreboard.Scoreboard, scoring ScoringConfig, stat stats.StatsReceiver) *PollingScheduler {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &PollingScheduler{
		registry:            registry,
		board:               board,
		scoring:             scoring,
		stat:                stat.Scope("scheduler"),
		pollInterval:        DefaultPollInterval,
		rateLimitBackoff:    DefaultRateLimitBackoff,
		maxRateLimitRetries: DefaultMaxRateLimitRetries,
		sleep:               time.Sleep,
	}
}

func (s *PollingScheduler) SetPollInterval(d time.Duration) *PollingScheduler {
	s.pollInterval = d
	return s
}

func (s *PollingScheduler) SetRateLimitBackoff(d time.Duration, maxRetries int) *PollingScheduler {
	s.rateLimitBackoff = d
	s.maxRateLimitRetries = maxRetries
	return s
}

// Sweep polls every requested submitter until each one has exactly one
// recorded outcome or ctx is cancelled. On cancellation the in-flight visit
// is abandoned, already-recorded outcomes are returned alongside ctx's
// error, and still-pending submitters' remote jobs are left untouched.
func (s *PollingScheduler) Sweep(ctx context.Context, submitterIDs []string) (map[string]Outcome, error) {
	pending := append([]string{}, submitterIDs...)
	outcomes := make(map[string]Outcome, len(pending))
	retries := make(map[string]int)

	i := 0
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		id := pending[i]
		s.stat.Counter("polls").Inc(1)

		res := s.visit(id)
		if res.kind == visitDone {
			// Scoring reuses the visit's describe result and only reads
			// the object store, so it stays inside the visit's budget of
			// one throttled call.
			res = s.score(id, res.status)
		}

		if res.kind == visitRetry {
			retries[id]++
			if retries[id] <= s.maxRateLimitRetries {
				s.stat.Counter("rateLimitRetries").Inc(1)
				log.Debugf("rate limited on %s, backing off %s", id, s.rateLimitBackoff)
				s.sleep(s.rateLimitBackoff)
				// Do not advance: the same submitter is re-attempted.
				continue
			}
			log.Warnf("%s exhausted %d rate-limit retries", id, s.maxRateLimitRetries)
			res = visitResult{kind: visitFailed, err: res.err}
		}

		switch res.kind {
		case visitContinue:
			i = (i + 1) % len(pending)
			s.sleep(s.pollInterval)
			continue

		case visitDone:
			s.stat.Counter("completed").Inc(1)
			outcome := Outcome{Record: res.record}
			s.recordOutcome(id, outcome)
			outcomes[id] = outcome
			if grader := s.registry.Get(id); grader != nil {
				grader.Driver().Complete()
			}
			log.Infof("%s finished: runtime %ds, penalty %ds",
				id, res.record.RuntimeSeconds, res.record.PenaltySeconds)

		case visitFailed:
			s.stat.Counter("failed").Inc(1)
			outcome := Outcome{Record: domain.InvalidSubmissionRecord(id, s.scoring.Session), Err: res.err}
			s.recordOutcome(id, outcome)
			outcomes[id] = outcome
			if grader := s.registry.Get(id); grader != nil {
				grader.Driver().Fail()
			}
			log.Warnf("%s failed: %s", id, res.err)
		}

		// Shrink the working set; the index now points at the next
		// submitter in round-robin order. A recorded outcome still costs
		// the poll interval before the next submitter is visited.
		pending = append(pending[:i], pending[i+1:]...)
		delete(retries, id)
		if len(pending) > 0 {
			i = i % len(pending)
			s.sleep(s.pollInterval)
		}
	}
	return outcomes, nil
}

// visit polls one submitter and classifies the result. Anything unexpected
// is isolated into a visitFailed for this submitter only.
func (s *PollingScheduler) visit(id string) visitResult {
	grader := s.registry.Get(id)
	if grader == nil {
		return visitResult{kind: visitFailed, err: errors.NewNotRunning("%s is not registered", id)}
	}
	d := grader.Driver()

	// One describe per visit: the remote service budgets roughly one
	// status read per flow per poll interval, so done, alive, and the
	// final score are all derived from this single status.
	status, err := d.Describe()
	if err != nil {
		return classifyVisitErr(err)
	}
	done, err := d.DoneFromStatus(status)
	if err != nil {
		return classifyVisitErr(err)
	}
	if done {
		return visitResult{kind: visitDone, status: status}
	}
	if !status.State.Alive() {
		return visitResult{kind: visitFailed, err: fmt.Errorf("remote flow for %s died before finishing", id)}
	}
	return visitResult{kind: visitContinue}
}

// score computes the final record for a submitter whose completion marker
// was observed, from the status that visit already fetched. A
// ConfigurationError or malformed result fails this submitter only.
func (s *PollingScheduler) score(id string, status *domain.FlowStatus) visitResult {
	grader := s.registry.Get(id)
	runtime, penalty, err := grader.ScoreFromStatus(status, s.scoring.Reference, s.scoring.TopN, s.scoring.MaxPenaltyRank)
	if err != nil {
		return classifyVisitErr(err)
	}
	return visitResult{
		kind: visitDone,
		record: domain.ScoreRecord{
			SubmitterID:    id,
			RuntimeSeconds: int(runtime.Seconds()),
			PenaltySeconds: penalty,
			Session:        s.scoring.Session,
		},
	}
}

func classifyVisitErr(err error) visitResult {
	if errors.IsRateLimit(err) {
		return visitResult{kind: visitRetry, err: err}
	}
	return visitResult{kind: visitFailed, err: err}
}

func (s *PollingScheduler) recordOutcome(id string, outcome Outcome) {
	if err := s.board.Record(outcome.Record); err != nil {
		log.Errorf("recording outcome for %s: %s", id, err)
	}
}

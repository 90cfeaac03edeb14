package grading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rankmaniac/rankmaniac/cluster"
	clusterfake "github.com/rankmaniac/rankmaniac/cluster/fake"
	"github.com/rankmaniac/rankmaniac/common/errors"
	"github.com/rankmaniac/rankmaniac/domain"
	storagefake "github.com/rankmaniac/rankmaniac/storage/fake"
)

type graderDeps struct {
	client   *clusterfake.Client
	students *storagefake.InMemory
	grading  *storagefake.InMemory
}

// makeGrader seeds a valid teamA submission and the test dataset.
func makeGrader(t *testing.T, maxIter int) (*Grader, *graderDeps) {
	t.Helper()
	deps := &graderDeps{
		client:   clusterfake.NewClient(),
		students: storagefake.NewInMemory(),
		grading:  storagefake.NewInMemory(),
	}
	deps.students.PutContents("teamA/rank_map.py", []byte("#!/usr/bin/env python"))
	deps.students.PutContents("teamA/rank_reduce.py", []byte("#!/usr/bin/env python"))
	deps.students.PutContents("teamA/process_map.py", []byte("#!/usr/bin/env python"))
	deps.students.PutContents("teamA/process_reduce.py", []byte("#!/usr/bin/env python"))
	deps.grading.PutContents("datasets/GNPn100p05", []byte("1: 2 3\n"))

	g := NewGrader(deps.client, deps.students, deps.grading, "teamA", "GNPn100p05").
		SetMaxIterations(maxIter)
	g.retryBackoff = time.Millisecond
	return g, deps
}

func setupDone(t *testing.T, g *Grader, deps *graderDeps) cluster.FlowID {
	t.Helper()
	submitted, err := g.Setup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !submitted {
		t.Fatal("expected a submission to run")
	}
	return cluster.FlowID(g.Driver().Job().FlowID)
}

func TestSetupSubmitsAllIterations(t *testing.T) {
	g, deps := makeGrader(t, 3)
	id := setupDone(t, g, deps)

	flow := deps.client.Flow(id)
	assert.Equal(t, 6, len(flow.StepDefs), "three iterations of two steps each")
	assert.Equal(t, "teamA/GNPn100p05", flow.StepDefs[0].Input)

	// Submission files were staged into the grading store.
	keys, _ := deps.grading.List("teamA/")
	assert.Contains(t, keys, "teamA/rank_map.py")
	assert.Contains(t, keys, "teamA/GNPn100p05")
}

func TestSetupNoSubmission(t *testing.T) {
	g, deps := makeGrader(t, 3)
	for _, key := range []string{"teamA/rank_map.py", "teamA/rank_reduce.py", "teamA/process_map.py", "teamA/process_reduce.py"} {
		deps.students.Delete([]string{key})
	}
	submitted, err := g.Setup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if submitted {
		t.Error("expected no submission")
	}
	if job := g.Driver().Job(); job.State != domain.New {
		t.Errorf("no submission must not submit anything, state %s", job.State)
	}
}

func TestSetupSkipsNestedAndMarkerKeys(t *testing.T) {
	g, deps := makeGrader(t, 1)
	deps.students.PutContents("teamA/results/part-00000", []byte("old output"))
	deps.students.PutContents("teamA/_$folder$", []byte(""))
	setupDone(t, g, deps)

	keys, _ := deps.grading.List("teamA/results/")
	assert.Empty(t, keys, "nested keys must not be copied")
	keys, _ = deps.grading.List("teamA/_$folder$")
	assert.Empty(t, keys, "marker keys must not be copied")
}

func TestSetupAppliesConfigOverrides(t *testing.T) {
	g, deps := makeGrader(t, 1)
	deps.students.PutContents("teamA/rankmaniac.json",
		[]byte(`{"rank_mapper": "custom_map.py", "num_rank_reducers": 4}`))
	deps.students.PutContents("teamA/custom_map.py", []byte("#!/usr/bin/env python"))
	id := setupDone(t, g, deps)

	rank := deps.client.Flow(id).StepDefs[0]
	assert.Equal(t, "teamA/custom_map.py", rank.Mapper)
	assert.Equal(t, "teamA/rank_reduce.py", rank.Reducer, "unset fields keep defaults")
	assert.Equal(t, 4, rank.NumReducers)
}

func TestSetupRetriesRateLimit(t *testing.T) {
	g, deps := makeGrader(t, 1)
	deps.client.InjectSubmitErr(errors.NewRateLimit("throttled"))
	setupDone(t, g, deps)

	if g.Driver().Job().State != domain.Running {
		t.Errorf("expected submission to succeed after a rate-limited attempt")
	}
}

func TestSetupDoesNotRetryPermanentErrors(t *testing.T) {
	g, deps := makeGrader(t, 1)
	deps.client.InjectSubmitErr(errors.NewNotRunning("boom"))
	if _, err := g.Setup(context.Background()); err == nil {
		t.Fatal("expected setup to fail")
	}
}

// completeIteration scripts iteration 0 as done with the completion marker
// and the given step durations.
func completeIteration(deps *graderDeps, id cluster.FlowID, rankSecs, processSecs int) {
	start := time.Date(2014, 2, 1, 12, 0, 0, 0, time.UTC)
	rankEnd := start.Add(time.Duration(rankSecs) * time.Second)
	processEnd := rankEnd.Add(time.Duration(processSecs) * time.Second)
	deps.client.SetStepStatuses(id, []domain.StepStatus{
		{State: domain.StepCompleted, StartTime: start, EndTime: rankEnd},
		{State: domain.StepCompleted, StartTime: rankEnd, EndTime: processEnd},
		{State: domain.StepRunning},
		{State: domain.StepPending},
	})
	deps.grading.PutContents("teamA/0/process/part-00000",
		[]byte("FinalRank:0.9\t10\nFinalRank:0.5\t20\nFinalRank:0.1\t30\n"))
}

func TestElapsedTimeTruncatesAtFirstIncompleteStep(t *testing.T) {
	g, deps := makeGrader(t, 2)
	id := setupDone(t, g, deps)
	completeIteration(deps, id, 30, 12)

	elapsed, err := g.ElapsedTime()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 42*time.Second, elapsed, "sum of the two completed steps only")
}

func TestProducedRanking(t *testing.T) {
	g, deps := makeGrader(t, 2)
	id := setupDone(t, g, deps)

	if _, err := g.ProducedRanking(); err != ErrNotDone {
		t.Fatalf("expected ErrNotDone before completion, got %v", err)
	}

	completeIteration(deps, id, 30, 12)
	ranking, err := g.ProducedRanking()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []string{"10", "20", "30"}, ranking)
}

func TestProducedRankingKeepsMalformedEntries(t *testing.T) {
	g, deps := makeGrader(t, 2)
	id := setupDone(t, g, deps)
	completeIteration(deps, id, 30, 12)
	deps.grading.PutContents("teamA/0/process/part-00000",
		[]byte("FinalRank:0.9\t10\nFinalRankgarbage\nnot a ranking line\n"))

	ranking, err := g.ProducedRanking()
	if err != nil {
		t.Fatal(err)
	}
	// The malformed record is kept as an opaque entry so it draws the
	// maximal penalty instead of shrinking the ranking.
	assert.Equal(t, 2, len(ranking))
	assert.Equal(t, "10", ranking[0])
}

func TestScore(t *testing.T) {
	g, deps := makeGrader(t, 2)
	id := setupDone(t, g, deps)
	completeIteration(deps, id, 30, 12)

	runtime, penalty, err := g.Score([]string{"10", "20", "30", "40"}, 4, 1000)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 42*time.Second, runtime)
	// Produced ranking is one entry short of topN: one padded position.
	assert.Equal(t, 1000*1000, penalty)
}

func TestScoreFromStatusNeedsNoRemoteCall(t *testing.T) {
	g, deps := makeGrader(t, 2)
	id := setupDone(t, g, deps)
	completeIteration(deps, id, 30, 12)

	status, err := g.Driver().Describe()
	if err != nil {
		t.Fatal(err)
	}

	// With the status in hand, scoring must not describe again even if
	// the remote service would refuse it.
	deps.client.InjectDescribeErr(errors.NewRateLimit("throttled"))
	runtime, penalty, err := g.ScoreFromStatus(status, []string{"10", "20", "30"}, 3, 1000)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 42*time.Second, runtime)
	assert.Equal(t, 0, penalty)
}

func TestScoreNotDone(t *testing.T) {
	g, deps := makeGrader(t, 2)
	setupDone(t, g, deps)

	if _, _, err := g.Score([]string{"10"}, 1, 1000); err != ErrNotDone {
		t.Fatalf("expected ErrNotDone, got %v", err)
	}
}

func TestPenaltyRequiresCompletion(t *testing.T) {
	g, deps := makeGrader(t, 2)
	id := setupDone(t, g, deps)

	if _, err := g.Penalty([]string{"10"}, 1, 1000); err != ErrNotDone {
		t.Fatalf("expected ErrNotDone, got %v", err)
	}

	completeIteration(deps, id, 30, 12)
	penalty, err := g.Penalty([]string{"10", "20", "30"}, 3, 1000)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 0, penalty)
}

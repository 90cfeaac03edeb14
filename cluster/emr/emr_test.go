package emr

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/emr"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/rankmaniac/rankmaniac/cluster"
	rmerrors "github.com/rankmaniac/rankmaniac/common/errors"
	"github.com/rankmaniac/rankmaniac/domain"
)

func TestStepConfigs(t *testing.T) {
	c := &Client{s3Prefix: "s3n://cs144grading/"}

	configs := c.stepConfigs([]domain.Step{{
		Mapper:      "teamA/rank_map.py",
		Reducer:     "teamA/rank_reduce.py",
		Input:       "teamA/GNPn100p05",
		Output:      "teamA/0/rank/",
		NumMappers:  3,
		NumReducers: 2,
	}})

	assert.Len(t, configs, 1)
	step := configs[0]
	assert.Equal(t, emr.ActionOnFailureCancelAndWait, aws.StringValue(step.ActionOnFailure))
	assert.Equal(t, streamingJar, aws.StringValue(step.HadoopJarStep.Jar))
	assert.Equal(t, []string{
		"-jobconf", "mapred.map.tasks=3",
		"-jobconf", "mapred.reduce.tasks=2",
		"-mapper", "s3n://cs144grading/teamA/rank_map.py",
		"-reducer", "s3n://cs144grading/teamA/rank_reduce.py",
		"-input", "s3n://cs144grading/teamA/GNPn100p05",
		"-output", "s3n://cs144grading/teamA/0/rank/",
	}, aws.StringValueSlice(step.HadoopJarStep.Args))
}

func TestFlowStatusMapping(t *testing.T) {
	start := time.Date(2014, 2, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Second)

	status := flowStatus(&emr.JobFlowDetail{
		ExecutionStatusDetail: &emr.JobFlowExecutionStatusDetail{
			State: aws.String("WAITING"),
		},
		Steps: []*emr.StepDetail{
			{ExecutionStatusDetail: &emr.StepExecutionStatusDetail{
				State:         aws.String("COMPLETED"),
				StartDateTime: aws.Time(start),
				EndDateTime:   aws.Time(end),
			}},
			{ExecutionStatusDetail: &emr.StepExecutionStatusDetail{
				State: aws.String("RUNNING"),
			}},
			{},
		},
	})

	assert.Equal(t, domain.FlowWaiting, status.State)
	assert.True(t, status.State.Alive())
	assert.Equal(t, []domain.StepStatus{
		{State: domain.StepCompleted, StartTime: start, EndTime: end},
		{State: domain.StepRunning},
		{State: domain.StepPending},
	}, status.Steps)
}

func TestClassifyThrottling(t *testing.T) {
	c := &Client{}
	assert.NoError(t, c.classify(nil, "describing flow %s", "j-1"))

	throttled := awserr.New("Throttling", "Rate exceeded", nil)
	err := c.classify(throttled, "describing flow %s", "j-1")
	assert.True(t, rmerrors.IsRateLimit(err))

	other := awserr.New("ValidationException", "no such flow", nil)
	err = c.classify(other, "describing flow %s", "j-1")
	assert.False(t, rmerrors.IsRateLimit(err))
	assert.Contains(t, err.Error(), "describing flow j-1")
}

func TestDescribeSelfThrottles(t *testing.T) {
	c := &Client{limiters: make(map[cluster.FlowID]*rate.Limiter)}

	// First acquisition consumes the burst; the second within the interval
	// must be refused locally without touching the remote service.
	assert.True(t, c.limiter("j-1").Allow())
	assert.False(t, c.limiter("j-1").Allow())

	// A different flow has its own budget.
	assert.True(t, c.limiter("j-2").Allow())
}

func TestTerminatedFlowReleasesItsLimiter(t *testing.T) {
	c := &Client{limiters: make(map[cluster.FlowID]*rate.Limiter)}
	assert.True(t, c.limiter("j-1").Allow())
	assert.False(t, c.limiter("j-1").Allow())

	c.dropLimiter("j-1")
	assert.Empty(t, c.limiters)

	// A later flow reusing the handle starts with a fresh budget.
	assert.True(t, c.limiter("j-1").Allow())
}

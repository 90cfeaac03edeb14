// Package emr implements cluster.Client on Amazon Elastic MapReduce using
// Hadoop streaming steps.
package emr

import (
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/emr"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/rankmaniac/rankmaniac/cluster"
	rmerrors "github.com/rankmaniac/rankmaniac/common/errors"
	"github.com/rankmaniac/rankmaniac/domain"
)

const (
	// Amazon has an upper limit on the frequency of describe calls; once
	// every 10 seconds per flow has proven safe.
	describeInterval = 10 * time.Second

	streamingJar = "/home/hadoop/contrib/streaming/hadoop-streaming.jar"

	defaultInstanceType = "m1.medium"
)

type Client struct {
	svc      *emr.EMR
	s3Prefix string // e.g. "s3n://cs144grading/", prepended to step locations
	logURI   string

	mu       sync.Mutex
	limiters map[cluster.FlowID]*rate.Limiter
}

// New returns a Client whose step input/output locations are resolved
// against the given bucket.
func New(sess *session.Session, bucket string) *Client {
	prefix := fmt.Sprintf("s3n://%s/", bucket)
	return &Client{
		svc:      emr.New(sess),
		s3Prefix: prefix,
		logURI:   prefix + "job_logs",
		limiters: make(map[cluster.FlowID]*rate.Limiter),
	}
}

func (c *Client) Submit(name string, steps []domain.Step, instanceCount int) (cluster.FlowID, error) {
	out, err := c.svc.RunJobFlow(&emr.RunJobFlowInput{
		Name:   aws.String(name),
		LogUri: aws.String(c.logURI),
		Instances: &emr.JobFlowInstancesConfig{
			InstanceCount:               aws.Int64(int64(instanceCount)),
			MasterInstanceType:          aws.String(defaultInstanceType),
			SlaveInstanceType:           aws.String(defaultInstanceType),
			KeepJobFlowAliveWhenNoSteps: aws.Bool(true),
		},
		Steps: c.stepConfigs(steps),
	})
	if err != nil {
		return "", c.classify(err, "creating job flow %s", name)
	}
	return cluster.FlowID(aws.StringValue(out.JobFlowId)), nil
}

func (c *Client) AddSteps(id cluster.FlowID, steps []domain.Step) error {
	_, err := c.svc.AddJobFlowSteps(&emr.AddJobFlowStepsInput{
		JobFlowId: aws.String(string(id)),
		Steps:     c.stepConfigs(steps),
	})
	return c.classify(err, "adding steps to flow %s", id)
}

func (c *Client) Describe(id cluster.FlowID) (*domain.FlowStatus, error) {
	// Self-throttle ahead of the remote ceiling; callers already treat
	// RateLimitError as retry-later.
	if !c.limiter(id).Allow() {
		return nil, rmerrors.NewRateLimit("describe of flow %s throttled locally", id)
	}

	out, err := c.svc.DescribeJobFlows(&emr.DescribeJobFlowsInput{
		JobFlowIds: []*string{aws.String(string(id))},
	})
	if err != nil {
		return nil, c.classify(err, "describing flow %s", id)
	}
	if len(out.JobFlows) == 0 {
		return nil, rmerrors.NewNotRunning("flow %s not found", id)
	}
	return flowStatus(out.JobFlows[0]), nil
}

func (c *Client) Terminate(id cluster.FlowID) error {
	_, err := c.svc.TerminateJobFlows(&emr.TerminateJobFlowsInput{
		JobFlowIds: []*string{aws.String(string(id))},
	})
	if err != nil {
		return c.classify(err, "terminating flow %s", id)
	}
	c.dropLimiter(id)
	return nil
}

func (c *Client) limiter(id cluster.FlowID) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[id]
	if !ok {
		l = rate.NewLimiter(rate.Every(describeInterval), 1)
		c.limiters[id] = l
	}
	return l
}

// dropLimiter releases a terminated flow's describe limiter so a
// long-lived process does not accumulate one entry per flow ever graded.
func (c *Client) dropLimiter(id cluster.FlowID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.limiters, id)
}

func (c *Client) stepConfigs(steps []domain.Step) []*emr.StepConfig {
	configs := make([]*emr.StepConfig, 0, len(steps))
	for _, step := range steps {
		configs = append(configs, &emr.StepConfig{
			Name:            aws.String(fmt.Sprintf("%s > %s", step.Mapper, step.Output)),
			ActionOnFailure: aws.String(emr.ActionOnFailureCancelAndWait),
			HadoopJarStep: &emr.HadoopJarStepConfig{
				Jar: aws.String(streamingJar),
				Args: aws.StringSlice([]string{
					"-jobconf", fmt.Sprintf("mapred.map.tasks=%d", step.NumMappers),
					"-jobconf", fmt.Sprintf("mapred.reduce.tasks=%d", step.NumReducers),
					"-mapper", c.s3Prefix + step.Mapper,
					"-reducer", c.s3Prefix + step.Reducer,
					"-input", c.s3Prefix + step.Input,
					"-output", c.s3Prefix + step.Output,
				}),
			},
		})
	}
	return configs
}

// classify maps AWS throttling responses to RateLimitError and wraps
// anything else.
func (c *Client) classify(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if request.IsErrorThrottle(err) {
		return rmerrors.NewRateLimit("%s: %s", fmt.Sprintf(format, args...), err)
	}
	return errors.Wrapf(err, format, args...)
}

func flowStatus(flow *emr.JobFlowDetail) *domain.FlowStatus {
	status := &domain.FlowStatus{}
	if flow.ExecutionStatusDetail != nil {
		status.State = domain.FlowState(aws.StringValue(flow.ExecutionStatusDetail.State))
	}
	for _, step := range flow.Steps {
		detail := step.ExecutionStatusDetail
		if detail == nil {
			status.Steps = append(status.Steps, domain.StepStatus{State: domain.StepPending})
			continue
		}
		status.Steps = append(status.Steps, domain.StepStatus{
			State:     domain.StepState(aws.StringValue(detail.State)),
			StartTime: aws.TimeValue(detail.StartDateTime),
			EndTime:   aws.TimeValue(detail.EndDateTime),
		})
	}
	return status
}

// Package scoreboard reports final (runtime, penalty) outcomes per
// submitter to the competition scoreboard.
package scoreboard

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sethgrid/pester"

	"github.com/rankmaniac/rankmaniac/domain"
)

// Scoreboard is the durable sink for per-submitter outcomes.
type Scoreboard interface {
	Record(record domain.ScoreRecord) error
}

// RecordInvalidSubmission reports the reserved invalid-submission pair.
func RecordInvalidSubmission(board Scoreboard, submitterID string, session int) error {
	return board.Record(domain.InvalidSubmissionRecord(submitterID, session))
}

// RecordNoSubmission reports the reserved no-submission pair.
func RecordNoSubmission(board Scoreboard, submitterID string, session int) error {
	return board.Record(domain.NoSubmissionRecord(submitterID, session))
}

// Client posts outcomes to the scoreboard's upload endpoint. Requests are
// retried with backoff since the scoreboard tends to run on flaky shared
// hosting.
type Client struct {
	http      *pester.Client
	uploadURL string
	authToken string
}

func NewClient(uploadURL, authToken string) *Client {
	http := pester.New()
	http.Concurrency = 1
	http.MaxRetries = 5
	http.Backoff = pester.ExponentialBackoff
	return &Client{http: http, uploadURL: uploadURL, authToken: authToken}
}

func (c *Client) Record(record domain.ScoreRecord) error {
	params := url.Values{}
	params.Set("team_id", record.SubmitterID)
	// The server expects both values in one space-separated field.
	params.Set("duration", fmt.Sprintf("%d %d", record.RuntimeSeconds, record.PenaltySeconds))
	params.Set("auth_token", c.authToken)
	params.Set("session", strconv.Itoa(record.Session))

	resp, err := c.http.PostForm(c.uploadURL, params)
	if err != nil {
		return errors.Wrapf(err, "recording outcome for %s", record.SubmitterID)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("recording outcome for %s: scoreboard returned %s", record.SubmitterID, resp.Status)
	}
	return nil
}

// Recorder is an in-memory Scoreboard for tests.
type Recorder struct {
	Records []domain.ScoreRecord

	// Err, when set, is returned by the next Record call.
	Err error
}

func (r *Recorder) Record(record domain.ScoreRecord) error {
	if r.Err != nil {
		err := r.Err
		r.Err = nil
		return err
	}
	r.Records = append(r.Records, record)
	return nil
}

package domain

// Reserved (runtime, penalty) sentinel pairs reported to the scoreboard.
// Distinct from any legitimate non-negative measurement.
const (
	// Submission ran but produced an unusable result.
	InvalidSubmissionSentinel = -1

	// Submitter had nothing to run.
	NoSubmissionSentinel = -2
)

// ScoreRecord is the final outcome reported for one submitter. The session
// identifier tells the scoreboard when to accumulate multiple records for
// the same submitter (one per dataset run on the same day).
type ScoreRecord struct {
	SubmitterID    string
	RuntimeSeconds int
	PenaltySeconds int
	Session        int
}

// Invalid reports whether this record carries the invalid-submission pair.
func (r ScoreRecord) Invalid() bool {
	return r.RuntimeSeconds == InvalidSubmissionSentinel && r.PenaltySeconds == InvalidSubmissionSentinel
}

// NoSubmission reports whether this record carries the no-submission pair.
func (r ScoreRecord) NoSubmission() bool {
	return r.RuntimeSeconds == NoSubmissionSentinel && r.PenaltySeconds == NoSubmissionSentinel
}

// InvalidSubmissionRecord returns the record reported when a submitter's run
// could not be scored.
func InvalidSubmissionRecord(submitterID string, session int) ScoreRecord {
	return ScoreRecord{
		SubmitterID:    submitterID,
		RuntimeSeconds: InvalidSubmissionSentinel,
		PenaltySeconds: InvalidSubmissionSentinel,
		Session:        session,
	}
}

// NoSubmissionRecord returns the record reported when a submitter had no
// submission to run.
func NoSubmissionRecord(submitterID string, session int) ScoreRecord {
	return ScoreRecord{
		SubmitterID:    submitterID,
		RuntimeSeconds: NoSubmissionSentinel,
		PenaltySeconds: NoSubmissionSentinel,
		Session:        session,
	}
}

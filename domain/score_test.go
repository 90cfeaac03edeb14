package domain

import "testing"

func TestScoreRecordSentinels(t *testing.T) {
	invalid := InvalidSubmissionRecord("teamA", 3)
	if !invalid.Invalid() || invalid.NoSubmission() {
		t.Errorf("invalid-submission record misclassified: %+v", invalid)
	}
	none := NoSubmissionRecord("teamA", 3)
	if !none.NoSubmission() || none.Invalid() {
		t.Errorf("no-submission record misclassified: %+v", none)
	}

	legit := ScoreRecord{SubmitterID: "teamA", RuntimeSeconds: 0, PenaltySeconds: 0}
	if legit.Invalid() || legit.NoSubmission() {
		t.Errorf("zero measurements must not look like sentinels")
	}
}

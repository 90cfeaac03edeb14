package grading

import (
	"github.com/rankmaniac/rankmaniac/common/errors"
)

// AbsentEntry is the reserved id used to pad a produced ranking that is
// shorter than topN. It can never appear in reference data, so every padded
// position draws the maximal per-entry penalty.
const AbsentEntry = "<absent>"

// DefaultPenaltyMultiplier converts the squared-rank-difference sum into
// seconds added to the execution time.
const DefaultPenaltyMultiplier = 1

// ComputePenalty scores a produced ranking against the reference ranking.
//
// Each of the first topN produced entries contributes the square of the
// difference between its produced position and its reference position; an
// entry absent from the reference ranking (including unrecognized or
// malformed output) contributes maxPenaltyRank squared instead. The sum is
// scaled by multiplier.
//
// Requires topN <= len(reference) <= maxPenaltyRank; anything else is a
// configuration error, not a property of the submission.
func ComputePenalty(produced, reference []string, topN, maxPenaltyRank, multiplier int) (int, error) {
	if topN > len(reference) || len(reference) > maxPenaltyRank {
		return 0, errors.NewConfiguration(
			"reference ranking size %d outside bounds [topN=%d, maxPenaltyRank=%d]",
			len(reference), topN, maxPenaltyRank)
	}

	positions := make(map[string]int, len(reference))
	for i, id := range reference {
		positions[id] = i
	}

	sum := 0
	for actual := 0; actual < topN; actual++ {
		id := AbsentEntry
		if actual < len(produced) {
			id = produced[actual]
		}
		expected, ok := positions[id]
		if !ok {
			sum += maxPenaltyRank * maxPenaltyRank
			continue
		}
		diff := actual - expected
		sum += diff * diff
	}
	return multiplier * sum, nil
}

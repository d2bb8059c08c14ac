package insight

import (
	"math"
	"sort"
)

// Confidence weighting: fully matching the required signals contributes
// 0.7, fully matching the supporting signals the remaining 0.3.
const (
	requiredWeight   = 0.7
	supportingWeight = 0.3
)

// ScoredHypothesis pairs a hypothesis with its confidence in [0, 1].
type ScoredHypothesis struct {
	Hypothesis
	Confidence float64
}

// Score ranks hypotheses against the observed signals, descending by
// confidence. The sort is stable, so ties keep library order. A
// hypothesis with no required signals can never be satisfied by
// evidence and is excluded.
func Score(signals Set, hypotheses []Hypothesis) []ScoredHypothesis {
	scored := make([]ScoredHypothesis, 0, len(hypotheses))

	for _, h := range hypotheses {
		if len(h.RequiredSignals) == 0 {
			continue
		}

		requiredFrac := matchFraction(h.RequiredSignals, signals)
		supportingFrac := 0.0
		if len(h.SupportingSignals) > 0 {
			supportingFrac = matchFraction(h.SupportingSignals, signals)
		}

		confidence := requiredWeight*requiredFrac + supportingWeight*supportingFrac
		scored = append(scored, ScoredHypothesis{
			Hypothesis: h,
			Confidence: math.Round(confidence*1000) / 1000,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})
	return scored
}

func matchFraction(want []Signal, have Set) float64 {
	if len(want) == 0 {
		return 0
	}
	matched := 0
	for _, sig := range want {
		if have.Has(sig) {
			matched++
		}
	}
	return float64(matched) / float64(len(want))
}

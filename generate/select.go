package generate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Softmax converts scores to probabilities. The maximum is subtracted
// before exponentiating so large scores cannot overflow.
func Softmax(scores []float32) []float64 {
	probs := make([]float64, len(scores))
	for idx, score := range scores {
		probs[idx] = float64(score)
	}
	if len(probs) == 0 {
		return probs
	}
	maxScore := floats.Max(probs)
	floats.AddConst(-maxScore, probs)
	for idx := range probs {
		probs[idx] = math.Exp(probs[idx])
	}
	floats.Scale(1/floats.Sum(probs), probs)
	return probs
}

// Select returns the index of the highest scoring entry. On exact ties the
// lowest index wins.
func Select(distribution []float32) (int, error) {
	if len(distribution) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrBadDistribution)
	}
	maxIdx := 0
	for idx, score := range distribution {
		if math.IsNaN(float64(score)) {
			return 0, fmt.Errorf("%w: NaN at %d", ErrBadDistribution, idx)
		}
		if score > distribution[maxIdx] {
			maxIdx = idx
		}
	}
	if math.IsInf(float64(distribution[maxIdx]), 0) {
		// Softmax of an infinite maximum is undefined; the first
		// maximum is still the greedy choice.
		return maxIdx, nil
	}
	// Softmax preserves order. The index comes from the raw scores, since
	// exp can round close scores to the same probability.
	if probs := Softmax(distribution); floats.HasNaN(probs) {
		return 0, fmt.Errorf("%w: softmax undefined", ErrBadDistribution)
	}
	return maxIdx, nil
}

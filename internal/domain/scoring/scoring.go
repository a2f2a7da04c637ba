// Package scoring maps questionnaire answers to a 0-100 relationship score
// and a stage label. Every entry point is a pure function of its input.
package scoring

import "math"

const (
	minScore = 0
	maxScore = 100
)

// clamp bounds x to [minScore, maxScore]. NaN maps to minScore.
func clamp(x float64) float64 {
	if math.IsNaN(x) {
		return minScore
	}
	return math.Max(minScore, math.Min(maxScore, x))
}

// roundScore clamps then rounds half away from zero, which for the
// non-negative clamped range is round-half-up: 42.5 -> 43.
func roundScore(x float64) int {
	return int(math.Round(clamp(x)))
}

// clampInt bounds an already rounded score after a rule delta.
func clampInt(v int) int {
	if v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

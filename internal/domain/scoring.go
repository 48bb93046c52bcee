package domain

import "math"

// DefaultBasePoints is the score for an instant correct answer when the
// question does not set its own base.
const DefaultBasePoints = 100

// ScorePoints computes the awarded points for a correct answer using
// quadratic time decay: round(base * (1 - (timeUsed/timeLimit)^2)).
// Answering in the first half of the window keeps above 75% of base;
// answering at the buzzer is worth near zero. timeRemaining is clamped to
// [0, timeLimit] to tolerate client clock skew.
func ScorePoints(basePoints, timeLimitSec int, timeRemaining float64) int {
	if basePoints <= 0 {
		basePoints = DefaultBasePoints
	}
	if timeLimitSec <= 0 {
		return basePoints
	}
	limit := float64(timeLimitSec)
	if timeRemaining < 0 {
		timeRemaining = 0
	}
	if timeRemaining > limit {
		timeRemaining = limit
	}
	used := limit - timeRemaining
	ratio := used / limit
	return int(math.Round(float64(basePoints) * (1 - ratio*ratio)))
}

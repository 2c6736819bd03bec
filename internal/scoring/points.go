package scoring

import (
	"math"

	"github.com/tdhoang/prepwise/internal/model"
)

// Base points per difficulty tier.
const (
	BaseEasy   = 10
	BaseMedium = 20
	BaseHard   = 30
)

// Streak tier thresholds (same-day correct answers before this one).
const (
	streakTierLow  = 4
	streakTierMid  = 8
	streakTierHigh = 16
)

// BasePoints returns the base points for a difficulty. Unknown difficulties
// fall back to the EASY base.
func BasePoints(d model.Difficulty) int {
	switch d {
	case model.DifficultyEasy:
		return BaseEasy
	case model.DifficultyMedium:
		return BaseMedium
	case model.DifficultyHard:
		return BaseHard
	default:
		return BaseEasy
	}
}

// TimeBonus returns the speed multiplier. timeLimitMin is the whole-test limit
// in minutes; nil or non-positive values, or a missing timeSpent, yield 1.0.
func TimeBonus(timeSpentSec int, timeLimitMin *int) float64 {
	if timeLimitMin == nil || *timeLimitMin <= 0 || timeSpentSec <= 0 {
		return 1.0
	}
	pct := float64(timeSpentSec) / float64(*timeLimitMin*60)
	switch {
	case pct <= 0.3:
		return 1.5
	case pct <= 0.7:
		return 1.25
	default:
		return 1.0
	}
}

// StreakMultiplier scales points by the count of same-day correct answers the
// user had before this one. Capped at 2.0.
func StreakMultiplier(todayCorrect int) float64 {
	switch {
	case todayCorrect >= streakTierHigh:
		return 2.0
	case todayCorrect >= streakTierMid:
		return 1.5
	case todayCorrect >= streakTierLow:
		return 1.2
	default:
		return 1.0
	}
}

// Breakdown is the full decomposition persisted on a QuestionScore.
type Breakdown struct {
	BasePoints       int
	TimeBonus        float64
	StreakMultiplier float64
	TotalPoints      int
}

// Points computes the awarded points for a correct answer. Pure: the caller
// supplies the same-day correct-answer streak count.
func Points(d model.Difficulty, timeSpentSec int, timeLimitMin *int, todayCorrect int) Breakdown {
	base := BasePoints(d)
	tb := TimeBonus(timeSpentSec, timeLimitMin)
	sm := StreakMultiplier(todayCorrect)
	return Breakdown{
		BasePoints:       base,
		TimeBonus:        tb,
		StreakMultiplier: sm,
		TotalPoints:      int(math.Round(float64(base) * tb * sm)),
	}
}

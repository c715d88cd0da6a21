// Package ranking orders todos by a relevance score built from priority and age.
//
// Scoring and ranking are pure: no I/O, no shared state, and the reference
// instant is always passed in. Both are safe for concurrent use.
package ranking

import (
	"math"
	"time"

	"todo-relevance-backend/internal/model"
)

// ageHorizonHours is the age (30 days) that maps to a normalized age of 10.
const ageHorizonHours = 24 * 30

// Algorithm selects the scoring variant.
type Algorithm string

const (
	// NonLinear keeps priority dominant and uses age as a tie-breaker.
	NonLinear Algorithm = "nonlinear"
	// Linear is the legacy additive formula. Old low-priority todos can
	// outrank new high-priority ones with it.
	Linear Algorithm = "linear"
)

// ParseAlgorithm maps a query value to an Algorithm. Empty selects NonLinear.
func ParseAlgorithm(s string) (Algorithm, bool) {
	switch Algorithm(s) {
	case "", NonLinear:
		return NonLinear, true
	case Linear:
		return Linear, true
	}
	return "", false
}

// ScoreFunc computes a score from priority, age in hours and settings.
func (a Algorithm) ScoreFunc() func(priority int, ageHours float64, s SortSettings) float64 {
	if a == Linear {
		return ScoreLinear
	}
	return Score
}

// Score is the canonical non-linear score:
//
//	priorityScore = p² × (priorityWeight×10 + 1)
//	normalizedAge = ln(ageHours+1) / ln(721) × 10
//	ageScore      = normalizedAge × ageWeight × (priorityWeight + 0.1)
//
// It is non-decreasing in both priority and age. Priority is clamped to
// [1, 10] and age to [0, +Inf) so the result is always finite.
func Score(priority int, ageHours float64, s SortSettings) float64 {
	p := float64(ClampPriority(priority))
	age := clampAge(ageHours)

	priorityScore := p * p * (s.PriorityWeight*10 + 1)
	normalizedAge := math.Log1p(age) / math.Log1p(ageHorizonHours) * 10
	ageScore := normalizedAge * (s.AgeWeight * (s.PriorityWeight + 0.1))

	return priorityScore + ageScore
}

// ScoreLinear is the legacy score: ageHours×ageWeight + priority×priorityWeight.
func ScoreLinear(priority int, ageHours float64, s SortSettings) float64 {
	p := float64(ClampPriority(priority))
	age := clampAge(ageHours)
	return age*s.AgeWeight + p*s.PriorityWeight
}

// ClampPriority forces priority into [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	switch {
	case p < model.MinPriority:
		return model.MinPriority
	case p > model.MaxPriority:
		return model.MaxPriority
	}
	return p
}

// AgeHours returns the hours between createdAt and now. A zero createdAt or
// one in the future yields 0.
func AgeHours(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	return clampAge(now.Sub(createdAt).Hours())
}

func clampAge(h float64) float64 {
	switch {
	case math.IsNaN(h) || h < 0:
		return 0
	case math.IsInf(h, 1):
		return math.MaxFloat64
	}
	return h
}

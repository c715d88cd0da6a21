package ranking

import (
	"fmt"
	"math"
)

// SortSettings holds the two user-tunable ranking weights.
type SortSettings struct {
	AgeWeight      float64 `json:"ageWeight"`
	PriorityWeight float64 `json:"priorityWeight"`
}

// Default weights. An older revision shipped AgeWeight 0.1; 0.5 is canonical.
const (
	DefaultAgeWeight      = 0.5
	DefaultPriorityWeight = 0.5
)

// DefaultSortSettings returns the settings used when a user has none stored.
func DefaultSortSettings() SortSettings {
	return SortSettings{
		AgeWeight:      DefaultAgeWeight,
		PriorityWeight: DefaultPriorityWeight,
	}
}

// ValidationError reports a weight outside [0, 1].
type ValidationError struct {
	Field string
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must be between 0 and 1, got %v", e.Field, e.Value)
}

// NewSortSettings builds validated settings.
func NewSortSettings(ageWeight, priorityWeight float64) (SortSettings, error) {
	s := SortSettings{AgeWeight: ageWeight, PriorityWeight: priorityWeight}
	if err := s.Validate(); err != nil {
		return SortSettings{}, err
	}
	return s, nil
}

// Validate rejects weights outside [0, 1]. Values are never clamped.
func (s SortSettings) Validate() error {
	if !inUnitRange(s.AgeWeight) {
		return &ValidationError{Field: "ageWeight", Value: s.AgeWeight}
	}
	if !inUnitRange(s.PriorityWeight) {
		return &ValidationError{Field: "priorityWeight", Value: s.PriorityWeight}
	}
	return nil
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

package settings

import (
	"context"

	"todo-relevance-backend/internal/ranking"
)

// Patch is a partial settings update. Nil fields keep their current value.
type Patch struct {
	AgeWeight      *float64 `json:"ageWeight"`
	PriorityWeight *float64 `json:"priorityWeight"`
}

// Service applies validation and defaults on top of a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the user's effective settings: the stored row, or the
// defaults when none exists. It never writes.
func (s *Service) Get(ctx context.Context, userID int) (ranking.SortSettings, error) {
	v, ok, err := s.store.Get(ctx, userID)
	if err != nil {
		return ranking.SortSettings{}, err
	}
	if !ok {
		return ranking.DefaultSortSettings(), nil
	}
	return v, nil
}

// Set validates v and stores it. Invalid values leave storage untouched and
// return a *ranking.ValidationError.
func (s *Service) Set(ctx context.Context, userID int, v ranking.SortSettings) (ranking.SortSettings, error) {
	if err := v.Validate(); err != nil {
		return ranking.SortSettings{}, err
	}
	if err := s.store.Upsert(ctx, userID, v); err != nil {
		return ranking.SortSettings{}, err
	}
	return v, nil
}

// Update merges p over the effective settings, then behaves like Set.
func (s *Service) Update(ctx context.Context, userID int, p Patch) (ranking.SortSettings, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return ranking.SortSettings{}, err
	}
	if p.AgeWeight != nil {
		current.AgeWeight = *p.AgeWeight
	}
	if p.PriorityWeight != nil {
		current.PriorityWeight = *p.PriorityWeight
	}
	return s.Set(ctx, userID, current)
}

// Reset deletes the stored row and returns the defaults.
func (s *Service) Reset(ctx context.Context, userID int) (ranking.SortSettings, error) {
	if err := s.store.Delete(ctx, userID); err != nil {
		return ranking.SortSettings{}, err
	}
	return ranking.DefaultSortSettings(), nil
}

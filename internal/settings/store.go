// Package settings persists per-user ranking weights and serves them over HTTP.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"todo-relevance-backend/internal/db"
	"todo-relevance-backend/internal/ranking"
)

// Store persists at most one SortSettings row per user.
type Store interface {
	// Get returns the stored settings and whether a row exists.
	Get(ctx context.Context, userID int) (ranking.SortSettings, bool, error)
	Upsert(ctx context.Context, userID int, s ranking.SortSettings) error
	Delete(ctx context.Context, userID int) error
}

// SQLStore is the user_settings table.
type SQLStore struct {
	db  *db.DB
	now func() time.Time
}

func NewSQLStore(d *db.DB) *SQLStore {
	return &SQLStore{db: d, now: time.Now}
}

func (s *SQLStore) Get(ctx context.Context, userID int) (ranking.SortSettings, bool, error) {
	var out ranking.SortSettings
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT age_weight, priority_weight
		FROM user_settings
		WHERE user_id = ?
	`), userID).Scan(&out.AgeWeight, &out.PriorityWeight)
	if errors.Is(err, sql.ErrNoRows) {
		return ranking.SortSettings{}, false, nil
	}
	if err != nil {
		return ranking.SortSettings{}, false, fmt.Errorf("loading settings: %w", err)
	}
	return out, true, nil
}

// Upsert writes both weights in a single statement.
func (s *SQLStore) Upsert(ctx context.Context, userID int, v ranking.SortSettings) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO user_settings (user_id, age_weight, priority_weight, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			age_weight = excluded.age_weight,
			priority_weight = excluded.priority_weight,
			updated_at = excluded.updated_at
	`), userID, v.AgeWeight, v.PriorityWeight, s.now().UTC())
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, userID int) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM user_settings WHERE user_id = ?`), userID)
	if err != nil {
		return fmt.Errorf("deleting settings: %w", err)
	}
	return nil
}

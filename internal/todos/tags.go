package todos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"todo-relevance-backend/internal/db"
	"todo-relevance-backend/internal/model"
)

func sortTags(tags []model.Tag) {
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
}

func normalizeTagName(name string) (string, error) {
	names, err := NormalizeTagNames([]string{name})
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", invalid("name", "is required")
	}
	return names[0], nil
}

// ListTags returns the user's tags ordered by name.
func (s *Store) ListTags(ctx context.Context, userID int) ([]model.Tag, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT id, user_id, name, created_at
		FROM tags
		WHERE user_id = ?
		ORDER BY name
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	out := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTag returns ErrDuplicate when the user already has a tag with name.
func (s *Store) CreateTag(ctx context.Context, userID int, name string) (model.Tag, error) {
	name, err := normalizeTagName(name)
	if err != nil {
		return model.Tag{}, err
	}

	t := model.Tag{ID: uuid.NewString(), UserID: userID, Name: name, CreatedAt: s.timestamp()}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tags (id, user_id, name, created_at) VALUES (?, ?, ?, ?)
	`), t.ID, t.UserID, t.Name, t.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return model.Tag{}, ErrDuplicate
		}
		return model.Tag{}, fmt.Errorf("creating tag: %w", err)
	}
	return t, nil
}

func (s *Store) RenameTag(ctx context.Context, userID int, id, name string) (model.Tag, error) {
	name, err := normalizeTagName(name)
	if err != nil {
		return model.Tag{}, err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE tags SET name = ? WHERE user_id = ? AND id = ?
	`), name, userID, id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return model.Tag{}, ErrDuplicate
		}
		return model.Tag{}, fmt.Errorf("renaming tag: %w", err)
	}
	if err := expectOne(res); err != nil {
		return model.Tag{}, err
	}
	return s.getTag(ctx, s.db, userID, id)
}

// DeleteTag removes the tag; its links go with it.
func (s *Store) DeleteTag(ctx context.Context, userID int, id string) error {
	return s.db.WithTx(ctx, func(tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`
			DELETE FROM tag_todo
			WHERE tag_id IN (SELECT id FROM tags WHERE user_id = ? AND id = ?)
		`), userID, id); err != nil {
			return fmt.Errorf("unlinking tag: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM tags WHERE user_id = ? AND id = ?`), userID, id)
		if err != nil {
			return fmt.Errorf("deleting tag: %w", err)
		}
		return expectOne(res)
	})
}

// AttachTag links a tag to a todo. Attaching twice is a no-op.
func (s *Store) AttachTag(ctx context.Context, userID int, todoID, tagID string) (model.Todo, error) {
	var out model.Todo
	err := s.db.WithTx(ctx, func(tx db.DBTX) error {
		if _, err := s.get(ctx, tx, userID, todoID); err != nil {
			return err
		}
		if _, err := s.getTag(ctx, tx, userID, tagID); err != nil {
			return err
		}
		if err := s.link(ctx, tx, todoID, tagID); err != nil {
			return err
		}
		t, err := s.get(ctx, tx, userID, todoID)
		out = t
		return err
	})
	return out, err
}

// DetachTag unlinks a tag from a todo. Detaching a missing link is a no-op.
func (s *Store) DetachTag(ctx context.Context, userID int, todoID, tagID string) (model.Todo, error) {
	var out model.Todo
	err := s.db.WithTx(ctx, func(tx db.DBTX) error {
		if _, err := s.get(ctx, tx, userID, todoID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`
			DELETE FROM tag_todo WHERE todo_id = ? AND tag_id = ?
		`), todoID, tagID); err != nil {
			return fmt.Errorf("unlinking tag: %w", err)
		}
		t, err := s.get(ctx, tx, userID, todoID)
		out = t
		return err
	})
	return out, err
}

func (s *Store) getTag(ctx context.Context, q db.DBTX, userID int, id string) (model.Tag, error) {
	var t model.Tag
	err := q.QueryRowContext(ctx, s.db.Rebind(`
		SELECT id, user_id, name, created_at FROM tags WHERE user_id = ? AND id = ?
	`), userID, id).Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tag{}, ErrNotFound
	}
	if err != nil {
		return model.Tag{}, fmt.Errorf("loading tag: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

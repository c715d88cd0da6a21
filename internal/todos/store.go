package todos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"todo-relevance-backend/internal/db"
	"todo-relevance-backend/internal/model"
)

const todoColumns = `id, user_id, title, description, status, priority, archived, due_date, created_at, updated_at`

// Store reads and writes todos and tags. Every method is scoped to one user.
type Store struct {
	db  *db.DB
	now func() time.Time
}

func NewStore(d *db.DB) *Store {
	return &Store{db: d, now: time.Now}
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(row scanner) (model.Todo, error) {
	var (
		t    model.Todo
		desc sql.NullString
		due  sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &desc, &t.Status, &t.Priority,
		&t.Archived, &due, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Todo{}, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	if due.Valid {
		d := due.Time.UTC()
		t.DueDate = &d
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.Tags = []model.Tag{}
	return t, nil
}

// List returns the user's todos filtered by archive state, unordered.
func (s *Store) List(ctx context.Context, userID int, archived bool) ([]model.Todo, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT `+todoColumns+`
		FROM todos
		WHERE user_id = ? AND archived = ?
	`), userID, archived)
	if err != nil {
		return nil, fmt.Errorf("listing todos: %w", err)
	}

	out := []model.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning todo: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	tags, err := s.loadTags(ctx, s.db, userID, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		if tt, ok := tags[out[i].ID]; ok {
			out[i].Tags = tt
		}
	}
	return out, nil
}

// Get returns one todo with its tags, or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID int, id string) (model.Todo, error) {
	return s.get(ctx, s.db, userID, id)
}

func (s *Store) get(ctx context.Context, q db.DBTX, userID int, id string) (model.Todo, error) {
	t, err := scanTodo(q.QueryRowContext(ctx, s.db.Rebind(`
		SELECT `+todoColumns+`
		FROM todos
		WHERE user_id = ? AND id = ?
	`), userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Todo{}, ErrNotFound
	}
	if err != nil {
		return model.Todo{}, fmt.Errorf("loading todo: %w", err)
	}

	tags, err := s.loadTags(ctx, q, userID, id)
	if err != nil {
		return model.Todo{}, err
	}
	if tt, ok := tags[id]; ok {
		t.Tags = tt
	}
	return t, nil
}

// loadTags maps todo id to its tags ordered by name. An empty todoID loads
// every link the user has.
func (s *Store) loadTags(ctx context.Context, q db.DBTX, userID int, todoID string) (map[string][]model.Tag, error) {
	query := `
		SELECT tt.todo_id, t.id, t.user_id, t.name, t.created_at
		FROM tag_todo tt
		JOIN tags t ON t.id = tt.tag_id
		WHERE t.user_id = ?`
	args := []any{userID}
	if todoID != "" {
		query += ` AND tt.todo_id = ?`
		args = append(args, todoID)
	}
	query += ` ORDER BY t.name`

	rows, err := q.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("loading tags: %w", err)
	}
	defer rows.Close()

	out := map[string][]model.Tag{}
	for rows.Next() {
		var (
			tid string
			tag model.Tag
		)
		if err := rows.Scan(&tid, &tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tag.CreatedAt = tag.CreatedAt.UTC()
		out[tid] = append(out[tid], tag)
	}
	return out, rows.Err()
}

// Create inserts a todo and links its tags, creating missing ones.
func (s *Store) Create(ctx context.Context, userID int, d Draft) (model.Todo, error) {
	var out model.Todo
	err := s.db.WithTx(ctx, func(tx db.DBTX) error {
		t, err := s.insert(ctx, tx, userID, d, s.timestamp())
		out = t
		return err
	})
	return out, err
}

// CreateBulk inserts all drafts in one transaction; either all are stored
// or none are.
func (s *Store) CreateBulk(ctx context.Context, userID int, drafts []Draft) ([]model.Todo, error) {
	out := make([]model.Todo, 0, len(drafts))
	err := s.db.WithTx(ctx, func(tx db.DBTX) error {
		now := s.timestamp()
		for _, d := range drafts {
			t, err := s.insert(ctx, tx, userID, d, now)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) insert(ctx context.Context, tx db.DBTX, userID int, d Draft, now time.Time) (model.Todo, error) {
	t := model.Todo{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       d.Title,
		Description: d.Description,
		Status:      d.Status,
		Priority:    d.Priority,
		DueDate:     d.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        []model.Tag{},
	}

	_, err := tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO todos (`+todoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), t.ID, t.UserID, t.Title, nullString(t.Description), string(t.Status), t.Priority,
		t.Archived, nullTime(t.DueDate), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return model.Todo{}, fmt.Errorf("inserting todo: %w", err)
	}

	for _, name := range d.Tags {
		tag, err := s.ensureTag(ctx, tx, userID, name, now)
		if err != nil {
			return model.Todo{}, err
		}
		if err := s.link(ctx, tx, t.ID, tag.ID); err != nil {
			return model.Todo{}, err
		}
		t.Tags = append(t.Tags, tag)
	}
	sortTags(t.Tags)
	return t, nil
}

// ensureTag returns the user's tag with name, creating it when missing.
func (s *Store) ensureTag(ctx context.Context, tx db.DBTX, userID int, name string, now time.Time) (model.Tag, error) {
	_, err := tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tags (id, user_id, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, name) DO NOTHING
	`), uuid.NewString(), userID, name, now)
	if err != nil {
		return model.Tag{}, fmt.Errorf("creating tag: %w", err)
	}

	var tag model.Tag
	err = tx.QueryRowContext(ctx, s.db.Rebind(`
		SELECT id, user_id, name, created_at FROM tags WHERE user_id = ? AND name = ?
	`), userID, name).Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt)
	if err != nil {
		return model.Tag{}, fmt.Errorf("loading tag: %w", err)
	}
	tag.CreatedAt = tag.CreatedAt.UTC()
	return tag, nil
}

func (s *Store) link(ctx context.Context, tx db.DBTX, todoID, tagID string) error {
	_, err := tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tag_todo (todo_id, tag_id) VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`), todoID, tagID)
	if err != nil {
		return fmt.Errorf("linking tag: %w", err)
	}
	return nil
}

// Update applies p to the stored todo and bumps updated_at.
func (s *Store) Update(ctx context.Context, userID int, id string, p TodoPatch) (model.Todo, error) {
	var out model.Todo
	err := s.db.WithTx(ctx, func(tx db.DBTX) error {
		t, err := s.get(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := p.Apply(&t); err != nil {
			return err
		}
		t.UpdatedAt = s.timestamp()

		_, err = tx.ExecContext(ctx, s.db.Rebind(`
			UPDATE todos
			SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
			WHERE user_id = ? AND id = ?
		`), t.Title, nullString(t.Description), string(t.Status), t.Priority, nullTime(t.DueDate), t.UpdatedAt, userID, id)
		if err != nil {
			return fmt.Errorf("updating todo: %w", err)
		}
		out = t
		return nil
	})
	return out, err
}

// SetArchived flips the archive flag.
func (s *Store) SetArchived(ctx context.Context, userID int, id string, archived bool) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE todos SET archived = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`), archived, s.timestamp(), userID, id)
	if err != nil {
		return fmt.Errorf("archiving todo: %w", err)
	}
	return expectOne(res)
}

func (s *Store) Delete(ctx context.Context, userID int, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM todos WHERE user_id = ? AND id = ?`), userID, id)
	if err != nil {
		return fmt.Errorf("deleting todo: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

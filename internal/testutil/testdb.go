package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"todo-relevance-backend/internal/db"
)

var userSeq atomic.Int64

// NewTestDB creates an in-memory SQLite database with all migrations applied.
// The database is closed when the test completes.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Connect(db.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return database
}

// CreateUser inserts a user with a unique email and returns its id.
func CreateUser(t *testing.T, database *db.DB) int {
	t.Helper()
	email := fmt.Sprintf("user%d@example.com", userSeq.Add(1))

	var id int
	err := database.QueryRowContext(context.Background(),
		database.Rebind(`INSERT INTO users (email, password_hash) VALUES (?, ?) RETURNING id`),
		email, "not-a-real-hash",
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return id
}

package auth

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"todo-relevance-backend/internal/db"
)

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Tokens are stateless; the client drops its copy.
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
		})
	}
}

// accountTables lists per-user rows in dependency order.
var accountTables = []struct {
	name  string
	query string
}{
	{"tag_todo", `DELETE FROM tag_todo WHERE todo_id IN (SELECT id FROM todos WHERE user_id = ?)`},
	{"todos", `DELETE FROM todos WHERE user_id = ?`},
	{"tags", `DELETE FROM tags WHERE user_id = ?`},
	{"user_settings", `DELETE FROM user_settings WHERE user_id = ?`},
	{"analytics_events", `DELETE FROM analytics_events WHERE user_id = ?`},
	{"users", `DELETE FROM users WHERE id = ?`},
}

func DeleteAccountHandler(dbx *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		err := dbx.WithTx(r.Context(), func(tx db.DBTX) error {
			for _, t := range accountTables {
				if _, err := tx.ExecContext(r.Context(), dbx.Rebind(t.query), uid); err != nil {
					return fmt.Errorf("delete %s failed: %w", t.name, err)
				}
			}
			return nil
		})
		if err != nil {
			log.Printf("[ERROR] delete account user_id=%d: %v", uid, err)
			http.Error(w, "delete account failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
		})
	}
}

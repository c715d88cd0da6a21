package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"todo-relevance-backend/internal/db"
)

const minPasswordLen = 8

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (credentials, bool) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return credentials{}, false
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	return body, body.Email != "" && body.Password != ""
}

func writeToken(w http.ResponseWriter, status int, secret []byte, id int) {
	token, err := GenerateToken(secret, id)
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id": id,
		"token":   token,
	})
}

func RegisterHandler(dbx *db.DB, secret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeCredentials(r)
		if !ok {
			http.Error(w, "email & password required", http.StatusBadRequest)
			return
		}
		if len(body.Password) < minPasswordLen {
			http.Error(w, "password too short", http.StatusBadRequest)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "hash error", http.StatusInternalServerError)
			return
		}

		var id int
		err = dbx.QueryRowContext(r.Context(), dbx.Rebind(`
			INSERT INTO users (email, password_hash)
			VALUES (?, ?)
			RETURNING id
		`), body.Email, string(hash)).Scan(&id)
		if err != nil {
			if db.IsUniqueViolation(err) {
				http.Error(w, "email already registered", http.StatusConflict)
				return
			}
			log.Printf("[ERROR] register: %v", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		writeToken(w, http.StatusCreated, secret, id)
	}
}

func LoginHandler(dbx *db.DB, secret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeCredentials(r)
		if !ok {
			http.Error(w, "invalid login", http.StatusUnauthorized)
			return
		}

		var (
			id   int
			hash string
		)
		err := dbx.QueryRowContext(r.Context(), dbx.Rebind(`
			SELECT id, password_hash FROM users WHERE email = ?
		`), body.Email).Scan(&id, &hash)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				log.Printf("[ERROR] login: %v", err)
			}
			http.Error(w, "invalid login", http.StatusUnauthorized)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(body.Password)) != nil {
			http.Error(w, "invalid login", http.StatusUnauthorized)
			return
		}

		writeToken(w, http.StatusOK, secret, id)
	}
}

func MeHandler(dbx *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var email string
		err := dbx.QueryRowContext(r.Context(), dbx.Rebind("SELECT email FROM users WHERE id = ?"), uid).Scan(&email)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "user not found", http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id": uid,
			"email":   email,
		})
	}
}

package todos

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"todo-relevance-backend/internal/analytics"
	"todo-relevance-backend/internal/auth"
	"todo-relevance-backend/internal/ranking"
)

// SettingsSource yields a user's effective ranking settings.
type SettingsSource interface {
	Get(ctx context.Context, userID int) (ranking.SortSettings, error)
}

type Handler struct {
	Store    *Store
	Settings SettingsSource
	Events   analytics.Recorder
	// Now is the ranking instant.
	Now func() time.Time
}

func NewHandler(store *Store, settings SettingsSource, events analytics.Recorder) *Handler {
	return &Handler{Store: store, Settings: settings, Events: events, Now: time.Now}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps store and validation errors to HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrDuplicate):
		http.Error(w, "already exists", http.StatusConflict)
	default:
		log.Printf("[ERROR] %s: %v", op, err)
		http.Error(w, "db error", http.StatusInternalServerError)
	}
}

func userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
	return uid, ok
}

// pathID reads a uuid path parameter. Malformed ids cannot exist, so they 404.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return "", false
	}
	return id, true
}

// List returns the user's todos in relevance order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	archived := false
	if v := r.URL.Query().Get("archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "archived must be true or false", http.StatusBadRequest)
			return
		}
		archived = b
	}

	algo, ok := ranking.ParseAlgorithm(r.URL.Query().Get("algorithm"))
	if !ok {
		http.Error(w, "algorithm must be nonlinear or linear", http.StatusBadRequest)
		return
	}

	list, err := h.Store.List(r.Context(), uid, archived)
	if err != nil {
		writeError(w, "list todos", err)
		return
	}

	s, err := h.Settings.Get(r.Context(), uid)
	if err != nil {
		log.Printf("[WARN] settings unavailable for user_id=%d, ranking with defaults: %v", uid, err)
		s = ranking.DefaultSortSettings()
	}

	writeJSON(w, http.StatusOK, ranking.RankWith(algo, list, s, h.Now()))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.Store.Get(r.Context(), uid, id)
	if err != nil {
		writeError(w, "get todo", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var body NewTodo
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	d, err := body.Validate()
	if err != nil {
		writeError(w, "create todo", err)
		return
	}

	t, err := h.Store.Create(r.Context(), uid, d)
	if err != nil {
		writeError(w, "create todo", err)
		return
	}

	analytics.Emit(r, h.Events, uid, "todo_created", map[string]any{
		"priority_tier": analytics.TierFromPriority(t.Priority),
		"tags_count":    len(t.Tags),
		"has_due_date":  t.DueDate != nil,
		"title_length":  len([]rune(t.Title)),
	})
	writeJSON(w, http.StatusCreated, t)
}

// CreateBulk stores every todo in the body or none of them.
func (h *Handler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var body struct {
		Todos []NewTodo `json:"todos"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(body.Todos) == 0 {
		http.Error(w, "todos required", http.StatusBadRequest)
		return
	}
	if len(body.Todos) > MaxBulkItems {
		http.Error(w, "too many todos", http.StatusBadRequest)
		return
	}

	drafts := make([]Draft, 0, len(body.Todos))
	for i, n := range body.Todos {
		d, err := n.Validate()
		if err != nil {
			http.Error(w, "todos["+strconv.Itoa(i)+"]: "+err.Error(), http.StatusBadRequest)
			return
		}
		drafts = append(drafts, d)
	}

	created, err := h.Store.CreateBulk(r.Context(), uid, drafts)
	if err != nil {
		writeError(w, "bulk create todos", err)
		return
	}

	analytics.Emit(r, h.Events, uid, "todos_bulk_created", map[string]any{
		"count": len(created),
	})
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body TodoPatch
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.empty() {
		http.Error(w, "nothing to update", http.StatusBadRequest)
		return
	}

	t, err := h.Store.Update(r.Context(), uid, id, body)
	if err != nil {
		writeError(w, "update todo", err)
		return
	}

	props := map[string]any{"priority_tier": analytics.TierFromPriority(t.Priority)}
	if body.Status != nil {
		props["status"] = string(*body.Status)
	}
	analytics.Emit(r, h.Events, uid, "todo_updated", props)
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

func (h *Handler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *Handler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Store.SetArchived(r.Context(), uid, id, archived); err != nil {
		writeError(w, "archive todo", err)
		return
	}
	t, err := h.Store.Get(r.Context(), uid, id)
	if err != nil {
		writeError(w, "archive todo", err)
		return
	}

	event := "todo_archived"
	if !archived {
		event = "todo_unarchived"
	}
	analytics.Emit(r, h.Events, uid, event, map[string]any{
		"priority_tier": analytics.TierFromPriority(t.Priority),
	})
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Store.Delete(r.Context(), uid, id); err != nil {
		writeError(w, "delete todo", err)
		return
	}

	analytics.Emit(r, h.Events, uid, "todo_deleted", nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

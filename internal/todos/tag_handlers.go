package todos

import (
	"encoding/json"
	"net/http"

	"todo-relevance-backend/internal/analytics"
)

type tagBody struct {
	Name string `json:"name"`
}

func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	tags, err := h.Store.ListTags(r.Context(), uid)
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var body tagBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	tag, err := h.Store.CreateTag(r.Context(), uid, body.Name)
	if err != nil {
		writeError(w, "create tag", err)
		return
	}

	analytics.Emit(r, h.Events, uid, "tag_created", nil)
	writeJSON(w, http.StatusCreated, tag)
}

func (h *Handler) RenameTag(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body tagBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	tag, err := h.Store.RenameTag(r.Context(), uid, id, body.Name)
	if err != nil {
		writeError(w, "rename tag", err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Store.DeleteTag(r.Context(), uid, id); err != nil {
		writeError(w, "delete tag", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// AttachTag handles POST /todos/{id}/tags/{tagID}.
func (h *Handler) AttachTag(w http.ResponseWriter, r *http.Request) {
	h.linkTag(w, r, true)
}

// DetachTag handles DELETE /todos/{id}/tags/{tagID}.
func (h *Handler) DetachTag(w http.ResponseWriter, r *http.Request) {
	h.linkTag(w, r, false)
}

func (h *Handler) linkTag(w http.ResponseWriter, r *http.Request, attach bool) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	todoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tagID, ok := pathID(w, r, "tagID")
	if !ok {
		return
	}

	op := h.Store.DetachTag
	if attach {
		op = h.Store.AttachTag
	}
	t, err := op(r.Context(), uid, todoID, tagID)
	if err != nil {
		writeError(w, "link tag", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

package settings

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"todo-relevance-backend/internal/analytics"
	"todo-relevance-backend/internal/auth"
	"todo-relevance-backend/internal/ranking"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps validation failures to 400 and everything else to 500.
func writeError(w http.ResponseWriter, op string, uid int, err error) {
	var verr *ranking.ValidationError
	if errors.As(err, &verr) {
		http.Error(w, "invalid settings values: "+verr.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("[ERROR] settings %s user_id=%d: %v", op, uid, err)
	http.Error(w, "db error", http.StatusInternalServerError)
}

func GetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		s, err := svc.Get(r.Context(), uid)
		if err != nil {
			writeError(w, "get", uid, err)
			return
		}
		writeJSON(w, s)
	}
}

// PutHandler replaces both weights. Both fields are required.
func PutHandler(svc *Service, events analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body Patch
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.AgeWeight == nil || body.PriorityWeight == nil {
			http.Error(w, "invalid settings values: ageWeight and priorityWeight are required", http.StatusBadRequest)
			return
		}

		s, err := svc.Set(r.Context(), uid, ranking.SortSettings{
			AgeWeight:      *body.AgeWeight,
			PriorityWeight: *body.PriorityWeight,
		})
		if err != nil {
			writeError(w, "put", uid, err)
			return
		}

		emitUpdated(r, events, uid, s)
		writeJSON(w, s)
	}
}

// PatchHandler merges the provided weights over the effective settings.
func PatchHandler(svc *Service, events analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body Patch
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		s, err := svc.Update(r.Context(), uid, body)
		if err != nil {
			writeError(w, "patch", uid, err)
			return
		}

		emitUpdated(r, events, uid, s)
		writeJSON(w, s)
	}
}

func DeleteHandler(svc *Service, events analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		s, err := svc.Reset(r.Context(), uid)
		if err != nil {
			writeError(w, "reset", uid, err)
			return
		}

		analytics.Emit(r, events, uid, "settings_reset", nil)
		writeJSON(w, s)
	}
}

func emitUpdated(r *http.Request, events analytics.Recorder, uid int, s ranking.SortSettings) {
	analytics.Emit(r, events, uid, "settings_updated", map[string]any{
		"age_weight":      s.AgeWeight,
		"priority_weight": s.PriorityWeight,
	})
}

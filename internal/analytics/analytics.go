package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"todo-relevance-backend/internal/db"
	"todo-relevance-backend/internal/model"
)

type CtxKey string

const (
	ctxUserIDKey CtxKey = "analytics_user_id"
)

// Envelope is what we store with every event.
type Envelope struct {
	UserID       int
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
	IPCountry    string
}

// FromRequest extracts event envelope fields from request.
// Backend-trustable fields only.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
}

func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(ctxUserIDKey)
	if v == nil {
		return 0, false
	}
	uid, ok := v.(int)
	return uid, ok
}

// SourceEventKeyFromRequest returns the optional client idempotency key.
// Events sharing a key are stored once.
func SourceEventKeyFromRequest(r *http.Request) string {
	k := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Recorder stores product analytics events. Implementations must not fail
// the calling flow: errors are for logging only.
type Recorder interface {
	Log(ctx context.Context, env Envelope, eventName string, props any, sourceEventKey string) error
}

// Store writes events to the analytics_events table.
type Store struct {
	db  *db.DB
	now func() time.Time
}

func NewStore(d *db.DB) *Store {
	return &Store{db: d, now: time.Now}
}

// Log inserts one analytics event.
// Never logs sensitive raw text; caller passes sanitized props.
func (s *Store) Log(ctx context.Context, env Envelope, eventName string, props any, sourceEventKey string) error {
	if eventName == "" {
		return nil
	}

	userID := env.UserID
	if userID == 0 {
		uid, ok := UserIDFromContext(ctx)
		if !ok {
			return nil
		}
		userID = uid
	}

	b, err := json.Marshal(props)
	if err != nil {
		return nil
	}

	query := `
		INSERT INTO analytics_events (
			event_name, event_time,
			user_id, session_id,
			platform, app_version, device_locale, ip_country,
			source_event_key,
			properties
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if sourceEventKey != "" {
		query += `
		ON CONFLICT (source_event_key) DO NOTHING`
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(query),
		eventName, s.now().UTC(),
		userID, nullIfEmpty(env.SessionID),
		env.Platform, env.AppVersion, nullIfEmpty(env.DeviceLocale), nullIfEmpty(env.IPCountry),
		nullIfEmpty(sourceEventKey),
		string(b),
	)
	if err != nil {
		log.Printf("[WARN] analytics event %s not stored: %v", eventName, err)
		return err
	}
	return nil
}

// Discard drops every event.
type Discard struct{}

func (Discard) Log(context.Context, Envelope, string, any, string) error { return nil }

// Emit records an event for the request's user with the request envelope.
func Emit(r *http.Request, rec Recorder, userID int, eventName string, props map[string]any) {
	if rec == nil {
		return
	}
	if props == nil {
		props = map[string]any{}
	}
	env := FromRequest(r)
	env.UserID = userID
	_ = rec.Log(r.Context(), env, eventName, props, SourceEventKeyFromRequest(r))
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// TierFromPriority buckets a todo priority for reporting.
func TierFromPriority(priority int) string {
	switch {
	case priority >= 8:
		return "P1"
	case priority >= model.DefaultPriority:
		return "P2"
	default:
		return "P3"
	}
}

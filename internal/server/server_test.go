package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-relevance-backend/internal/ai"
	"todo-relevance-backend/internal/testutil"
)

var rankNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec
}

func fakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/transcriptions":
			_, _ = w.Write([]byte(`{"text":"remember to renew the passport"}`))
		case "/chat/completions":
			content := `{"todos":[{"title":"Renew passport","priority":9,"transcription_segment":"renew the passport"}]}`
			b, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"message": map[string]any{"content": content}}},
			})
			_, _ = w.Write(b)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *client {
	t.Helper()
	openai := fakeOpenAI(t)
	s := New(Options{
		DB:        testutil.NewTestDB(t),
		JWTSecret: []byte("test-secret"),
		AI:        ai.New(ai.Config{APIKey: "sk-test", BaseURL: openai.URL, RetryDelay: time.Millisecond}),
		Now:       func() time.Time { return rankNow },
	})
	return &client{t: t, h: s}
}

func (c *client) register(email string) {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/auth/register", map[string]string{"email": email, "password": "correct horse"})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.NewDecoder(rec.Body).Decode(&resp))
	c.token = resp.Token
}

func TestHealth(t *testing.T) {
	c := newTestServer(t)
	rec := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := newTestServer(t)
	for _, path := range []string{"/todos", "/settings", "/tags", "/auth/me"} {
		rec := c.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRankedListingFollowsSettings(t *testing.T) {
	c := newTestServer(t)
	c.register("ranker@example.com")

	rec := c.do(http.MethodGet, "/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ageWeight":0.5,"priorityWeight":0.5}`, rec.Body.String())

	for _, todo := range []map[string]any{
		{"title": "low", "priority": 2},
		{"title": "high", "priority": 9},
		{"title": "mid", "priority": 5, "tags": []string{"work"}},
	} {
		rec := c.do(http.MethodPost, "/todos", todo)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = c.do(http.MethodPut, "/settings", map[string]float64{"ageWeight": 0.2, "priorityWeight": 0.9})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/todos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ranked []struct {
		Title string  `json:"title"`
		Score float64 `json:"score"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ranked))
	require.Len(t, ranked, 3)
	assert.Equal(t, "high", ranked[0].Title)
	assert.Equal(t, "mid", ranked[1].Title)
	assert.Equal(t, "low", ranked[2].Title)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)

	rec = c.do(http.MethodPut, "/settings", map[string]float64{"ageWeight": 1.5, "priorityWeight": 0.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodDelete, "/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ageWeight":0.5,"priorityWeight":0.5}`, rec.Body.String())

	rec = c.do(http.MethodGet, "/tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"work"`)
}

func TestUsersAreIsolated(t *testing.T) {
	alice := newTestServer(t)
	alice.register("alice@example.com")
	rec := alice.do(http.MethodPost, "/todos", map[string]any{"title": "private"})
	require.Equal(t, http.StatusCreated, rec.Code)

	bob := &client{t: t, h: alice.h}
	bob.register("bob@example.com")
	rec = bob.do(http.MethodGet, "/todos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestVoiceProcess(t *testing.T) {
	c := newTestServer(t)
	c.register("voice@example.com")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="audio"; filename="clip.webm"`)
	hdr.Set("Content-Type", "audio/webm")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("not really opus"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/voice/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"Renew passport"`)
	assert.Contains(t, rec.Body.String(), `"whisper_model":"whisper-1"`)

	// Nothing is stored until the client confirms through /todos/bulk.
	rec = c.do(http.MethodGet, "/todos", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	c := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/todos", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}

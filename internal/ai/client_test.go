package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *OpenAIClient {
	return New(Config{
		APIKey:     "sk-test",
		BaseURL:    url,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Timeout:    5 * time.Second,
	})
}

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{APIKey: "k"})
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Equal(t, DefaultModel, c.Model)
	assert.Equal(t, DefaultTranscriptionModel, c.TranscriptionModel)
	assert.Equal(t, DefaultLanguage, c.Language)
}

func TestTranscribe_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, DefaultTranscriptionModel, r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "recording.webm", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "audio-bytes", string(data))

		_, _ = w.Write([]byte(`{"text":"  buy milk tomorrow  "}`))
	}))
	defer server.Close()

	text, err := newTestClient(server.URL).Transcribe(context.Background(), []byte("audio-bytes"), "recording.webm", "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, "buy milk tomorrow", text)
}

func TestExtractTodos_Success(t *testing.T) {
	content := `{"todos":[
		{"title":"Call the dentist","priority":7,"due_date":"2026-10-20","tags":["health"],"transcription_segment":"call the dentist tomorrow"},
		{"title":"Pick up dry cleaning","transcription_segment":"pick up dry cleaning"}
	]}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "current_date: 2026-10-19")
		assert.Contains(t, req.Messages[1].Content, "call the dentist tomorrow")

		_, _ = w.Write([]byte(chatBody(content)))
	}))
	defer server.Close()

	today := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	todos, err := newTestClient(server.URL).ExtractTodos(context.Background(), "call the dentist tomorrow and pick up dry cleaning", today)
	require.NoError(t, err)
	require.Len(t, todos, 2)

	assert.Equal(t, "Call the dentist", todos[0].Title)
	assert.Equal(t, 7, todos[0].Priority)
	require.NotNil(t, todos[0].DueDate)
	assert.Equal(t, "2026-10-20", *todos[0].DueDate)
	assert.Equal(t, []string{"health"}, todos[0].Tags)

	assert.Equal(t, DefaultExtractedPriority, todos[1].Priority)
	assert.Nil(t, todos[1].DueDate)
}

func TestExtractTodos_InvalidOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatBody(`{"todos":[{"title":"x","priority":42,"transcription_segment":"x"}]}`)))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ExtractTodos(context.Background(), "x", time.Now())
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","code":"invalid_api_key"}}`, ErrInvalidAPIKey},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","code":"rate_limit_exceeded"}}`, ErrRateLimited},
		{"quota", http.StatusTooManyRequests, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`, ErrQuotaExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Transcribe(context.Background(), []byte("a"), "a.webm", "audio/webm")
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, int32(1), calls.Load(), "final errors are not retried")
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"text":"hello"}`))
	}))
	defer server.Close()

	text, err := newTestClient(server.URL).Transcribe(context.Background(), []byte("a"), "a.webm", "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Transcribe(context.Background(), []byte("a"), "a.webm", "audio/webm")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "overloaded", apiErr.Message)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_BadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad audio"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Transcribe(context.Background(), []byte("a"), "a.webm", "audio/webm")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_NotConfigured(t *testing.T) {
	_, err := New(Config{}).Transcribe(context.Background(), []byte("a"), "a.webm", "audio/webm")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseExtraction(t *testing.T) {
	todos, err := ParseExtraction([]byte(`{"todos":[
		{"title":"  Write report ","description":" ","transcription_segment":"write the report"},
		{"title":"   ","transcription_segment":"um"}
	]}`))
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "Write report", todos[0].Title)
	assert.Nil(t, todos[0].Description)
	assert.Equal(t, DefaultExtractedPriority, todos[0].Priority)

	empty, err := ParseExtraction([]byte(`{"todos":[]}`))
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, raw := range []string{
		`not json`,
		`{}`,
		`{"todos":[{"transcription_segment":"x"}]}`,
		`{"todos":[{"title":"` + strings.Repeat("x", 101) + `","transcription_segment":"x"}]}`,
	} {
		_, err := ParseExtraction([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidOutput, raw)
	}
}

func TestBuildExtractionPrompt(t *testing.T) {
	p := BuildExtractionPrompt("  call mom  ", time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "current_date: 2026-03-09\ntranscription: \"call mom\"\n", p)
}

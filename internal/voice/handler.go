// Package voice turns a recorded audio clip into proposed todos.
package voice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"todo-relevance-backend/internal/ai"
	"todo-relevance-backend/internal/analytics"
	"todo-relevance-backend/internal/auth"
)

// MaxAudioBytes is the largest accepted upload.
const MaxAudioBytes = 25 << 20

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error)
}

type Extractor interface {
	ExtractTodos(ctx context.Context, transcript string, today time.Time) ([]ai.ExtractedTodo, error)
}

type Handler struct {
	Transcriber Transcriber
	Extractor   Extractor
	Events      analytics.Recorder

	// Reported in processing_metadata.
	Model              string
	TranscriptionModel string

	Now      func() time.Time
	MaxBytes int64
}

func NewHandler(client *ai.OpenAIClient, events analytics.Recorder) *Handler {
	return &Handler{
		Transcriber:        client,
		Extractor:          client,
		Events:             events,
		Model:              client.Model,
		TranscriptionModel: client.TranscriptionModel,
		Now:                time.Now,
		MaxBytes:           MaxAudioBytes,
	}
}

type ProcessingMetadata struct {
	Timestamp           time.Time `json:"timestamp"`
	TranscriptionLength int       `json:"transcription_length"`
	TodosCount          int       `json:"todos_count"`
	ModelUsed           string    `json:"model_used"`
	WhisperModel        string    `json:"whisper_model"`
}

type ProcessResponse struct {
	Success            bool               `json:"success"`
	Todos              []ai.ExtractedTodo `json:"todos"`
	Transcription      string             `json:"transcription"`
	ProcessingMetadata ProcessingMetadata `json:"processing_metadata"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// Process handles POST /voice/process. Extracted todos are returned for
// confirmation and never stored here.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	audio, contentType, status, msg := h.readAudio(w, r)
	if status != 0 {
		fail(w, status, msg)
		return
	}

	filename := audioFilename(contentType)
	log.Printf("[INFO] voice: user=%d bytes=%d type=%s", uid, len(audio), contentType)

	transcript, err := h.Transcriber.Transcribe(r.Context(), audio, filename, contentType)
	if err != nil {
		writeUpstreamError(w, "transcribe", err)
		return
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		fail(w, http.StatusBadRequest, "No speech detected in the recording")
		return
	}

	now := h.Now()
	todos, err := h.Extractor.ExtractTodos(r.Context(), transcript, now)
	if err != nil {
		writeUpstreamError(w, "extract", err)
		return
	}
	if len(todos) == 0 {
		fail(w, http.StatusBadRequest, "No actionable todos could be extracted from the recording")
		return
	}

	analytics.Emit(r, h.Events, uid, "voice_processed", map[string]any{
		"audio_bytes":          len(audio),
		"transcription_length": len(transcript),
		"todos_count":          len(todos),
	})

	writeJSON(w, http.StatusOK, ProcessResponse{
		Success:       true,
		Todos:         todos,
		Transcription: transcript,
		ProcessingMetadata: ProcessingMetadata{
			Timestamp:           now.UTC(),
			TranscriptionLength: len(transcript),
			TodosCount:          len(todos),
			ModelUsed:           h.Model,
			WhisperModel:        h.TranscriptionModel,
		},
	})
}

// readAudio pulls the "audio" part out of the form. A non-zero status
// means the request was rejected with msg.
func (h *Handler) readAudio(w http.ResponseWriter, r *http.Request) ([]byte, string, int, string) {
	limit := h.MaxBytes
	if limit <= 0 {
		limit = MaxAudioBytes
	}
	// Leave room for multipart framing and other fields.
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", http.StatusRequestEntityTooLarge, "Audio file is too large"
		}
		return nil, "", http.StatusBadRequest, "No audio file provided"
	}

	file, hdr, err := r.FormFile("audio")
	if err != nil {
		return nil, "", http.StatusBadRequest, "No audio file provided"
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		log.Printf("[WARN] voice: reading upload: %v", err)
		return nil, "", http.StatusBadRequest, "Could not read audio file"
	}
	if int64(len(audio)) > limit {
		return nil, "", http.StatusRequestEntityTooLarge, "Audio file is too large"
	}
	if len(audio) == 0 {
		return nil, "", http.StatusBadRequest, "Audio file is empty"
	}

	contentType := mediaType(hdr.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mediaType(mimetype.Detect(audio).String())
	}
	if !isAudio(contentType) {
		return nil, "", http.StatusBadRequest, "Invalid file type. Please upload an audio file."
	}
	return audio, contentType, 0, ""
}

func mediaType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

// isAudio accepts audio/* and the webm and mp4 containers that browsers
// label as video when recording sound only.
func isAudio(contentType string) bool {
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		return true
	case contentType == "video/webm", contentType == "video/mp4":
		return true
	}
	return false
}

// audioFilename picks an extension the transcription endpoint recognises.
func audioFilename(contentType string) string {
	switch {
	case strings.Contains(contentType, "webm"):
		return "recording.webm"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"):
		return "recording.m4a"
	case strings.Contains(contentType, "wav"):
		return "recording.wav"
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return "recording.mp3"
	}
	return "recording.webm"
}

func writeUpstreamError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		log.Printf("[ERROR] voice %s: %v", op, err)
		fail(w, http.StatusInternalServerError, "OpenAI API key is not configured")
	case errors.Is(err, ai.ErrInvalidAPIKey):
		log.Printf("[ERROR] voice %s: %v", op, err)
		fail(w, http.StatusInternalServerError, "OpenAI API key is invalid")
	case errors.Is(err, ai.ErrQuotaExceeded):
		log.Printf("[WARN] voice %s: %v", op, err)
		fail(w, http.StatusTooManyRequests, "OpenAI API quota exceeded. Please try again later.")
	case errors.Is(err, ai.ErrRateLimited):
		log.Printf("[WARN] voice %s: %v", op, err)
		fail(w, http.StatusTooManyRequests, "Too many requests. Please try again in a moment.")
	default:
		log.Printf("[ERROR] voice %s: %v", op, err)
		fail(w, http.StatusInternalServerError, "Failed to process recording. Please try again.")
	}
}

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	DefaultBaseURL            = "https://api.openai.com/v1"
	DefaultModel              = "gpt-4o-mini"
	DefaultTranscriptionModel = "whisper-1"
	DefaultLanguage           = "en"
)

// Config holds OpenAI connection settings. Zero values select defaults.
type Config struct {
	APIKey             string
	BaseURL            string
	Model              string
	TranscriptionModel string
	Language           string
	MaxRetries         int
	RetryDelay         time.Duration
	Timeout            time.Duration
}

type OpenAIClient struct {
	APIKey             string
	BaseURL            string
	Model              string
	TranscriptionModel string
	Language           string

	maxRetries int
	retryDelay time.Duration
	http       *http.Client
}

func New(cfg Config) *OpenAIClient {
	c := &OpenAIClient{
		APIKey:             cfg.APIKey,
		BaseURL:            strings.TrimRight(cfg.BaseURL, "/"),
		Model:              cfg.Model,
		TranscriptionModel: cfg.TranscriptionModel,
		Language:           cfg.Language,
		maxRetries:         cfg.MaxRetries,
		retryDelay:         cfg.RetryDelay,
		http:               &http.Client{Timeout: cfg.Timeout},
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.TranscriptionModel == "" {
		c.TranscriptionModel = DefaultTranscriptionModel
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryDelay <= 0 {
		c.retryDelay = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		c.http.Timeout = 60 * time.Second
	}
	return c
}

// Transcribe sends audio to the transcription endpoint and returns the text.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreatePart(fileHeader(filename, contentType))
	if err != nil {
		return "", fmt.Errorf("creating multipart file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	for k, v := range map[string]string{
		"model":           c.TranscriptionModel,
		"language":        c.Language,
		"response_format": "json",
	} {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("writing %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	respBody, err := c.post(ctx, "/audio/transcriptions", mw.FormDataContentType(), body.Bytes())
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: decoding transcription: %v", ErrInvalidOutput, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractTodos asks the chat model for the actionable todos in transcript.
// today anchors relative due dates.
func (c *OpenAIClient) ExtractTodos(ctx context.Context, transcript string, today time.Time) ([]ExtractedTodo, error) {
	req := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: BuildExtractionPrompt(transcript, today)},
		},
	}
	req.ResponseFormat.Type = "json_object"

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	respBody, err := c.post(ctx, "/chat/completions", "application/json", data)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding completion: %v", ErrInvalidOutput, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrInvalidOutput)
	}

	return ParseExtraction([]byte(resp.Choices[0].Message.Content))
}

// post sends body to path, retrying network failures and 5xx responses.
func (c *OpenAIClient) post(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	if c.APIKey == "" {
		return nil, ErrNotConfigured
	}

	var out []byte
	err := retry.Do(
		func() error {
			b, err := c.doRequest(ctx, path, contentType, body)
			if err != nil {
				return err
			}
			out = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries+1)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[WARN] openai %s attempt %d failed: %v", path, n+1, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OpenAIClient) doRequest(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", contentType)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, classify(httpResp.StatusCode, respBody)
	}
	return respBody, nil
}

// classify turns an error response into a sentinel or *APIError.
func classify(status int, body []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	code := payload.Error.Code
	if code == "" {
		code = payload.Error.Type
	}

	switch {
	case status == http.StatusUnauthorized || code == "invalid_api_key":
		return ErrInvalidAPIKey
	case code == "insufficient_quota":
		return ErrQuotaExceeded
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	}

	msg := payload.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return &APIError{Status: status, Code: code, Message: msg}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}
	// Sentinels are final; anything else is a transport failure.
	return !errors.Is(err, ErrInvalidAPIKey) &&
		!errors.Is(err, ErrRateLimited) &&
		!errors.Is(err, ErrQuotaExceeded)
}

func fileHeader(filename, contentType string) textproto.MIMEHeader {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)},
		"Content-Type":        {contentType},
	}
}

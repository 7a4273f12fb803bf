package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config holds the OpenAI connection settings.
type Config struct {
	APIKey          string
	BaseURL         string // default https://api.openai.com
	Model           string // default gpt-5-mini
	TranscribeModel string // default gpt-4o-mini-transcribe
	Timeout         time.Duration
	MaxRetries      int
}

// Client is a minimal OpenAI Responses-API client. Only the calls this
// backend needs are implemented: structured JSON generation, plain text
// generation, and audio transcription.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient builds a Client, filling zero-value config fields with defaults.
func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5-mini"
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "gpt-4o-mini-transcribe"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With("component", "openai"),
	}, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var he *httpError
	if errors.As(err, &he) {
		return he.StatusCode == 408 || he.StatusCode == 429 || (he.StatusCode >= 500 && he.StatusCode <= 599)
	}
	return false
}

// jitter returns base varied by +/- 20%.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := 0.2 * base.Seconds()
	v := base.Seconds() - delta + rand.Float64()*2*delta
	return time.Duration(v * float64(time.Second))
}

func (c *Client) doOnce(ctx context.Context, path string, body []byte, contentType string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// do posts with retries and exponential backoff, honoring Retry-After.
func (c *Client) do(ctx context.Context, path string, body []byte, contentType string, out any) error {
	backoff := time.Second

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, raw, err := c.doOnce(ctx, path, body, contentType)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai: decode response: %w", uErr)
			}
			return nil
		}

		if !isRetryable(err) || attempt == c.cfg.MaxRetries {
			return err
		}

		sleep := backoff
		if resp != nil {
			if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
					sleep = time.Duration(secs) * time.Second
				}
			}
		}
		if sleep > 10*time.Second {
			sleep = 10 * time.Second
		}
		sleep = jitter(sleep)

		c.log.Warn("request retrying",
			"path", path,
			"attempt", attempt+1,
			"sleep", sleep.String(),
			"error", err.Error(),
		)
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}

type responsesRequest struct {
	Model string          `json:"model"`
	Input []responseInput `json:"input"`
	Text  *responsesText  `json:"text,omitempty"`
	Store bool            `json:"store"`
}

type responseInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesText struct {
	Format map[string]any `json:"format"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func (r responsesResponse) outputText() string {
	var sb strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type == "output_text" {
				sb.WriteString(content.Text)
			}
		}
	}
	return sb.String()
}

// GenerateJSON asks the model for a structured response matching schema and
// unmarshals it into out.
func (c *Client) GenerateJSON(ctx context.Context, prompt, schemaName string, schema map[string]any, out any) error {
	req := responsesRequest{
		Model: c.cfg.Model,
		Input: []responseInput{{Role: "user", Content: prompt}},
		Text: &responsesText{Format: map[string]any{
			"type":   "json_schema",
			"name":   schemaName,
			"schema": schema,
			"strict": true,
		}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	var resp responsesResponse
	if err := c.do(ctx, "/v1/responses", body, "application/json", &resp); err != nil {
		return err
	}
	if resp.Refusal != "" {
		return fmt.Errorf("openai: model refused: %s", resp.Refusal)
	}
	text := resp.outputText()
	if text == "" {
		return errors.New("openai: no output text in response")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("openai: parse model JSON: %w", err)
	}
	return nil
}

// GenerateText asks the model for a plain text response.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	req := responsesRequest{
		Model: c.cfg.Model,
		Input: []responseInput{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var resp responsesResponse
	if err := c.do(ctx, "/v1/responses", body, "application/json", &resp); err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("openai: model refused: %s", resp.Refusal)
	}
	text := resp.outputText()
	if text == "" {
		return "", errors.New("openai: no output text in response")
	}
	return text, nil
}

// Transcribe sends audio bytes to the transcription endpoint and returns the
// recognized text. language is an ISO 639-1 hint like "ja".
func (c *Client) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	_ = writer.WriteField("model", c.cfg.TranscribeModel)
	_ = writer.WriteField("response_format", "text")
	if language != "" {
		_ = writer.WriteField("language", language)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return strings.TrimSpace(string(raw)), nil
}

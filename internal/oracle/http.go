package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultBackoff     = 500 * time.Millisecond
	maxResponseBytes   = 4 << 20
	arrayWrapperKey    = "result"
)

// HTTPClient calls an OpenAI-compatible chat completions endpoint and asks for
// a JSON-schema constrained response. Transport failures and retryable
// statuses are retried up to MaxRetries times; validation failures never are.
type HTTPClient struct {
	endpoint   string
	model      string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	http       *http.Client
	logger     *slog.Logger
}

// HTTPOption customizes an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) HTTPOption {
	return func(c *HTTPClient) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many extra attempts transport failures get.
func WithRetries(n int, backoff time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if n >= 0 {
			c.maxRetries = n
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithHTTPClient swaps the underlying *http.Client (tests).
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger routes retry diagnostics to logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPClient builds a client for endpoint and model.
func NewHTTPClient(endpoint, model string, opts ...HTTPOption) (*HTTPClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("oracle: endpoint is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("oracle: model is required")
	}
	c := &HTTPClient{
		endpoint: endpoint,
		model:    strings.TrimSpace(model),
		timeout:  defaultHTTPTimeout,
		backoff:  defaultBackoff,
		http:     &http.Client{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type jsonSchemaSpec struct {
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
	Temperature    float64        `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Infer sends req and returns the structured payload.
func (c *HTTPClient) Infer(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.Shape == nil || req.Shape.Schema == nil {
		return nil, Validation(req.Stage, fmt.Errorf("request declares no response shape"))
	}
	body, err := c.marshal(req)
	if err != nil {
		return nil, Transport(req.Stage, err)
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("oracle retry", "stage", req.Stage, "attempt", attempt, "error", lastErr)
			if err := sleep(ctx, c.backoff*time.Duration(attempt)); err != nil {
				return nil, Classify(req.Stage, err)
			}
		}
		raw, retry, err := c.attempt(ctx, req, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *HTTPClient) marshal(req Request) ([]byte, error) {
	schema := req.Shape.Schema
	if req.Shape.IsArray() {
		schema = Object(map[string]*jsonschema.Schema{arrayWrapperKey: schema})
	}
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchemaSpec{Name: req.Shape.Name, Schema: schema},
		},
	}
	return json.Marshal(payload)
}

// attempt performs one round trip. The bool reports whether the failure is
// worth retrying.
func (c *HTTPClient) attempt(ctx context.Context, req Request, body []byte) (json.RawMessage, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, Transport(req.Stage, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, true, Timeout(req.Stage, err)
		}
		return nil, true, Classify(req.Stage, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, Transport(req.Stage, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, Transport(req.Stage, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(data)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, Transport(req.Stage, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(data)))
	}
	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, false, Validation(req.Stage, fmt.Errorf("parse completion: %w", err))
	}
	if parsed.Error != nil {
		return nil, false, Transport(req.Stage, errors.New(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return nil, false, Validation(req.Stage, fmt.Errorf("completion has no choices"))
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if !json.Valid([]byte(content)) {
		return nil, false, Validation(req.Stage, fmt.Errorf("completion content is not JSON: %s", snippet([]byte(content))))
	}
	raw := json.RawMessage(content)
	if req.Shape.IsArray() {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, false, Validation(req.Stage, fmt.Errorf("unwrap %s: %w", arrayWrapperKey, err))
		}
		inner, ok := wrapper[arrayWrapperKey]
		if !ok {
			return nil, false, Validation(req.Stage, fmt.Errorf("completion is missing %q", arrayWrapperKey))
		}
		raw = inner
	}
	return raw, false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(data []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(data))
	if len(text) > limit {
		return text[:limit] + "…"
	}
	return text
}

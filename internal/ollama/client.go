// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ollama-tui/internal/logging"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches any ClientError of the same type, so errors.Is(err,
// ErrModelNotFound) works for errors built with a custom message.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Type == e.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	// ErrTypeNotRunning: nothing is listening at the base URL.
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	// ErrTypeConnection: the transport failed (reset, DNS, broken pipe).
	ErrTypeConnection
	// ErrTypeHTTPStatus: the server answered with a non-2xx status.
	ErrTypeHTTPStatus
	// ErrTypeProtocol: the response body could not be understood.
	ErrTypeProtocol
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeNotRunning:
		return "not_running"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeModelNotFound:
		return "model_not_found"
	case ErrTypeConnection:
		return "connection"
	case ErrTypeHTTPStatus:
		return "http_status"
	case ErrTypeProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
	ErrConnection    = &ClientError{Type: ErrTypeConnection, Message: "connection failed"}
	ErrProtocol      = &ClientError{Type: ErrTypeProtocol, Message: "malformed response"}
)

// IsNotRunning checks if the error indicates Ollama is not running.
func IsNotRunning(err error) bool { return errors.Is(err, ErrNotRunning) }

// IsModelNotFound checks if the error indicates the model was not found.
func IsModelNotFound(err error) bool { return errors.Is(err, ErrModelNotFound) }

// IsProtocol checks if the error comes from an unreadable response body.
func IsProtocol(err error) bool { return errors.Is(err, ErrProtocol) }

// IsTransport reports whether err is a failure to reach or stay connected
// to the server, as opposed to an answer the server gave.
func IsTransport(err error) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Type {
	case ErrTypeNotRunning, ErrTypeTimeout, ErrTypeConnection:
		return true
	}
	return false
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Timeout for non-streaming requests (default: 30s).
	Timeout time.Duration

	// MaxAttempts bounds connection attempts per request (default: 3).
	MaxAttempts int

	// RetryDelay is the first backoff, doubled per attempt up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		BaseURL:       "http://localhost:11434",
		Timeout:       30 * time.Second,
		MaxAttempts:   3,
		RetryDelay:    250 * time.Millisecond,
		MaxRetryDelay: 2 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API. It is safe for
// concurrent use.
type Client struct {
	config ClientConfig
	// httpClient carries the request timeout; streamClient has none because
	// a stream legitimately runs for minutes. Streams end through their ctx.
	httpClient   *http.Client
	streamClient *http.Client
	log          *zap.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client, filling zero config values with defaults.
func NewClient(config ClientConfig) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = def.RetryDelay
	}
	if config.MaxRetryDelay == 0 {
		config.MaxRetryDelay = def.MaxRetryDelay
	}
	if config.MaxRetryDelay < config.RetryDelay {
		config.MaxRetryDelay = config.RetryDelay
	}

	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
		log:          logging.Named("ollama"),
		sleep:        sleepCtx,
	}
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string { return c.config.BaseURL }

// Backoff returns the delay before retry number attempt (1-based).
func (c *Client) Backoff(attempt int) time.Duration {
	d := c.config.RetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.config.MaxRetryDelay {
			return c.config.MaxRetryDelay
		}
	}
	return d
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do sends a request, retrying only transport failures that happen before
// a response arrives. Non-2xx answers are converted into ClientErrors and
// the body is closed. On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, payload any) (*http.Response, error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
		}
		body = b
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.Backoff(attempt - 1)
			c.log.Debug("retrying request",
				zap.String("path", path), zap.Int("attempt", attempt), zap.Duration("backoff", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = classifyTransport(err)
			c.log.Warn("request failed",
				zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := statusError(resp)
			resp.Body.Close()
			return nil, err
		}
		return resp, nil
	}
	return nil, lastErr
}

func classifyTransport(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: err}
	default:
		return &ClientError{Type: ErrTypeConnection, Message: "connection failed", Cause: err}
	}
}

func statusError(resp *http.Response) error {
	msg := resp.Status
	var er errorResponse
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			msg = er.Error
		}
	}
	t := ErrTypeHTTPStatus
	if resp.StatusCode == http.StatusNotFound {
		t = ErrTypeModelNotFound
	}
	return &ClientError{Type: t, Message: msg, StatusCode: resp.StatusCode}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// =============================================================================
// HEALTH AND MODEL MANAGEMENT
// =============================================================================

// CheckRunning verifies the server answers at the base URL. It makes a
// single attempt.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// ListModels returns the installed models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeProtocol, Message: "failed to decode model list", Cause: err}
	}
	return result.Models, nil
}

// DeleteModel removes an installed model.
func (c *Client) DeleteModel(ctx context.Context, name string) error {
	resp, err := c.do(ctx, c.httpClient, http.MethodDelete, "/api/delete", nameRequest{Name: name})
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	resp.Body.Close()
	c.log.Info("model deleted", zap.String("model", name))
	return nil
}

// PullModel downloads a model, calling onProgress for every progress line.
// It returns once the server reports success.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	stream := true
	resp, err := c.do(ctx, c.streamClient, http.MethodPost, "/api/pull", nameRequest{Name: name, Stream: &stream})
	if err != nil {
		return fmt.Errorf("pull %s: %w", name, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var p PullProgress
		if err := dec.Decode(&p); err == io.EOF {
			return &ClientError{Type: ErrTypeProtocol, Message: "pull " + name + " ended before success"}
		} else if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				return &ClientError{Type: ErrTypeProtocol, Message: "malformed pull progress", Cause: err}
			}
			return &ClientError{Type: ErrTypeConnection, Message: "reading pull progress", Cause: err}
		}
		if p.Error != "" {
			return &ClientError{Type: ErrTypeHTTPStatus, Message: p.Error}
		}
		if onProgress != nil {
			onProgress(p)
		}
		if p.Done() {
			c.log.Info("model pulled", zap.String("model", name))
			return nil
		}
	}
}

// =============================================================================
// CHAT STREAMING
// =============================================================================

// OpenChatStream starts a streaming chat request. The initial connection is
// retried; once it returns, reading the stream is never retried. Cancelling
// ctx aborts the stream.
func (c *Client) OpenChatStream(ctx context.Context, req ChatRequest) (*ChatStream, error) {
	req.Stream = true
	resp, err := c.do(ctx, c.streamClient, http.MethodPost, "/api/chat", req)
	if err != nil {
		return nil, err
	}
	c.log.Debug("chat stream opened", zap.String("model", req.Model), zap.Int("messages", len(req.Messages)))
	return newChatStream(ctx, resp.Body), nil
}

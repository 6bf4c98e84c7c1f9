// Package transport speaks JSON over HTTP to the time-tracking API. It owns
// authentication, request correlation ids, bounded retries and the mapping
// of status codes onto the error kinds the entity layer reacts to.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.track.toggl.com/api/v8"

const (
	maxAttempts    = 3
	defaultTimeout = 30 * time.Second
	retryBackoff   = time.Second
)

// Transport issues one API request and returns the raw JSON response body.
// Implementations must treat the request as idempotent for GET and DELETE
// and may retry throttled or reset requests.
type Transport interface {
	Request(ctx context.Context, method, path string, body any) (json.RawMessage, error)
}

// Config configures the HTTP transport. APIToken wins over
// Username/Password when both are set.
type Config struct {
	BaseURL  string
	APIToken string
	Username string
	Password string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// HTTP is the production Transport.
type HTTP struct {
	baseURL string
	user    string
	pass    string
	client  *http.Client
	log     zerolog.Logger
}

// New builds an HTTP transport from cfg.
func New(cfg Config) *HTTP {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	user, pass := cfg.Username, cfg.Password
	if cfg.APIToken != "" {
		user, pass = cfg.APIToken, "api_token"
	}
	return &HTTP{
		baseURL: base,
		user:    user,
		pass:    pass,
		client:  &http.Client{Timeout: timeout},
		log:     cfg.Logger,
	}
}

// Request sends one JSON request. Throttled (429) and connection-reset
// failures are retried up to three attempts with a short backoff; all other
// failures surface immediately as classified errors.
func (t *HTTP) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		payload = encoded
	}

	requestID := uuid.NewString()
	log := t.log.With().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Logger()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			log.Debug().Int("attempt", attempt).Msg("retrying request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt-1)):
			}
		}

		raw, err := t.do(ctx, method, path, payload, requestID)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("request failed, will retry")
	}
	log.Debug().Err(lastErr).Msg("request failed")
	return nil, lastErr
}

func (t *HTTP) do(ctx context.Context, method, path string, payload []byte, requestID string) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if t.user != "" {
		req.SetBasicAuth(t.user, t.pass)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	t.log.Debug().
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// retryable reports whether another attempt could succeed: throttling and
// reset connections, nothing else.
func retryable(err error) bool {
	if errors.Is(err, ErrThrottled) {
		return true
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

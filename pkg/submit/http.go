// Package submit holds the submission adapters the wizard hands completed
// answers to.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/zdunecki/onboarding/pkg/wizard"
)

// FinalRoute is the route the complete answer set is posted to.
const FinalRoute = "onboarding"

// HTTP posts payloads as JSON to the onboarding backend.
type HTTP struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
	log     *zap.Logger
}

// Options tune the HTTP adapter. Zero values pick the defaults.
type Options struct {
	Timeout time.Duration
	Retries int
	// RetryWait is the minimum backoff between attempts.
	RetryWait time.Duration
	Logger    *zap.Logger
}

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (%d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("API request failed with status %d", e.Code)
}

// apiResponse is the envelope the backend answers with.
type apiResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewHTTP creates an adapter posting to baseURL with the session token.
func NewHTTP(baseURL, token string, opts Options) (*HTTP, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.HTTPClient.Timeout = opts.Timeout
	client.RetryMax = opts.Retries
	client.RetryWaitMin = opts.RetryWait
	client.RetryWaitMax = opts.RetryWait * 8
	client.Logger = leveledLogger{log.Named("http").Sugar()}
	// Hand back the last response so its status and body reach the caller.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		log:     log,
	}, nil
}

// URL returns the route a payload is posted to.
func (h *HTTP) URL(p wizard.Payload) string {
	route := p.Step + "Details"
	if p.Final {
		route = FinalRoute
	}
	return fmt.Sprintf("%s/api/user/%s", h.baseURL, route)
}

// Submit posts p. Step payloads carry the step's answers as the body; the
// final payload carries the whole Payload.
func (h *HTTP) Submit(ctx context.Context, p wizard.Payload) error {
	var body interface{} = p.Answers
	if p.Final {
		body = p
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, h.URL(p), jsonData)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", h.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post %s: %w", p.Step, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiResp apiResponse
		_ = json.Unmarshal(respBody, &apiResp)
		msg := apiResp.Message
		if msg == "" {
			msg = apiResp.Error
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	h.log.Debug("Posted answers", zap.String("step", p.Step), zap.Int("status", resp.StatusCode))
	return nil
}

// leveledLogger routes retryablehttp's logging into zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

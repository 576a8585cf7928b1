// Package restapi talks to the portal's student quiz API.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quiz-attempt/internal/auth"
	"quiz-attempt/internal/domain"
)

const (
	DefaultTimeout  = 10 * time.Second
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 4 << 20
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// SubmitBody selects how submitted responses are framed.
type SubmitBody string

const (
	// SubmitEnvelope sends {"attemptId": ..., "responses": [...]}.
	SubmitEnvelope SubmitBody = "envelope"
	// SubmitList sends the bare [{"id", "response"}] list; the attempt is only in the path.
	SubmitList SubmitBody = "list"
)

// Client implements the attempt backend and the result loader over HTTP.
type Client struct {
	baseURL    string
	http       *http.Client
	auth       *auth.Store
	submitBody SubmitBody
	log        zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithSubmitBody picks the submit framing. Unknown values keep SubmitEnvelope.
func WithSubmitBody(body SubmitBody) Option {
	return func(c *Client) {
		if body == SubmitList {
			c.submitBody = SubmitList
		}
	}
}

// NewClient talks to baseURL. Requests use the credentials attached to their context
// with auth.NewContext, falling back to store, which may be nil.
func NewClient(baseURL string, store *auth.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: DefaultTimeout},
		auth:       store,
		submitBody: SubmitEnvelope,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartAttempt creates an attempt for the quiz.
func (c *Client) StartAttempt(ctx context.Context, quizID string) (domain.StartedAttempt, error) {
	path := "/api/student/quizzes/" + url.PathEscape(quizID) + "/attempt"
	var resp startResponse
	if err := c.do(ctx, http.MethodPost, path, nil, func(body []byte) error {
		return json.Unmarshal(body, &resp)
	}); err != nil {
		return domain.StartedAttempt{}, err
	}
	return resp.toDomain(quizID)
}

// SubmitAttempt sends every question's response and returns the score.
func (c *Client) SubmitAttempt(ctx context.Context, submission domain.Submission) (domain.SubmitResult, error) {
	path := "/api/student/quizzes/attempt/" + url.PathEscape(submission.AttemptID) + "/submit"
	req := newSubmitRequest(submission)
	var payload any = req
	if c.submitBody == SubmitList {
		payload = req.Responses
	}
	var result domain.SubmitResult
	err := c.do(ctx, http.MethodPost, path, payload, func(body []byte) error {
		var err error
		result, err = decodeSubmitResult(body, submission.AttemptID)
		return err
	})
	return result, err
}

// FetchResult loads a finished attempt.
func (c *Client) FetchResult(ctx context.Context, attemptID string) (domain.AttemptResult, error) {
	path := "/api/student/attempts/" + url.PathEscape(attemptID)
	var res wireResult
	if err := c.do(ctx, http.MethodGet, path, nil, func(body []byte) error {
		return json.Unmarshal(body, &res)
	}); err != nil {
		return domain.AttemptResult{}, err
	}
	return res.toDomain(attemptID), nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, decode func([]byte) error) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	store := c.credentials(ctx)
	if store != nil {
		if token := store.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log := c.log.With().Str("request_id", requestID).Str("method", method).Str("path", path).Logger()
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("backend request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	log.Debug().Int("status", resp.StatusCode).Dur("took", time.Since(started)).Msg("backend request")

	if resp.StatusCode == http.StatusUnauthorized {
		if store != nil {
			store.Clear()
		}
		return errors.Join(domain.ErrUnauthorized, &APIError{Status: resp.StatusCode, Message: errorMessage(body)})
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	if decode == nil {
		return nil
	}
	if err := decode(body); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) credentials(ctx context.Context) *auth.Store {
	if store, ok := auth.FromContext(ctx); ok {
		return store
	}
	return c.auth
}

// StatusCode exposes the HTTP status to callers that only see an error.
func (e *APIError) StatusCode() int {
	return e.Status
}

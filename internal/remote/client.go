// Package remote is the HTTP client for the backend-as-a-service that owns
// users, posts, comments and votes.
package remote

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

	"synerthree/internal/models"
	"synerthree/internal/observability"
	"synerthree/internal/session"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// IdempotencyHeader carries the provisional id of an optimistic mutation.
const IdempotencyHeader = "Idempotency-Key"

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to the remote backend. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	log     *observability.RemoteLogger
}

// NewClient creates a Client for baseURL. Outbound requests are traced.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: observability.NewRemoteLogger("backend"),
	}
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	token  string
	// auth makes the call fail with session.ErrNoSession when token is empty.
	auth           bool
	body           any
	idempotencyKey string
}

func (c *Client) do(ctx context.Context, req call, out any) (err error) {
	if req.auth && req.token == "" {
		return session.ErrNoSession
	}

	ctx, span := observability.StartSpan(ctx, "remote", req.op,
		attribute.String("http.method", req.method),
		attribute.String("remote.path", req.path),
	)
	track := observability.TrackRemote(req.op)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			c.log.LogError(ctx, req.op, err)
		}
		track(outcome)
		observability.EndSpan(span, err)
	}()

	var body io.Reader
	if req.body != nil {
		payload, merr := json.Marshal(req.body)
		if merr != nil {
			return fmt.Errorf("%s: encode request: %w", req.op, merr)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set(IdempotencyHeader, req.idempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return models.NewUpstreamError("Backend unavailable", err)
	}
	defer resp.Body.Close()

	c.log.LogCall(ctx, req.op, resp.StatusCode, map[string]interface{}{"path": req.path})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(req.op, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return models.NewUpstreamError("Backend returned an empty response", err)
		}
		return models.NewUpstreamError("Backend returned an unreadable response", err)
	}
	return nil
}

// statusError maps a backend status onto the gateway's error codes. The
// StatusError is kept as the cause so callers can inspect it with errors.As.
func statusError(op string, status int, body string) error {
	cause := &StatusError{Op: op, Status: status, Body: body}
	switch status {
	case http.StatusUnauthorized:
		if op == "login" {
			return &models.AppError{Code: models.CodeUnauthenticated, Message: "Invalid email or password", Err: cause}
		}
		return &models.AppError{Code: models.CodeUnauthenticated, Message: "Your session has expired, please log in again", Err: cause}
	case http.StatusForbidden:
		return &models.AppError{Code: models.CodeForbidden, Message: "You are not allowed to do that", Err: cause}
	case http.StatusNotFound:
		return &models.AppError{Code: models.CodeNotFound, Message: "Not found", Err: cause}
	case http.StatusConflict:
		return &models.AppError{Code: models.CodeConflict, Message: "The request conflicts with the current state", Err: cause}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &models.AppError{Code: models.CodeValidation, Message: "The backend rejected the request", Err: cause}
	default:
		return models.NewUpstreamError("Backend request failed", cause)
	}
}

// IsConflict reports whether err is a backend 409.
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusConflict
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

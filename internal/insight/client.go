// Package insight asks the AI insight service for feedback on an idea.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"synerthree/internal/models"
	"synerthree/internal/observability"
	"synerthree/internal/session"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const maxResponseBytes = 1 << 20

// Request is the body sent to the insight endpoint.
type Request struct {
	Prompt string `json:"prompt"`
	PostID uint   `json:"post_id,omitempty"`
	UserID uint   `json:"user_id,omitempty"`
}

// Client calls the insight endpoint.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
	log    *observability.RemoteLogger
}

// NewClient creates a Client posting to url. apiKey, when set, is sent as
// X-API-Key alongside the user's bearer token.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: observability.NewRemoteLogger("insight"),
	}
}

// Ask sends the prompt and returns the decoded insight text.
func (c *Client) Ask(ctx context.Context, token string, req Request) (text string, err error) {
	if token == "" {
		return "", session.ErrNoSession
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", models.NewValidationError("Prompt is required")
	}

	ctx, span := observability.StartSpan(ctx, "insight", "ask",
		attribute.Int("insight.post_id", int(req.PostID)),
	)
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
			c.log.LogError(ctx, "ask", err)
		}
		observability.InsightRequests.WithLabelValues(result).Inc()
		observability.EndSpan(span, err)
	}()
	track := observability.TrackRemote("insight")

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode insight request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build insight request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		track("error")
		return "", models.NewUpstreamError("There was an error connecting to the insight service", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		track("error")
		return "", models.NewUpstreamError("Failed to read insight response", err)
	}
	c.log.LogCall(ctx, "ask", resp.StatusCode, map[string]interface{}{"bytes": len(raw)})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		track("error")
		return "", models.NewUpstreamError("Failed to get insight",
			fmt.Errorf("insight service returned %d", resp.StatusCode))
	}
	track("success")

	text = Decode(extractText(raw))
	if strings.TrimSpace(text) == "" {
		return "", models.NewUpstreamError("Insight service returned no text", nil)
	}
	return text, nil
}

// extractText pulls the insight text out of the response body, which may be a
// JSON string, a JSON object naming the text under one of a few keys, or plain text.
func extractText(raw []byte) string {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return ""
	}

	switch body[0] {
	case '"':
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			return s
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err == nil {
			for _, key := range []string{"response", "result", "text", "content"} {
				v, ok := obj[key]
				if !ok {
					continue
				}
				var s string
				if err := json.Unmarshal(v, &s); err == nil {
					return s
				}
			}
		}
	}
	return string(body)
}

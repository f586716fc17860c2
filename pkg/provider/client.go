package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sensei-dev/sensei/pkg/api"
	"github.com/sensei-dev/sensei/pkg/debug"
	"github.com/sensei-dev/sensei/pkg/observability"
)

const (
	// DefaultChatTimeout bounds one generative call.
	DefaultChatTimeout = 30 * time.Second

	// DefaultProbeTimeout bounds one availability probe.
	DefaultProbeTimeout = 5 * time.Second

	maxBodyBytes = 4 << 20
)

// Client is the uniform view of one AI backend.
type Client interface {
	// Chat sends one generative request and returns the model's text.
	// Failures wrap api.ErrUpstreamUnavailable, api.ErrUpstreamProtocol or
	// api.ErrUpstreamAuth.
	Chat(ctx context.Context, systemPrompt, prompt string) (string, error)

	// Probe reports whether the backend answered its cheap listing call
	// with HTTP 200. It never returns an error.
	Probe(ctx context.Context) bool
}

// HTTPClient talks to one Endpoint over HTTP. Every call performs exactly
// one outbound request; there are no retries.
type HTTPClient struct {
	id       Identity
	endpoint Endpoint
	adapter  adapter

	httpClient   *http.Client
	chatTimeout  time.Duration
	probeTimeout time.Duration
}

// NewHTTPClient builds a client for id. It fails with
// api.ErrUnsupportedProvider if the endpoint carries an unknown dialect.
func NewHTTPClient(id Identity, ep Endpoint, httpClient *http.Client, chatTimeout, probeTimeout time.Duration) (*HTTPClient, error) {
	ad, ok := adapterFor(ep.Dialect)
	if !ok {
		return nil, fmt.Errorf("%w: %s has unknown dialect %s", api.ErrUnsupportedProvider, id, ep.Dialect)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if chatTimeout <= 0 {
		chatTimeout = DefaultChatTimeout
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	ep.BaseURL = strings.TrimRight(ep.BaseURL, "/")
	return &HTTPClient{
		id:           id,
		endpoint:     ep,
		adapter:      ad,
		httpClient:   httpClient,
		chatTimeout:  chatTimeout,
		probeTimeout: probeTimeout,
	}, nil
}

// Identity returns the provider this client talks to.
func (c *HTTPClient) Identity() Identity { return c.id }

// Chat implements Client.
func (c *HTTPClient) Chat(ctx context.Context, systemPrompt, prompt string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "provider.chat",
		attribute.String("sensei.provider", string(c.id)),
		attribute.String("sensei.model", c.endpoint.Model),
	)
	start := time.Now()
	text, err := c.chat(ctx, systemPrompt, prompt)
	observability.EndSpan(span, err)

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.ProviderRequestsTotal.WithLabelValues(string(c.id), status).Inc()
	observability.ProviderLatency.WithLabelValues(string(c.id)).Observe(time.Since(start).Seconds())
	return text, err
}

func (c *HTTPClient) chat(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", api.NewInvalidRequestError("prompt", "prompt must not be empty")
	}
	if systemPrompt == "" {
		return "", api.NewInvalidRequestError("system_prompt", "system prompt must not be empty")
	}
	if c.id.IsCloud() && c.endpoint.APIKey == "" {
		return "", &UpstreamError{Provider: c.id, Message: "no API key configured", Kind: api.ErrUpstreamAuth}
	}

	body, err := c.adapter.encode(c.endpoint.Model, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: encode request: %w", c.id, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	url := c.endpoint.BaseURL + c.adapter.chatPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: create request: %w", c.id, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.adapter.authorize(req.Header, c.endpoint.APIKey)
	observability.InjectTraceContext(ctx, req.Header)

	debug.Log("providers", "request", "provider", c.id, "method", "POST", "url", url, "model", c.endpoint.Model)
	if debug.TraceIsEnabled("providers") {
		debug.Trace("providers", "request body", "provider", c.id, "body", debug.Truncate(string(body), 2000))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Provider: c.id, Message: err.Error(), Kind: api.ErrUpstreamUnavailable}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &UpstreamError{Provider: c.id, StatusCode: resp.StatusCode, Message: "read response: " + err.Error(), Kind: api.ErrUpstreamUnavailable}
	}

	debug.Log("providers", "response", "provider", c.id, "status", resp.StatusCode, "bytes", len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := c.adapter.errorMessage(respBody)
		if msg == "" {
			msg = fmt.Sprintf("backend returned HTTP %d", resp.StatusCode)
		}
		return "", &UpstreamError{Provider: c.id, StatusCode: resp.StatusCode, Message: msg, Kind: kindForStatus(resp.StatusCode)}
	}

	text, err := c.adapter.decode(respBody)
	if err != nil {
		slog.Warn("provider returned malformed response", "provider", c.id, "error", err)
		return "", &UpstreamError{Provider: c.id, StatusCode: resp.StatusCode, Message: err.Error(), Kind: api.ErrUpstreamProtocol}
	}
	return text, nil
}

// Probe implements Client.
func (c *HTTPClient) Probe(ctx context.Context) bool {
	if c.id.IsCloud() && c.endpoint.APIKey == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL+c.adapter.probePath, nil)
	if err != nil {
		return false
	}
	c.adapter.authorize(req.Header, c.endpoint.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		debug.Log("providers", "probe failed", "provider", c.id, "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	return resp.StatusCode == http.StatusOK
}

package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sensei-dev/sensei/pkg/api"
	"github.com/sensei-dev/sensei/pkg/debug"
	"github.com/sensei-dev/sensei/pkg/observability"
	"github.com/sensei-dev/sensei/pkg/ratelimit"
)

const (
	// DefaultTimeout bounds one engine call.
	DefaultTimeout = 30 * time.Second

	// DefaultProbeTimeout bounds the reachability probe.
	DefaultProbeTimeout = 5 * time.Second

	// APIKeyHeader carries the engine API key.
	APIKeyHeader = "X-N8N-API-KEY"

	statisticsSample = 100
	recentExecutions = 5
	maxBodyBytes     = 8 << 20
)

// Bridge is a REST client for the automation engine. Every public call is
// admitted through the limiter under the general class when the context
// carries a subject.
type Bridge struct {
	baseURL string
	apiKey  string

	httpClient   *http.Client
	limiter      *ratelimit.Limiter
	timeout      time.Duration
	probeTimeout time.Duration
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bridge) { b.httpClient = c }
}

// WithLimiter meters calls through l.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(b *Bridge) { b.limiter = l }
}

// WithTimeouts overrides the call and probe timeouts.
func WithTimeouts(call, probe time.Duration) Option {
	return func(b *Bridge) {
		if call > 0 {
			b.timeout = call
		}
		if probe > 0 {
			b.probeTimeout = probe
		}
	}
}

// NewBridge creates a client for the engine REST API rooted at baseURL,
// e.g. "http://localhost:5678/rest". An empty apiKey sends
// unauthenticated requests.
func NewBridge(baseURL, apiKey string, opts ...Option) *Bridge {
	b := &Bridge{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{},
		timeout:      DefaultTimeout,
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) admit(ctx context.Context, op string) error {
	if !b.limiter.AdmitContext(ctx, ratelimit.General) {
		return fmt.Errorf("workflow %s: %w", op, api.ErrRateLimitExceeded)
	}
	return nil
}

// do performs one engine call and decodes a 2xx body into out (if non-nil).
func (b *Bridge) do(ctx context.Context, op, method, path string, query url.Values, in, out any) (err error) {
	ctx, span := observability.StartSpan(ctx, "engine."+op, attribute.String("sensei.engine.op", op))
	status := "error"
	defer func() {
		observability.EngineRequestsTotal.WithLabelValues(op, status).Inc()
		observability.EndSpan(span, err)
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("workflow %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("workflow %s: create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.apiKey != "" {
		req.Header.Set(APIKeyHeader, b.apiKey)
	}
	observability.InjectTraceContext(ctx, req.Header)

	debug.Log("workflow", "engine request", "op", op, "method", method, "url", u)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return &EngineError{Op: op, Message: err.Error(), Kind: api.ErrUpstreamUnavailable}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &EngineError{Op: op, StatusCode: resp.StatusCode, Message: err.Error(), Kind: api.ErrUpstreamUnavailable}
	}

	debug.Log("workflow", "engine response", "op", op, "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &EngineError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    engineMessage(data, resp.StatusCode),
			Kind:       api.ErrUpstreamUnavailable,
		}
	}

	if out != nil {
		if err := json.Unmarshal(unwrapData(data), out); err != nil {
			return &EngineError{Op: op, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error(), Kind: api.ErrUpstreamProtocol}
		}
	}
	status = "ok"
	return nil
}

// unwrapData strips the {"data": ..., "nextCursor": ...} envelope some
// engine versions add around list and get responses.
func unwrapData(body []byte) []byte {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return body
	}
	data, ok := env["data"]
	if !ok {
		return body
	}
	for k := range env {
		switch k {
		case "data", "nextCursor", "count":
		default:
			return body
		}
	}
	return data
}

// engineMessage pulls "message" from an engine error body.
func engineMessage(body []byte, status int) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return http.StatusText(status)
}

func workflowPath(id string) string {
	return "/workflows/" + url.PathEscape(id)
}

// List returns all workflows.
func (b *Bridge) List(ctx context.Context) ([]Draft, error) {
	if err := b.admit(ctx, "list"); err != nil {
		return nil, err
	}
	return b.list(ctx)
}

func (b *Bridge) list(ctx context.Context) ([]Draft, error) {
	var out []Draft
	if err := b.do(ctx, "list", http.MethodGet, "/workflows", nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Draft{}
	}
	return out, nil
}

// BaseURL is the engine REST root the bridge talks to.
func (b *Bridge) BaseURL() string { return b.baseURL }

// HasAPIKey reports whether requests carry an engine API key.
func (b *Bridge) HasAPIKey() bool { return b.apiKey != "" }

// Count returns the number of workflows, or 0 if the engine is unreachable.
func (b *Bridge) Count(ctx context.Context) int {
	wfs, err := b.list(ctx)
	if err != nil {
		return 0
	}
	return len(wfs)
}

// Get fetches one workflow.
func (b *Bridge) Get(ctx context.Context, id string) (*Draft, error) {
	if err := b.admit(ctx, "get"); err != nil {
		return nil, err
	}
	return b.get(ctx, id)
}

func (b *Bridge) get(ctx context.Context, id string) (*Draft, error) {
	var d Draft
	if err := b.do(ctx, "get", http.MethodGet, workflowPath(id), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Create validates d and stores it in the engine. Invalid drafts fail with
// a *ValidationError and no request is sent.
func (b *Bridge) Create(ctx context.Context, d Draft) (*Draft, error) {
	if v := Validate(d); !v.Valid {
		return nil, &ValidationError{Verdict: v}
	}
	if err := b.admit(ctx, "create"); err != nil {
		return nil, err
	}
	d.ID = ""
	var out Draft
	if err := b.do(ctx, "create", http.MethodPost, "/workflows", nil, engineBody(d), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update validates d and replaces workflow id with it.
func (b *Bridge) Update(ctx context.Context, id string, d Draft) (*Draft, error) {
	if v := Validate(d); !v.Valid {
		return nil, &ValidationError{Verdict: v}
	}
	if err := b.admit(ctx, "update"); err != nil {
		return nil, err
	}
	var out Draft
	if err := b.do(ctx, "update", http.MethodPut, workflowPath(id), nil, engineBody(d), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// engineBody fills the fields the engine requires to be present.
func engineBody(d Draft) Draft {
	if d.Connections == nil {
		d.Connections = map[string]any{}
	}
	if d.Settings == nil {
		d.Settings = map[string]any{}
	}
	return d
}

// Delete removes a workflow. It reports success only; failures are logged.
func (b *Bridge) Delete(ctx context.Context, id string) bool {
	return b.action(ctx, "delete", http.MethodDelete, workflowPath(id))
}

// Activate enables the workflow's triggers.
func (b *Bridge) Activate(ctx context.Context, id string) bool {
	return b.action(ctx, "activate", http.MethodPost, workflowPath(id)+"/activate")
}

// Deactivate disables the workflow's triggers.
func (b *Bridge) Deactivate(ctx context.Context, id string) bool {
	return b.action(ctx, "deactivate", http.MethodPost, workflowPath(id)+"/deactivate")
}

func (b *Bridge) action(ctx context.Context, op, method, path string) bool {
	if err := b.admit(ctx, op); err != nil {
		debug.Log("workflow", "action rejected", "op", op, "error", err)
		return false
	}
	if err := b.do(ctx, op, method, path, nil, nil, nil); err != nil {
		debug.Log("workflow", "action failed", "op", op, "error", err)
		return false
	}
	return true
}

// Execute starts a manual run and returns the engine's raw result.
func (b *Bridge) Execute(ctx context.Context, id string, input map[string]any) (map[string]any, error) {
	if err := b.admit(ctx, "execute"); err != nil {
		return nil, err
	}
	payload := map[string]any{"workflowData": map[string]any{"id": id}}
	if len(input) > 0 {
		payload["inputData"] = input
	}
	var out map[string]any
	if err := b.do(ctx, "execute", http.MethodPost, workflowPath(id)+"/execute", nil, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Executions lists recent executions, newest first as the engine returns
// them. An empty workflowID lists executions of all workflows.
func (b *Bridge) Executions(ctx context.Context, workflowID string, limit int) ([]Execution, error) {
	if err := b.admit(ctx, "executions"); err != nil {
		return nil, err
	}
	return b.executions(ctx, workflowID, limit)
}

func (b *Bridge) executions(ctx context.Context, workflowID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if workflowID != "" {
		q.Set("workflowId", workflowID)
	}
	var out []Execution
	if err := b.do(ctx, "executions", http.MethodGet, "/executions", q, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Execution{}
	}
	return out, nil
}

// Execution fetches one execution.
func (b *Bridge) Execution(ctx context.Context, id string) (*Execution, error) {
	if err := b.admit(ctx, "execution"); err != nil {
		return nil, err
	}
	var e Execution
	if err := b.do(ctx, "execution", http.MethodGet, "/executions/"+url.PathEscape(id), nil, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Probe reports whether the engine answers GET /active-workflows with 200.
func (b *Bridge) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, b.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/active-workflows", nil)
	if err != nil {
		return false
	}
	if b.apiKey != "" {
		req.Header.Set(APIKeyHeader, b.apiKey)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return resp.StatusCode == http.StatusOK
}

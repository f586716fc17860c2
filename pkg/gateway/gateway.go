package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sensei-dev/sensei/pkg/api"
	"github.com/sensei-dev/sensei/pkg/debug"
	"github.com/sensei-dev/sensei/pkg/observability"
	"github.com/sensei-dev/sensei/pkg/provider"
	"github.com/sensei-dev/sensei/pkg/ratelimit"
	"github.com/sensei-dev/sensei/pkg/recorder"
	"github.com/sensei-dev/sensei/pkg/workflow"
)

// Gateway composes the provider registry with the AI rate budget and the
// conversation recorder.
type Gateway struct {
	registry     *provider.Registry
	limiter      *ratelimit.Limiter
	recorder     recorder.Recorder
	bridge       *workflow.Bridge
	probeTimeout time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLimiter enforces the AI class budget for subjects found in the context.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithRecorder sets where interactions are reported.
func WithRecorder(r recorder.Recorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// WithBridge enables the workflow-aware operations.
func WithBridge(b *workflow.Bridge) Option {
	return func(g *Gateway) { g.bridge = b }
}

// WithProbeTimeout bounds each availability probe. It guards against
// clients that ignore their own timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.probeTimeout = d
		}
	}
}

// New creates a gateway over reg.
func New(reg *provider.Registry, opts ...Option) *Gateway {
	g := &Gateway{
		registry:     reg,
		recorder:     recorder.Discard{},
		probeTimeout: provider.DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ChatExchange is one inbound chat request.
type ChatExchange struct {
	Message    string
	SessionID  string
	Context    string
	WorkflowID string
	Provider   provider.Identity
}

// ChatResult is the outcome of a chat. Failed is set when the provider
// call failed; Text then holds a displayable error message.
type ChatResult struct {
	Text        string            `json:"response"`
	SessionID   string            `json:"session_id"`
	Provider    provider.Identity `json:"ai_provider"`
	Failed      bool              `json:"failed"`
	Action      Action            `json:"workflow_action,omitempty"`
	WorkflowID  string            `json:"workflow_id,omitempty"`
	Suggestions []string          `json:"suggestions"`
}

// Chat sends the message to the requested provider. Unknown providers fail
// with api.ErrUnsupportedProvider before any network call and an exhausted
// AI budget fails with api.ErrRateLimitExceeded. Every other failure is
// reported in the result, never as an error.
func (g *Gateway) Chat(ctx context.Context, ex ChatExchange) (ChatResult, error) {
	client, err := g.registry.Client(ex.Provider)
	if err != nil {
		return ChatResult{}, err
	}
	if strings.TrimSpace(ex.Message) == "" {
		return ChatResult{}, api.NewInvalidRequestError("message", "message must not be empty")
	}
	if err := g.admit(ctx); err != nil {
		return ChatResult{}, err
	}

	sessionID := ex.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	text, failed := g.converse(ctx, client, ex.Provider, ex.Message, ex.Context)
	action, suggestions := DetectAction(text)

	g.record(ctx, recorder.Interaction{
		SessionID:   sessionID,
		Provider:    string(ex.Provider),
		UserMessage: ex.Message,
		AIResponse:  text,
		WorkflowID:  ex.WorkflowID,
		Action:      string(action),
		Failed:      failed,
	})

	return ChatResult{
		Text:        text,
		SessionID:   sessionID,
		Provider:    ex.Provider,
		Failed:      failed,
		Action:      action,
		WorkflowID:  ex.WorkflowID,
		Suggestions: suggestions,
	}, nil
}

func (g *Gateway) admit(ctx context.Context) error {
	if !g.limiter.AdmitContext(ctx, ratelimit.AI) {
		return fmt.Errorf("ai: %w", api.ErrRateLimitExceeded)
	}
	return nil
}

// converse performs one provider call with the system prompt applied and
// converts a failure into displayable text.
func (g *Gateway) converse(ctx context.Context, client provider.Client, id provider.Identity, message, chatContext string) (string, bool) {
	debug.Log("gateway", "chat", "provider", id, "message", debug.Truncate(message, 200))

	text, err := client.Chat(ctx, SystemPrompt(chatContext), message)
	if err != nil {
		slog.Warn("provider chat failed", "provider", id, "error", err)
		return fmt.Sprintf("Error communicating with %s: %v", id, err), true
	}
	return text, false
}

func (g *Gateway) record(ctx context.Context, it recorder.Interaction) {
	it.Subject = ratelimit.SubjectFromContext(ctx)
	if it.SessionID == "" {
		it.SessionID = uuid.NewString()
	}
	g.recorder.Record(it)
}

// AvailabilityReport maps every known provider to whether its probe
// succeeded.
type AvailabilityReport map[provider.Identity]bool

// CheckAllProviders probes every known provider concurrently and returns
// once all probes have settled. Unconfigured providers report false.
func (g *Gateway) CheckAllProviders(ctx context.Context) AvailabilityReport {
	ids := provider.AllIdentities()
	results := make([]bool, len(ids))

	var eg errgroup.Group
	for i, id := range ids {
		eg.Go(func() error {
			results[i] = g.probe(ctx, id)
			return nil
		})
	}
	eg.Wait()

	report := make(AvailabilityReport, len(ids))
	for i, id := range ids {
		report[id] = results[i]
		gauge := 0.0
		if results[i] {
			gauge = 1
		}
		observability.ProviderAvailable.WithLabelValues(string(id)).Set(gauge)
	}
	return report
}

// probe runs one client probe and gives up after probeTimeout even if the
// client does not return.
func (g *Gateway) probe(ctx context.Context, id provider.Identity) bool {
	client, err := g.registry.Client(id)
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, g.probeTimeout)
	defer cancel()

	ch := make(chan bool, 1)
	go func() { ch <- client.Probe(ctx) }()

	select {
	case ok := <-ch:
		debug.Log("gateway", "probe", "provider", id, "available", ok)
		return ok
	case <-ctx.Done():
		debug.Log("gateway", "probe timed out", "provider", id)
		return false
	}
}

// ProviderStatus is an availability report with a recommendation.
type ProviderStatus struct {
	Providers      AvailabilityReport `json:"providers"`
	AvailableCount int                `json:"available_count"`
	TotalCount     int                `json:"total_count"`
	// Recommended is llama when it is up, otherwise the first available
	// provider in fixed order, otherwise empty.
	Recommended provider.Identity `json:"recommended,omitempty"`
}

// ProviderStatus probes all providers and summarizes the result.
func (g *Gateway) ProviderStatus(ctx context.Context) ProviderStatus {
	report := g.CheckAllProviders(ctx)
	st := ProviderStatus{Providers: report, TotalCount: len(report)}
	for _, id := range provider.AllIdentities() {
		if !report[id] {
			continue
		}
		st.AvailableCount++
		if st.Recommended == "" {
			st.Recommended = id
		}
	}
	if report[provider.Llama] {
		st.Recommended = provider.Llama
	}
	return st
}

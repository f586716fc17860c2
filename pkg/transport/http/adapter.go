package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sensei-dev/sensei/pkg/api"
	"github.com/sensei-dev/sensei/pkg/gateway"
	"github.com/sensei-dev/sensei/pkg/provider"
	"github.com/sensei-dev/sensei/pkg/recorder"
	"github.com/sensei-dev/sensei/pkg/transport"
	"github.com/sensei-dev/sensei/pkg/workflow"
)

const (
	defaultInteractionLimit = 50
	maxInteractionLimit     = 500
	defaultExecutionLimit   = 20
)

// Adapter exposes the gateway, the workflow bridge and the interaction
// history over HTTP. It only decodes, dispatches and encodes; every rule
// lives in the components.
type Adapter struct {
	gateway *gateway.Gateway
	bridge  *workflow.Bridge
	history recorder.Store
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	Version     string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		Version:     "dev",
	}
}

// NewAdapter wires the routes. history may be nil, in which case the
// interaction listing answers 501.
func NewAdapter(gw *gateway.Gateway, bridge *workflow.Bridge, history recorder.Store, cfg Config) *Adapter {
	a := &Adapter{
		gateway: gw,
		bridge:  bridge,
		history: history,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("POST /v1/chat", a.handleChat)
	a.mux.HandleFunc("GET /v1/providers/status", a.handleProviderStatus)
	a.mux.HandleFunc("GET /v1/sessions/{id}/interactions", a.handleListInteractions)

	a.mux.HandleFunc("POST /v1/workflows/generate", a.handleGenerate)
	a.mux.HandleFunc("POST /v1/workflows/validate", a.handleValidate)
	a.mux.HandleFunc("GET /v1/workflows", a.handleListWorkflows)
	a.mux.HandleFunc("POST /v1/workflows", a.handleCreateWorkflow)
	a.mux.HandleFunc("GET /v1/workflows/{id}", a.handleGetWorkflow)
	a.mux.HandleFunc("PUT /v1/workflows/{id}", a.handleUpdateWorkflow)
	a.mux.HandleFunc("DELETE /v1/workflows/{id}", a.handleDeleteWorkflow)
	a.mux.HandleFunc("POST /v1/workflows/{id}/execute", a.handleExecute)
	a.mux.HandleFunc("POST /v1/workflows/{id}/activate", a.handleActivate)
	a.mux.HandleFunc("POST /v1/workflows/{id}/deactivate", a.handleDeactivate)
	a.mux.HandleFunc("GET /v1/workflows/{id}/executions", a.handleListExecutions)
	a.mux.HandleFunc("GET /v1/workflows/{id}/statistics", a.handleStatistics)
	a.mux.HandleFunc("GET /v1/workflows/{id}/analysis", a.handleAnalysis)
	a.mux.HandleFunc("POST /v1/workflows/{id}/optimize", a.handleOptimize)
	a.mux.HandleFunc("POST /v1/workflows/{id}/explain", a.handleExplain)
	a.mux.HandleFunc("POST /v1/workflows/{id}/fill-parameters", a.handleFillParameters)
	a.mux.HandleFunc("GET /v1/executions/{id}", a.handleGetExecution)

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	a.mux.HandleFunc("GET /readyz/n8n", a.handleEngineHealth)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// chatRequest is the body of POST /v1/chat.
type chatRequest struct {
	Message         string `json:"message"`
	SessionID       string `json:"session_id,omitempty"`
	AIProvider      string `json:"ai_provider,omitempty"`
	WorkflowContext string `json:"workflow_context,omitempty"`
	WorkflowID      string `json:"workflow_id,omitempty"`
}

// handleChat handles POST /v1/chat.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	id, err := parseProvider(req.AIProvider)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	res, err := a.gateway.Chat(r.Context(), gateway.ChatExchange{
		Message:    req.Message,
		SessionID:  req.SessionID,
		Context:    req.WorkflowContext,
		WorkflowID: req.WorkflowID,
		Provider:   id,
	})
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, res)
}

// handleProviderStatus handles GET /v1/providers/status.
func (a *Adapter) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, a.gateway.ProviderStatus(r.Context()))
}

// interactionList is the body of GET /v1/sessions/{id}/interactions.
type interactionList struct {
	SessionID    string                 `json:"session_id"`
	Interactions []recorder.Interaction `json:"interactions"`
}

// handleListInteractions handles GET /v1/sessions/{id}/interactions.
// Results are scoped to the calling subject.
func (a *Adapter) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "interaction history is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	sessionID := r.PathValue("id")
	limit, apiErr := parseLimit(r, defaultInteractionLimit, maxInteractionLimit)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	items, err := a.history.ListBySession(r.Context(), subjectOf(r), sessionID, limit)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	if items == nil {
		items = []recorder.Interaction{}
	}
	transport.WriteJSON(w, http.StatusOK, interactionList{SessionID: sessionID, Interactions: items})
}

// decode reads a JSON body into v. With optional set, an empty body is
// accepted and leaves v untouched. It writes the error response itself and
// reports whether the handler should continue.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return false
	}
	return true
}

// parseProvider maps the ai_provider field to an identity. Empty selects
// llama.
func parseProvider(s string) (provider.Identity, error) {
	if s == "" {
		return provider.Llama, nil
	}
	return provider.ParseIdentity(s)
}

// parseLimit reads the "limit" query parameter.
func parseLimit(r *http.Request, def, max int) (int, *api.APIError) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, api.NewInvalidRequestError("limit", "limit must be a positive integer")
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

package http

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/sensei-dev/sensei/pkg/gateway"
	"github.com/sensei-dev/sensei/pkg/transport"
)

// readiness is the body of GET /readyz.
type readiness struct {
	Status            string                     `json:"status"`
	Version           string                     `json:"version"`
	EngineConnected   bool                       `json:"n8n_connected"`
	AIProviders       gateway.AvailabilityReport `json:"ai_providers"`
	DatabaseConnected bool                       `json:"database_connected"`
}

// handleHealthz handles GET /healthz. It only reports that the process
// serves requests.
func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz handles GET /readyz. The engine probe, the provider probes
// and the store health check run concurrently. A failing store makes the
// service unready; a missing engine or provider only degrades it.
func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	rd := a.readiness(r.Context())

	status := http.StatusOK
	if !rd.DatabaseConnected {
		status = http.StatusServiceUnavailable
	}
	transport.WriteJSON(w, status, rd)
}

func (a *Adapter) readiness(ctx context.Context) readiness {
	rd := readiness{Version: a.config.Version, DatabaseConnected: true}

	var g errgroup.Group
	g.Go(func() error {
		rd.EngineConnected = a.bridge.Probe(ctx)
		return nil
	})
	g.Go(func() error {
		rd.AIProviders = a.gateway.CheckAllProviders(ctx)
		return nil
	})
	if a.history != nil {
		rd.DatabaseConnected = a.history.HealthCheck(ctx) == nil
	}
	g.Wait()

	anyProvider := false
	for _, up := range rd.AIProviders {
		anyProvider = anyProvider || up
	}
	switch {
	case !rd.DatabaseConnected:
		rd.Status = "unhealthy"
	case rd.EngineConnected && anyProvider:
		rd.Status = "healthy"
	default:
		rd.Status = "degraded"
	}
	return rd
}

// engineHealth is the body of GET /readyz/n8n.
type engineHealth struct {
	Connected        bool   `json:"connected"`
	BaseURL          string `json:"base_url"`
	WorkflowsCount   int    `json:"workflows_count"`
	APIKeyConfigured bool   `json:"api_key_configured"`
}

// handleEngineHealth handles GET /readyz/n8n. It always answers 200; the
// body says whether the engine is reachable.
func (a *Adapter) handleEngineHealth(w http.ResponseWriter, r *http.Request) {
	h := engineHealth{
		BaseURL:          a.bridge.BaseURL(),
		APIKeyConfigured: a.bridge.HasAPIKey(),
	}
	if h.Connected = a.bridge.Probe(r.Context()); h.Connected {
		h.WorkflowsCount = a.bridge.Count(r.Context())
	}
	transport.WriteJSON(w, http.StatusOK, h)
}

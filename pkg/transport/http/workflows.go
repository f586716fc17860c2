package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sensei-dev/sensei/pkg/api"
	"github.com/sensei-dev/sensei/pkg/gateway"
	"github.com/sensei-dev/sensei/pkg/provider"
	"github.com/sensei-dev/sensei/pkg/ratelimit"
	"github.com/sensei-dev/sensei/pkg/transport"
	"github.com/sensei-dev/sensei/pkg/workflow"
)

// generateRequest is the body of POST /v1/workflows/generate.
type generateRequest struct {
	Description string `json:"description"`
	AIProvider  string `json:"ai_provider,omitempty"`
	// DryRun returns the validated draft without creating it.
	DryRun bool `json:"dry_run,omitempty"`
}

// handleGenerate handles POST /v1/workflows/generate.
func (a *Adapter) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("description", "description must not be empty"))
		return
	}
	id, err := parseProvider(req.AIProvider)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	if req.DryRun {
		d, err := a.gateway.GenerateWorkflowDraft(r.Context(), req.Description, id)
		if err != nil {
			transport.WriteError(w, err)
			return
		}
		v := workflow.Validate(d)
		transport.WriteJSON(w, http.StatusOK, gateway.Generated{
			Workflow:    &d,
			Explanation: d.Explanation,
			Confidence:  gateway.Confidence(v),
			Verdict:     v,
		})
		return
	}

	res, err := a.gateway.GenerateAndCreate(r.Context(), req.Description, id)
	if err != nil {
		apiErr := api.FromError(err)
		if res != nil && errors.Is(err, api.ErrValidationFailed) {
			apiErr.Details = res
		}
		transport.WriteAPIError(w, apiErr)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, res)
}

// handleValidate handles POST /v1/workflows/validate. It never contacts
// the engine.
func (a *Adapter) handleValidate(w http.ResponseWriter, r *http.Request) {
	var d workflow.Draft
	if !a.decode(w, r, &d, false) {
		return
	}
	transport.WriteJSON(w, http.StatusOK, workflow.Validate(d))
}

// workflowList is the body of GET /v1/workflows.
type workflowList struct {
	Workflows []workflow.Draft `json:"workflows"`
	Total     int              `json:"total"`
}

// handleListWorkflows handles GET /v1/workflows.
func (a *Adapter) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	wfs, err := a.bridge.List(r.Context())
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, workflowList{Workflows: wfs, Total: len(wfs)})
}

// handleCreateWorkflow handles POST /v1/workflows.
func (a *Adapter) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var d workflow.Draft
	if !a.decode(w, r, &d, false) {
		return
	}
	created, err := a.bridge.Create(r.Context(), d)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, created)
}

// handleGetWorkflow handles GET /v1/workflows/{id}.
func (a *Adapter) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	d, err := a.bridge.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, d)
}

// handleUpdateWorkflow handles PUT /v1/workflows/{id}.
func (a *Adapter) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var d workflow.Draft
	if !a.decode(w, r, &d, false) {
		return
	}
	updated, err := a.bridge.Update(r.Context(), r.PathValue("id"), d)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, updated)
}

// handleDeleteWorkflow handles DELETE /v1/workflows/{id}.
func (a *Adapter) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if !a.bridge.Delete(r.Context(), r.PathValue("id")) {
		writeActionFailed(w, "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// activationResult is the body of the activate and deactivate endpoints.
type activationResult struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// handleActivate handles POST /v1/workflows/{id}/activate.
func (a *Adapter) handleActivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.bridge.Activate(r.Context(), id) {
		writeActionFailed(w, "activate")
		return
	}
	transport.WriteJSON(w, http.StatusOK, activationResult{ID: id, Active: true})
}

// handleDeactivate handles POST /v1/workflows/{id}/deactivate.
func (a *Adapter) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.bridge.Deactivate(r.Context(), id) {
		writeActionFailed(w, "deactivate")
		return
	}
	transport.WriteJSON(w, http.StatusOK, activationResult{ID: id, Active: false})
}

// executeRequest is the optional body of POST /v1/workflows/{id}/execute.
type executeRequest struct {
	InputData map[string]any `json:"input_data,omitempty"`
}

// handleExecute handles POST /v1/workflows/{id}/execute.
func (a *Adapter) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !a.decode(w, r, &req, true) {
		return
	}
	out, err := a.bridge.Execute(r.Context(), r.PathValue("id"), req.InputData)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, out)
}

// executionList is the body of GET /v1/workflows/{id}/executions.
type executionList struct {
	WorkflowID string               `json:"workflow_id"`
	Executions []workflow.Execution `json:"executions"`
}

// handleListExecutions handles GET /v1/workflows/{id}/executions.
func (a *Adapter) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, apiErr := parseLimit(r, defaultExecutionLimit, 0)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	id := r.PathValue("id")
	execs, err := a.bridge.Executions(r.Context(), id, limit)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, executionList{WorkflowID: id, Executions: execs})
}

// handleGetExecution handles GET /v1/executions/{id}.
func (a *Adapter) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	e, err := a.bridge.Execution(r.Context(), r.PathValue("id"))
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, e)
}

// handleStatistics handles GET /v1/workflows/{id}/statistics. Engine
// failures are reported inside the statistics block.
func (a *Adapter) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.bridge.Statistics(r.Context(), r.PathValue("id"))
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, stats)
}

// handleAnalysis handles GET /v1/workflows/{id}/analysis.
func (a *Adapter) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	an, err := a.bridge.Analyze(r.Context(), r.PathValue("id"))
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, an)
}

// assistRequest is the body of the optimize, explain and fill-parameters
// endpoints.
type assistRequest struct {
	AIProvider        string         `json:"ai_provider,omitempty"`
	OptimizationGoals []string       `json:"optimization_goals,omitempty"`
	ContextData       map[string]any `json:"context_data,omitempty"`
}

var defaultOptimizationGoals = []string{"performance", "reliability"}

// handleOptimize handles POST /v1/workflows/{id}/optimize.
func (a *Adapter) handleOptimize(w http.ResponseWriter, r *http.Request) {
	req, id, ok := a.decodeAssist(w, r)
	if !ok {
		return
	}
	goals := req.OptimizationGoals
	if len(goals) == 0 {
		goals = defaultOptimizationGoals
	}
	res, err := a.gateway.Optimize(r.Context(), r.PathValue("id"), goals, id)
	writeAssisted(w, res, err)
}

// handleExplain handles POST /v1/workflows/{id}/explain.
func (a *Adapter) handleExplain(w http.ResponseWriter, r *http.Request) {
	_, id, ok := a.decodeAssist(w, r)
	if !ok {
		return
	}
	res, err := a.gateway.Explain(r.Context(), r.PathValue("id"), id)
	writeAssisted(w, res, err)
}

// handleFillParameters handles POST /v1/workflows/{id}/fill-parameters.
func (a *Adapter) handleFillParameters(w http.ResponseWriter, r *http.Request) {
	req, id, ok := a.decodeAssist(w, r)
	if !ok {
		return
	}
	if len(req.ContextData) == 0 {
		transport.WriteAPIError(w, api.NewInvalidRequestError("context_data", "context_data is required"))
		return
	}
	res, err := a.gateway.FillParameters(r.Context(), r.PathValue("id"), req.ContextData, id)
	writeAssisted(w, res, err)
}

func (a *Adapter) decodeAssist(w http.ResponseWriter, r *http.Request) (assistRequest, provider.Identity, bool) {
	var req assistRequest
	if !a.decode(w, r, &req, true) {
		return req, "", false
	}
	id, err := parseProvider(req.AIProvider)
	if err != nil {
		transport.WriteError(w, err)
		return req, "", false
	}
	return req, id, true
}

func writeAssisted(w http.ResponseWriter, res *gateway.Assisted, err error) {
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, res)
}

// writeWorkflowError renders bridge errors, attaching the verdict to
// validation failures.
func writeWorkflowError(w http.ResponseWriter, err error) {
	apiErr := api.FromError(err)
	var verr *workflow.ValidationError
	if errors.As(err, &verr) {
		apiErr.Details = verr.Verdict
	}
	transport.WriteAPIError(w, apiErr)
}

// writeActionFailed reports a bool-only bridge operation that did not
// succeed.
func writeActionFailed(w http.ResponseWriter, op string) {
	transport.WriteAPIError(w, &api.APIError{
		Type:    api.ErrorTypeUpstreamUnavailable,
		Message: "workflow engine could not " + op + " the workflow",
	})
}

// subjectOf returns the rate-limit subject the auth middleware assigned.
func subjectOf(r *http.Request) string {
	return ratelimit.SubjectFromContext(r.Context())
}

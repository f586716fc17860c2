// Package enginetest provides an in-memory stand-in for the automation
// engine REST surface. It backs the workflow tests, the integration tests
// and cmd/mock-backend.
package enginetest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Engine stores workflows and executions in memory.
type Engine struct {
	// APIKey, when set, is required in the X-N8N-API-KEY header.
	APIKey string

	calls atomic.Int64

	mu         sync.Mutex
	nextID     int
	workflows  map[string]map[string]any
	executions []map[string]any
}

// New returns an empty engine.
func New() *Engine {
	return &Engine{workflows: make(map[string]map[string]any)}
}

// Calls returns the number of requests served.
func (e *Engine) Calls() int64 { return e.calls.Load() }

// AddExecution appends an execution record. A non-empty stoppedAt marks
// it as stopped.
func (e *Engine) AddExecution(workflowID string, finished bool, stoppedAt string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	ex := map[string]any{
		"id":         strconv.Itoa(e.nextID),
		"workflowId": workflowID,
		"finished":   finished,
		"mode":       "manual",
		"startedAt":  time.Now().UTC().Format(time.RFC3339),
	}
	if stoppedAt != "" {
		ex["stoppedAt"] = stoppedAt
	}
	// Newest first.
	e.executions = append([]map[string]any{ex}, e.executions...)
}

// Handler returns the REST surface rooted at "/rest".
func (e *Engine) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/active-workflows", e.activeWorkflows)
	mux.HandleFunc("GET /rest/workflows", e.listWorkflows)
	mux.HandleFunc("POST /rest/workflows", e.createWorkflow)
	mux.HandleFunc("GET /rest/workflows/{id}", e.getWorkflow)
	mux.HandleFunc("PUT /rest/workflows/{id}", e.updateWorkflow)
	mux.HandleFunc("DELETE /rest/workflows/{id}", e.deleteWorkflow)
	mux.HandleFunc("POST /rest/workflows/{id}/activate", e.setActive(true))
	mux.HandleFunc("POST /rest/workflows/{id}/deactivate", e.setActive(false))
	mux.HandleFunc("POST /rest/workflows/{id}/execute", e.executeWorkflow)
	mux.HandleFunc("GET /rest/executions", e.listExecutions)
	mux.HandleFunc("GET /rest/executions/{id}", e.getExecution)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.calls.Add(1)
		if e.APIKey != "" && r.Header.Get("X-N8N-API-KEY") != e.APIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "unauthorized"})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "workflow not found"})
}

func (e *Engine) activeWorkflows(w http.ResponseWriter, _ *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := []string{}
	for id, wf := range e.workflows {
		if active, _ := wf["active"].(bool); active {
			ids = append(ids, id)
		}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (e *Engine) listWorkflows(w http.ResponseWriter, _ *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]map[string]any, 0, len(e.workflows))
	for i := 1; i <= e.nextID; i++ {
		if wf, ok := e.workflows[strconv.Itoa(i)]; ok {
			out = append(out, wf)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (e *Engine) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf map[string]any
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	e.mu.Lock()
	e.nextID++
	id := strconv.Itoa(e.nextID)
	wf["id"] = id
	e.workflows[id] = wf
	e.mu.Unlock()
	writeJSON(w, http.StatusOK, wf)
}

func (e *Engine) getWorkflow(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	wf, ok := e.workflows[r.PathValue("id")]
	e.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": wf})
}

func (e *Engine) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var wf map[string]any
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.workflows[id]; !ok {
		notFound(w)
		return
	}
	wf["id"] = id
	e.workflows[id] = wf
	writeJSON(w, http.StatusOK, wf)
}

func (e *Engine) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, ok := e.workflows[id]
	if !ok {
		notFound(w)
		return
	}
	delete(e.workflows, id)
	writeJSON(w, http.StatusOK, wf)
}

func (e *Engine) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		defer e.mu.Unlock()
		wf, ok := e.workflows[r.PathValue("id")]
		if !ok {
			notFound(w)
			return
		}
		wf["active"] = active
		writeJSON(w, http.StatusOK, wf)
	}
}

func (e *Engine) executeWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e.mu.Lock()
	_, ok := e.workflows[id]
	e.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	var payload map[string]any
	json.NewDecoder(r.Body).Decode(&payload)

	e.AddExecution(id, true, "")
	e.mu.Lock()
	execID := e.executions[0]["id"]
	e.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"executionId": execID,
		"finished":    true,
		"inputData":   payload["inputData"],
	})
}

func (e *Engine) listExecutions(w http.ResponseWriter, r *http.Request) {
	wfID := r.URL.Query().Get("workflowId")
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []map[string]any{}
	for _, ex := range e.executions {
		if wfID != "" && ex["workflowId"] != wfID {
			continue
		}
		out = append(out, ex)
		if len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (e *Engine) getExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ex := range e.executions {
		if ex["id"] == id {
			writeJSON(w, http.StatusOK, ex)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "execution not found"})
}

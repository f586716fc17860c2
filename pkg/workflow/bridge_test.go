package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sensei-dev/sensei/pkg/api"
	"github.com/sensei-dev/sensei/pkg/ratelimit"
	"github.com/sensei-dev/sensei/pkg/workflow/enginetest"
)

func newTestBridge(t *testing.T, opts ...Option) (*Bridge, *enginetest.Engine) {
	t.Helper()
	engine := enginetest.New()
	srv := httptest.NewServer(engine.Handler())
	t.Cleanup(srv.Close)
	return NewBridge(srv.URL+"/rest", "", opts...), engine
}

func sampleDraft() Draft {
	return Draft{
		Name: "Webhook to Slack",
		Nodes: []Node{
			{Name: "Webhook", Type: "n8n-nodes-base.webhook", TypeVersion: 1, Position: []float64{250, 300}},
			{Name: "Slack", Type: "n8n-nodes-base.slack", TypeVersion: 1, Position: []float64{450, 300},
				Parameters: map[string]any{"channel": "#alerts"}},
		},
		Connections: map[string]any{
			"Webhook": map[string]any{"main": []any{[]any{map[string]any{"node": "Slack", "type": "main", "index": 0}}}},
		},
	}
}

func TestBridge_CreateThenGet(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	in := sampleDraft()
	created, err := b.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created workflow has no id")
	}

	got, err := b.Get(ctx, created.ID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != in.Name {
		t.Errorf("name = %q, want %q", got.Name, in.Name)
	}
	if len(got.Nodes) != len(in.Nodes) {
		t.Errorf("node count = %d, want %d", len(got.Nodes), len(in.Nodes))
	}
}

func TestBridge_CreateInvalidNeverReachesNetwork(t *testing.T) {
	b, engine := newTestBridge(t)

	_, err := b.Create(context.Background(), Draft{Name: ""})
	if !errors.Is(err, api.ErrValidationFailed) {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) || len(vErr.Verdict.Errors) != 2 {
		t.Errorf("expected *ValidationError with 2 errors, got %v", err)
	}

	_, err = b.Update(context.Background(), "1", Draft{Name: "x"})
	if !errors.Is(err, api.ErrValidationFailed) {
		t.Fatalf("Update err = %v, want ErrValidationFailed", err)
	}
	if engine.Calls() != 0 {
		t.Errorf("engine calls = %d, want 0", engine.Calls())
	}
}

func TestBridge_UpdateListDelete(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	created, err := b.Create(ctx, sampleDraft())
	if err != nil {
		t.Fatal(err)
	}
	id := created.ID.String()

	upd := sampleDraft()
	upd.Name = "Renamed"
	if _, err := b.Update(ctx, id, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}

	list, err := b.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Renamed" {
		t.Errorf("List = %+v", list)
	}
	if n := b.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	if !b.Activate(ctx, id) {
		t.Error("Activate returned false")
	}
	if !b.Deactivate(ctx, id) {
		t.Error("Deactivate returned false")
	}
	if !b.Delete(ctx, id) {
		t.Error("Delete returned false")
	}
	if b.Delete(ctx, id) {
		t.Error("second Delete should return false")
	}
	if b.Activate(ctx, "missing") {
		t.Error("Activate on missing workflow should return false")
	}
}

func TestBridge_GetMissingCarriesStatus(t *testing.T) {
	b, _ := newTestBridge(t)

	_, err := b.Get(context.Background(), "404")
	var engErr *EngineError
	if !errors.As(err, &engErr) {
		t.Fatalf("err = %v, want *EngineError", err)
	}
	if engErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", engErr.StatusCode)
	}
	if !errors.Is(err, api.ErrUpstreamUnavailable) || !errors.Is(err, api.ErrNotFound) {
		t.Errorf("err should match ErrUpstreamUnavailable and ErrNotFound: %v", err)
	}
}

func TestBridge_ExecuteAndExecutions(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	created, _ := b.Create(ctx, sampleDraft())
	id := created.ID.String()

	res, err := b.Execute(ctx, id, map[string]any{"user": "ada"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res["finished"] != true {
		t.Errorf("Execute result = %v", res)
	}

	execs, err := b.Executions(ctx, id, 10)
	if err != nil {
		t.Fatalf("Executions: %v", err)
	}
	if len(execs) != 1 || execs[0].WorkflowID.String() != id {
		t.Fatalf("Executions = %+v", execs)
	}

	one, err := b.Execution(ctx, execs[0].ID.String())
	if err != nil {
		t.Fatalf("Execution: %v", err)
	}
	if !one.Finished {
		t.Error("execution should be finished")
	}
}

func TestBridge_ExecutePayload(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(APIKeyHeader) != "secret" {
			t.Errorf("%s = %q", APIKeyHeader, r.Header.Get(APIKeyHeader))
		}
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	b := NewBridge(srv.URL, "secret")
	if _, err := b.Execute(context.Background(), "42", nil); err != nil {
		t.Fatal(err)
	}
	wd, _ := payload["workflowData"].(map[string]any)
	if wd["id"] != "42" {
		t.Errorf("workflowData = %v", payload["workflowData"])
	}
	if _, ok := payload["inputData"]; ok {
		t.Error("inputData must be omitted when empty")
	}
}

func TestBridge_Statistics(t *testing.T) {
	b, engine := newTestBridge(t)
	engine.AddExecution("7", true, "")
	engine.AddExecution("7", true, "")
	engine.AddExecution("7", true, "2025-01-01T00:00:00Z")
	engine.AddExecution("7", false, "")
	engine.AddExecution("8", true, "")

	s, err := b.Statistics(context.Background(), "7")
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	want := Statistics{TotalExecutions: 4, Successful: 2, Failed: 1, Running: 1, SuccessRate: 50}
	if s != want {
		t.Errorf("Statistics = %+v, want %+v", s, want)
	}
}

func TestBridge_StatisticsDegradesOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := NewBridge(srv.URL, "").Statistics(context.Background(), "1")
	if err != nil {
		t.Fatalf("engine failures must not be returned as errors: %v", err)
	}
	if s.TotalExecutions != 0 || s.SuccessRate != 0 || s.Error == "" {
		t.Errorf("Statistics = %+v, want zeroed with error", s)
	}
}

func TestBridge_Analyze(t *testing.T) {
	b, engine := newTestBridge(t)
	ctx := context.Background()

	created, _ := b.Create(ctx, sampleDraft())
	id := created.ID.String()
	for range 7 {
		engine.AddExecution(id, true, "")
	}

	a, err := b.Analyze(ctx, id)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.Workflow.Name != "Webhook to Slack" || a.Workflow.NodeCount != 2 || a.Workflow.ConnectionCount != 1 {
		t.Errorf("Workflow = %+v", a.Workflow)
	}
	if a.Performance.TotalExecutions != 7 || a.Performance.SuccessRate != 100 {
		t.Errorf("Performance = %+v", a.Performance)
	}
	if len(a.RecentExecutions) != 5 {
		t.Errorf("recent executions = %d, want 5", len(a.RecentExecutions))
	}
	if len(a.Nodes) != 2 || a.Nodes[1].Parameters["channel"] != "#alerts" {
		t.Errorf("Nodes = %+v", a.Nodes)
	}
}

func TestBridge_AnalyzeDegradesStatistics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /workflows/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"name":"numeric id","nodes":[{"name":"a","type":"t"}],"connections":{}}`))
	})
	calls := 0
	mux.HandleFunc("GET /executions", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("limit") == "100" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, err := NewBridge(srv.URL, "").Analyze(context.Background(), "1")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.Workflow.ID != "1" {
		t.Errorf("numeric id decoded as %q", a.Workflow.ID)
	}
	if a.Performance.Error == "" {
		t.Error("statistics failure should be annotated")
	}
	if calls != 2 {
		t.Errorf("executions calls = %d, want 2", calls)
	}
}

func TestBridge_ProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewBridge(srv.URL, "").List(context.Background())
	if !errors.Is(err, api.ErrUpstreamProtocol) {
		t.Errorf("err = %v, want ErrUpstreamProtocol", err)
	}
}

func TestBridge_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := NewBridge(url, "")
	if _, err := b.List(context.Background()); !errors.Is(err, api.ErrUpstreamUnavailable) {
		t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if b.Probe(context.Background()) {
		t.Error("Probe should be false")
	}
	if b.Count(context.Background()) != 0 {
		t.Error("Count should be 0")
	}
}

func TestBridge_Probe(t *testing.T) {
	b, _ := newTestBridge(t)
	if !b.Probe(context.Background()) {
		t.Error("Probe should be true")
	}
}

func TestBridge_RateLimited(t *testing.T) {
	limiter := ratelimit.New(map[ratelimit.ResourceClass]ratelimit.Limit{
		ratelimit.General: {MaxRequests: 1, Window: time.Hour},
	})
	b, engine := newTestBridge(t, WithLimiter(limiter))
	ctx := ratelimit.WithSubject(context.Background(), "alice")

	if _, err := b.List(ctx); err != nil {
		t.Fatalf("first List: %v", err)
	}
	before := engine.Calls()
	if _, err := b.List(ctx); !errors.Is(err, api.ErrRateLimitExceeded) {
		t.Fatalf("err = %v, want ErrRateLimitExceeded", err)
	}
	if b.Delete(ctx, "1") {
		t.Error("rate-limited Delete should be false")
	}
	if s, err := b.Statistics(ctx, "1"); !errors.Is(err, api.ErrRateLimitExceeded) || s != (Statistics{}) {
		t.Errorf("Statistics = %+v, %v; want zero value and ErrRateLimitExceeded", s, err)
	}
	if engine.Calls() != before {
		t.Error("rejected calls must not reach the engine")
	}

	// Unmetered context is not limited.
	if _, err := b.List(context.Background()); err != nil {
		t.Errorf("unmetered List: %v", err)
	}
}

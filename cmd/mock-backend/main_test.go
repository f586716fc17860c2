package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sensei-dev/sensei/pkg/gateway"
	"github.com/sensei-dev/sensei/pkg/provider"
	"github.com/sensei-dev/sensei/pkg/workflow"
)

func newClient(t *testing.T, baseURL string, id provider.Identity, d provider.Dialect) *provider.HTTPClient {
	t.Helper()
	c, err := provider.NewHTTPClient(id, provider.Endpoint{
		BaseURL: baseURL,
		Model:   mockModel,
		APIKey:  "test-key",
		Dialect: d,
	}, nil, 5*time.Second, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return c
}

func TestMockServesEveryDialect(t *testing.T) {
	srv := httptest.NewServer(newMux(""))
	defer srv.Close()

	tests := []struct {
		id      provider.Identity
		dialect provider.Dialect
	}{
		{provider.Ollama, provider.DialectOllama},
		{provider.OpenAI, provider.DialectOpenAI},
		{provider.Anthropic, provider.DialectMessages},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.String(), func(t *testing.T) {
			c := newClient(t, srv.URL, tt.id, tt.dialect)
			ctx := context.Background()

			if !c.Probe(ctx) {
				t.Fatal("probe failed")
			}

			got, err := c.Chat(ctx, "be brief", "hello there")
			if err != nil {
				t.Fatalf("Chat: %v", err)
			}
			if got != "Mock reply to: hello there" {
				t.Errorf("reply = %q", got)
			}

			if _, err := c.Chat(ctx, "be brief", "please mock-error now"); err == nil {
				t.Error("expected an upstream error")
			}
		})
	}
}

func TestMockDraftReplyValidates(t *testing.T) {
	srv := httptest.NewServer(newMux(""))
	defer srv.Close()

	c := newClient(t, srv.URL, provider.OpenAI, provider.DialectOpenAI)
	raw, err := c.Chat(context.Background(), "", gateway.DraftPrompt("send an email every morning"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	d := gateway.ParseDraft(raw, "send an email every morning")
	if d.LowConfidence {
		t.Fatal("draft fell back to low confidence")
	}
	if v := workflow.Validate(d); !v.Valid {
		t.Errorf("draft invalid: %v", v.Errors)
	}
}

func TestMockEngineRequiresKey(t *testing.T) {
	srv := httptest.NewServer(newMux("secret"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/rest/workflows")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	b := workflow.NewBridge(srv.URL+"/rest", "secret")
	if !b.Probe(context.Background()) {
		t.Error("bridge probe failed with the right key")
	}
}

func TestLastLine(t *testing.T) {
	if got := lastLine("a\nb\n  c  "); got != "c" {
		t.Errorf("lastLine = %q", got)
	}
	if got := lastLine(strings.Repeat("x", 300)); len(got) != 200 {
		t.Errorf("len = %d, want 200", len(got))
	}
}

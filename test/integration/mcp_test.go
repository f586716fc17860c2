package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// bearerTransport adds the API key to every MCP request.
type bearerTransport struct {
	key string
}

func (b bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.key)
	return http.DefaultTransport.RoundTrip(r)
}

func connectMCP(t *testing.T, key string) (*mcp.ClientSession, error) {
	t.Helper()
	client := mcp.NewClient(&mcp.Implementation{Name: "integration", Version: "1.0.0"}, nil)
	return client.Connect(context.Background(), &mcp.StreamableClientTransport{
		Endpoint:   testEnv.BaseURL() + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{key: key}},
	}, nil)
}

func TestMCPChatThroughAuth(t *testing.T) {
	session, err := connectMCP(t, aliceKey)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "chat",
		Arguments: map[string]any{"message": "hello over mcp", "ai_provider": "openai"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %+v", res.Content)
	}
	text := res.Content[0].(*mcp.TextContent).Text
	if !strings.Contains(text, "hello over mcp") {
		t.Errorf("text = %q", text)
	}
}

func TestMCPListWorkflows(t *testing.T) {
	session, err := connectMCP(t, aliceKey)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "list_workflows"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Errorf("tool error: %+v", res.Content)
	}
}

func TestMCPRequiresAuth(t *testing.T) {
	session, err := connectMCP(t, "wrong-key")
	if err == nil {
		session.Close()
		t.Fatal("expected the handshake to be rejected")
	}
}

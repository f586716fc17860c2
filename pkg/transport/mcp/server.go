// Package mcp exposes the gateway and the workflow bridge as Model Context
// Protocol tools over streamable HTTP, so MCP-capable assistants can chat
// with the configured providers and manage workflows directly.
//
// The handler runs stateless: every HTTP request gets a fresh MCP server
// bound to the subject that the auth middleware attached to the request,
// so tool calls are metered exactly like the REST surface.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sensei-dev/sensei/pkg/debug"
	"github.com/sensei-dev/sensei/pkg/gateway"
	"github.com/sensei-dev/sensei/pkg/provider"
	"github.com/sensei-dev/sensei/pkg/ratelimit"
	"github.com/sensei-dev/sensei/pkg/workflow"
)

// Server builds MCP servers over one gateway and bridge.
type Server struct {
	gw      *gateway.Gateway
	bridge  *workflow.Bridge
	version string
}

// New returns a Server. bridge may be nil, in which case only the chat and
// provider tools are offered.
func New(gw *gateway.Gateway, bridge *workflow.Bridge, version string) *Server {
	return &Server{gw: gw, bridge: bridge, version: version}
}

// Handler returns the streamable HTTP handler to mount at the MCP path.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.NewMCPServer(ratelimit.SubjectFromContext(r.Context()))
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}

type chatInput struct {
	Message   string `json:"message" jsonschema:"the message to send"`
	Provider  string `json:"ai_provider,omitempty" jsonschema:"provider identity, defaults to llama"`
	SessionID string `json:"session_id,omitempty" jsonschema:"conversation id to continue"`
	Context   string `json:"workflow_context,omitempty" jsonschema:"extra context appended to the system prompt"`
}

type workflowInput struct {
	ID string `json:"workflow_id" jsonschema:"workflow id in the automation engine"`
}

type generateInput struct {
	Description string `json:"description" jsonschema:"what the workflow should do"`
	Provider    string `json:"ai_provider,omitempty" jsonschema:"provider identity, defaults to llama"`
	DryRun      bool   `json:"dry_run,omitempty" jsonschema:"validate the draft without creating it"`
}

type validateInput struct {
	Workflow workflow.Draft `json:"workflow" jsonschema:"workflow definition to check"`
}

type executeInput struct {
	ID    string         `json:"workflow_id" jsonschema:"workflow id in the automation engine"`
	Input map[string]any `json:"input_data,omitempty" jsonschema:"input passed to the run"`
}

// NewMCPServer returns an MCP server whose tools meter subject.
func (s *Server) NewMCPServer(subject string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "sensei", Version: s.version}, nil)

	bind := func(ctx context.Context) context.Context {
		if subject == "" {
			return ctx
		}
		return ratelimit.WithSubject(ctx, subject)
	}

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "chat",
		Description: "Send a message to an AI provider with the workflow assistant prompt",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in chatInput) (*mcp.CallToolResult, struct{}, error) {
		if in.Message == "" {
			return nil, struct{}{}, fmt.Errorf("message is required")
		}
		id, err := parseProvider(in.Provider)
		if err != nil {
			return nil, struct{}{}, err
		}
		res, err := s.gw.Chat(bind(ctx), gateway.ChatExchange{
			Message:   in.Message,
			SessionID: in.SessionID,
			Context:   in.Context,
			Provider:  id,
		})
		if err != nil {
			return nil, struct{}{}, err
		}
		out := textResult(res.Text)
		out.IsError = res.Failed
		return out, struct{}{}, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "provider_status",
		Description: "Probe every AI provider and report which are reachable",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		return jsonResult(s.gw.ProviderStatus(ctx))
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "validate_workflow",
		Description: "Check a workflow definition for structural errors",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in validateInput) (*mcp.CallToolResult, struct{}, error) {
		return jsonResult(workflow.Validate(in.Workflow))
	})

	if s.bridge == nil {
		return srv
	}

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_workflows",
		Description: "List the workflows stored in the automation engine",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		wfs, err := s.bridge.List(bind(ctx))
		if err != nil {
			return nil, struct{}{}, err
		}
		return jsonResult(wfs)
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_workflow",
		Description: "Fetch one workflow definition",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in workflowInput) (*mcp.CallToolResult, struct{}, error) {
		d, err := s.bridge.Get(bind(ctx), in.ID)
		if err != nil {
			return nil, struct{}{}, err
		}
		return jsonResult(d)
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "generate_workflow",
		Description: "Generate a workflow from a description and create it in the automation engine",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in generateInput) (*mcp.CallToolResult, struct{}, error) {
		if in.Description == "" {
			return nil, struct{}{}, fmt.Errorf("description is required")
		}
		id, err := parseProvider(in.Provider)
		if err != nil {
			return nil, struct{}{}, err
		}
		ctx = bind(ctx)
		if in.DryRun {
			d, err := s.gw.GenerateWorkflowDraft(ctx, in.Description, id)
			if err != nil {
				return nil, struct{}{}, err
			}
			return jsonResult(map[string]any{"workflow": d, "validation": workflow.Validate(d)})
		}
		res, err := s.gw.GenerateAndCreate(ctx, in.Description, id)
		if res != nil && err != nil {
			out, _, jerr := jsonResult(res)
			if jerr != nil {
				return nil, struct{}{}, jerr
			}
			out.IsError = true
			return out, struct{}{}, nil
		}
		if err != nil {
			return nil, struct{}{}, err
		}
		return jsonResult(res)
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "execute_workflow",
		Description: "Run a workflow once",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in executeInput) (*mcp.CallToolResult, struct{}, error) {
		res, err := s.bridge.Execute(bind(ctx), in.ID, in.Input)
		if err != nil {
			return nil, struct{}{}, err
		}
		return jsonResult(res)
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "workflow_statistics",
		Description: "Summarize the recent executions of a workflow",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in workflowInput) (*mcp.CallToolResult, struct{}, error) {
		stats, err := s.bridge.Statistics(bind(ctx), in.ID)
		if err != nil {
			return nil, struct{}{}, err
		}
		return jsonResult(stats)
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "explain_workflow",
		Description: "Ask an AI provider to explain a stored workflow",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in struct {
		ID       string `json:"workflow_id" jsonschema:"workflow id in the automation engine"`
		Provider string `json:"ai_provider,omitempty" jsonschema:"provider identity, defaults to llama"`
	}) (*mcp.CallToolResult, struct{}, error) {
		id, err := parseProvider(in.Provider)
		if err != nil {
			return nil, struct{}{}, err
		}
		res, err := s.gw.Explain(bind(ctx), in.ID, id)
		if err != nil {
			return nil, struct{}{}, err
		}
		out := textResult(res.Text)
		out.IsError = res.Failed
		return out, struct{}{}, nil
	})

	debug.Log("mcp", "server built", "subject", subject)
	return srv
}

func parseProvider(s string) (provider.Identity, error) {
	if s == "" {
		return provider.Llama, nil
	}
	return provider.ParseIdentity(s)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func jsonResult(v any) (*mcp.CallToolResult, struct{}, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, struct{}{}, fmt.Errorf("encoding result: %w", err)
	}
	return textResult(string(data)), struct{}{}, nil
}

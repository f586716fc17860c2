package gateway

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"github.com/sensei-dev/sensei/pkg/debug"
	"github.com/sensei-dev/sensei/pkg/provider"
	"github.com/sensei-dev/sensei/pkg/workflow"
)

const (
	fallbackNamePrefix = "Generated Workflow: "
	fallbackNameRunes  = 50

	defaultExplanation = "Workflow generated successfully"
)

// GenerateWorkflowDraft asks the provider for a workflow matching
// description. The first balanced JSON object in the reply is decoded as
// the draft. If there is none, or it does not decode, a minimal fallback
// draft is returned carrying the raw reply as its explanation and flagged
// LowConfidence. Provider failures also yield the fallback.
func (g *Gateway) GenerateWorkflowDraft(ctx context.Context, description string, id provider.Identity) (workflow.Draft, error) {
	client, err := g.registry.Client(id)
	if err != nil {
		return workflow.Draft{}, err
	}
	if err := g.admit(ctx); err != nil {
		return workflow.Draft{}, err
	}

	raw, _ := g.converse(ctx, client, id, DraftPrompt(description), "")
	return ParseDraft(raw, description), nil
}

// ParseDraft implements the two-stage extraction used by
// GenerateWorkflowDraft.
func ParseDraft(raw, description string) workflow.Draft {
	span, ok := ExtractJSONObject(raw)
	if !ok {
		debug.Log("gateway", "no JSON object in reply, using fallback draft")
		return fallbackDraft(raw, description)
	}

	var d workflow.Draft
	if err := json.Unmarshal([]byte(span), &d); err != nil {
		debug.Log("gateway", "reply JSON did not decode, using fallback draft", "error", err)
		return fallbackDraft(raw, description)
	}
	if d.Nodes == nil {
		d.Nodes = []workflow.Node{}
	}
	if d.Connections == nil {
		d.Connections = map[string]any{}
	}
	d.Explanation = defaultExplanation
	return d
}

func fallbackDraft(raw, description string) workflow.Draft {
	return workflow.Draft{
		Name:          fallbackNamePrefix + truncateRunes(description, fallbackNameRunes),
		Nodes:         []workflow.Node{},
		Connections:   map[string]any{},
		Active:        true,
		Settings:      map[string]any{},
		Explanation:   raw,
		LowConfidence: true,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Confidence scores a generated draft: 0.8 when it validates, 0.3 otherwise.
func Confidence(v workflow.Verdict) float64 {
	if v.Valid {
		return 0.8
	}
	return 0.3
}

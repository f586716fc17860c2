package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/sensei-dev/sensei/pkg/api"
	"github.com/sensei-dev/sensei/pkg/provider"
	"github.com/sensei-dev/sensei/pkg/recorder"
	"github.com/sensei-dev/sensei/pkg/workflow"
)

// errNoBridge is returned by workflow-aware operations when the gateway
// was built without a workflow bridge.
var errNoBridge = errors.New("workflow engine is not configured")

// Generated is the result of GenerateAndCreate.
type Generated struct {
	Workflow    *workflow.Draft  `json:"workflow"`
	Explanation string           `json:"ai_explanation"`
	Confidence  float64          `json:"confidence_score"`
	Verdict     workflow.Verdict `json:"validation"`
}

// GenerateAndCreate generates a draft, validates it and creates it in the
// engine. An invalid draft is not sent; the returned error wraps
// api.ErrValidationFailed and the result still carries the draft and
// verdict.
func (g *Gateway) GenerateAndCreate(ctx context.Context, description string, id provider.Identity) (*Generated, error) {
	if g.bridge == nil {
		return nil, errNoBridge
	}

	d, err := g.GenerateWorkflowDraft(ctx, description, id)
	if err != nil {
		return nil, err
	}

	v := workflow.Validate(d)
	res := &Generated{Workflow: &d, Explanation: d.Explanation, Confidence: Confidence(v), Verdict: v}
	if !v.Valid {
		return res, &workflow.ValidationError{Verdict: v}
	}

	created, err := g.bridge.Create(ctx, d)
	if err != nil {
		return res, err
	}
	res.Workflow = created

	g.record(ctx, recorder.Interaction{
		Provider:    string(id),
		UserMessage: "Generate workflow: " + description,
		AIResponse:  d.Explanation,
		WorkflowID:  created.ID.String(),
		Action:      "workflow_created",
	})
	return res, nil
}

// Assisted is the result of Optimize, Explain and FillParameters.
type Assisted struct {
	WorkflowID string             `json:"workflow_id"`
	Name       string             `json:"workflow_name"`
	Text       string             `json:"response"`
	Failed     bool               `json:"failed"`
	Provider   provider.Identity  `json:"ai_provider"`
	Analysis   *workflow.Analysis `json:"analysis,omitempty"`
}

// Optimize asks the provider for optimization advice on a stored workflow.
func (g *Gateway) Optimize(ctx context.Context, workflowID string, goals []string, id provider.Identity) (*Assisted, error) {
	return g.assist(ctx, workflowID, id, true, "workflow_optimized",
		"Optimize workflow "+workflowID, "Optimizing workflow "+workflowID,
		func(d *workflow.Draft, a *workflow.Analysis) string { return OptimizePrompt(d, a, goals) })
}

// Explain asks the provider for a plain-language explanation of a stored
// workflow.
func (g *Gateway) Explain(ctx context.Context, workflowID string, id provider.Identity) (*Assisted, error) {
	return g.assist(ctx, workflowID, id, true, "workflow_explained",
		"Explain workflow "+workflowID, "Explaining workflow "+workflowID,
		func(d *workflow.Draft, a *workflow.Analysis) string { return ExplainPrompt(d, a) })
}

// FillParameters asks the provider for parameter values for a stored
// workflow's nodes, given caller-supplied context data.
func (g *Gateway) FillParameters(ctx context.Context, workflowID string, contextData map[string]any, id provider.Identity) (*Assisted, error) {
	return g.assist(ctx, workflowID, id, false, "parameters_filled",
		"Fill parameters for workflow "+workflowID, "Filling parameters for workflow "+workflowID,
		func(d *workflow.Draft, _ *workflow.Analysis) string { return FillParametersPrompt(d, contextData) })
}

// assist fetches the workflow (and its analysis when withAnalysis is set),
// builds the prompt and runs one chat. Engine failures are returned as
// errors; provider failures are reported in the result text.
func (g *Gateway) assist(
	ctx context.Context,
	workflowID string,
	id provider.Identity,
	withAnalysis bool,
	action, userMessage, chatContext string,
	prompt func(*workflow.Draft, *workflow.Analysis) string,
) (*Assisted, error) {
	client, err := g.registry.Client(id)
	if err != nil {
		return nil, err
	}
	if g.bridge == nil {
		return nil, errNoBridge
	}
	if workflowID == "" {
		return nil, api.NewInvalidRequestError("workflow_id", "workflow id is required")
	}

	d, err := g.bridge.Get(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("fetch workflow: %w", err)
	}
	var a *workflow.Analysis
	if withAnalysis {
		if a, err = g.bridge.Analyze(ctx, workflowID); err != nil {
			return nil, fmt.Errorf("analyze workflow: %w", err)
		}
	}

	if err := g.admit(ctx); err != nil {
		return nil, err
	}
	text, failed := g.converse(ctx, client, id, prompt(d, a), chatContext)

	g.record(ctx, recorder.Interaction{
		Provider:    string(id),
		UserMessage: userMessage,
		AIResponse:  text,
		WorkflowID:  workflowID,
		Action:      action,
		Failed:      failed,
	})

	return &Assisted{
		WorkflowID: workflowID,
		Name:       d.Name,
		Text:       text,
		Failed:     failed,
		Provider:   id,
		Analysis:   a,
	}, nil
}

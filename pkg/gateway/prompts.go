package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sensei-dev/sensei/pkg/workflow"
)

const systemPrompt = `You are N8N-Sensei, an AI assistant specialized in N8N workflow automation.
You help users create, modify, and optimize N8N workflows. You can:
1. Generate new workflows from descriptions
2. Modify existing workflows
3. Fill in workflow parameters intelligently
4. Optimize workflows for better performance
5. Explain workflow concepts and best practices

Always provide practical, actionable advice and be ready to generate actual N8N workflow JSON when requested.`

// SystemPrompt returns the fixed assistant prompt, followed by the caller's
// context when one is given.
func SystemPrompt(context string) string {
	if strings.TrimSpace(context) == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\nCurrent context: " + context
}

// DraftPrompt asks the provider for a workflow definition as a JSON object.
func DraftPrompt(description string) string {
	return fmt.Sprintf(`Generate a complete N8N workflow based on this description: %s

Please return a valid N8N workflow JSON with the following structure:
{
  "name": "Workflow Name",
  "nodes": [
    // Array of workflow nodes
  ],
  "connections": {
    // Node connections
  },
  "active": true,
  "settings": {}
}

Make sure to include proper node types, parameters, and connections. Use realistic node IDs and ensure the workflow is functional.`, description)
}

// OptimizePrompt asks for optimization advice on an existing workflow.
func OptimizePrompt(d *workflow.Draft, a *workflow.Analysis, goals []string) string {
	if len(goals) == 0 {
		goals = []string{"performance", "reliability"}
	}
	return fmt.Sprintf(`Analyze and optimize this N8N workflow:

Workflow: %s
Current Performance: %s
Nodes: %d nodes

Optimization Goals: %s

Current Workflow Structure:
%s

Please provide:
1. Specific optimization recommendations
2. Updated workflow JSON (if changes needed)
3. Expected performance improvements
4. Risk assessment of changes`,
		d.Name, compact(a.Performance), len(a.Nodes), strings.Join(goals, ", "), indent(d))
}

// ExplainPrompt asks for a plain-language explanation of a workflow.
func ExplainPrompt(d *workflow.Draft, a *workflow.Analysis) string {
	return fmt.Sprintf(`Explain this N8N workflow in simple terms:

Workflow Name: %s
Number of Nodes: %d
Performance Stats: %s

Workflow Structure:
%s

Please provide:
1. What this workflow does (purpose)
2. How it works (step-by-step)
3. Key benefits and use cases
4. Any potential improvements`,
		d.Name, len(a.Nodes), compact(a.Performance), indent(d))
}

// FillParametersPrompt asks for parameter suggestions keyed by node.
func FillParametersPrompt(d *workflow.Draft, contextData map[string]any) string {
	return fmt.Sprintf(`Fill in the missing parameters for this N8N workflow based on the provided context:

Workflow: %s
Context Data: %s

Workflow Nodes:
%s

Please analyze each node and suggest appropriate parameter values based on the context.
Return a JSON object with node IDs as keys and parameter suggestions as values.

Example format:
{
    "node_id_1": {
        "parameter_name": "suggested_value",
        "another_parameter": "another_value"
    },
    "node_id_2": {
        "parameter_name": "suggested_value"
    }
}`, d.Name, compact(contextData), indent(d.Nodes))
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func indent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

package gateway

import "strings"

// Action is a follow-up the assistant's reply appears to suggest.
type Action string

const (
	ActionNone    Action = ""
	ActionCreate  Action = "create_suggested"
	ActionModify  Action = "modify_suggested"
	ActionExecute Action = "execute_suggested"
)

var actionRules = []struct {
	phrases    []string
	action     Action
	suggestion string
}{
	{[]string{"create workflow", "generate workflow"}, ActionCreate, "Would you like me to generate this workflow for you?"},
	{[]string{"modify workflow", "update workflow"}, ActionModify, "I can help you modify the workflow. Please provide the workflow ID."},
	{[]string{"execute workflow", "run workflow"}, ActionExecute, "I can execute this workflow for you. Please confirm."},
}

// DetectAction scans a reply for phrases hinting at a workflow action.
//
// This is a best-effort keyword heuristic, not an intent classifier: it
// matches the phrases anywhere in the text and will fire on replies that
// merely mention them. Only the first matching rule applies.
func DetectAction(text string) (Action, []string) {
	lower := strings.ToLower(text)
	for _, r := range actionRules {
		for _, p := range r.phrases {
			if strings.Contains(lower, p) {
				return r.action, []string{r.suggestion}
			}
		}
	}
	return ActionNone, []string{}
}

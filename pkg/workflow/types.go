package workflow

import (
	"bytes"
	"encoding/json"
)

// ID is an engine identifier. Older engine versions emit numeric ids,
// newer ones strings; both decode into ID.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Draft is a workflow definition as exchanged with the engine.
type Draft struct {
	ID          ID             `json:"id,omitempty"`
	Name        string         `json:"name"`
	Nodes       []Node         `json:"nodes"`
	Connections map[string]any `json:"connections"`
	Active      bool           `json:"active"`
	Settings    map[string]any `json:"settings,omitempty"`
	Tags        []Tag          `json:"tags,omitempty"`

	// Explanation carries the raw AI output when a draft could not be
	// extracted from it. LowConfidence marks such fallback drafts. Neither
	// is sent to the engine.
	Explanation   string `json:"-"`
	LowConfidence bool   `json:"-"`
}

// Node is one step of a workflow.
type Node struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	TypeVersion float64        `json:"typeVersion,omitempty"`
	Position    []float64      `json:"position,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
}

// Tag is an engine workflow tag.
type Tag struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name"`
}

// Verdict is the result of Validate. Errors block a create or update;
// warnings do not.
type Verdict struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Execution is one run of a workflow as reported by the engine.
type Execution struct {
	ID         ID      `json:"id"`
	WorkflowID ID      `json:"workflowId,omitempty"`
	Finished   bool    `json:"finished"`
	Mode       string  `json:"mode,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartedAt  string  `json:"startedAt,omitempty"`
	StoppedAt  *string `json:"stoppedAt,omitempty"`
}

// stopped reports whether the engine recorded a stop time.
func (e Execution) stopped() bool {
	return e.StoppedAt != nil && *e.StoppedAt != ""
}

// Statistics summarizes recent executions of one workflow. On failure the
// counters are zero and Error holds the reason.
type Statistics struct {
	TotalExecutions int     `json:"total_executions"`
	Successful      int     `json:"successful"`
	Failed          int     `json:"failed"`
	Running         int     `json:"running"`
	SuccessRate     float64 `json:"success_rate"`
	Error           string  `json:"error,omitempty"`
}

// Summary is the header block of an Analysis.
type Summary struct {
	ID              ID     `json:"id"`
	Name            string `json:"name"`
	Active          bool   `json:"active"`
	NodeCount       int    `json:"node_count"`
	ConnectionCount int    `json:"connection_count"`
	Tags            []Tag  `json:"tags"`
}

// NodeSummary is the per-node block of an Analysis.
type NodeSummary struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
	Position   []float64      `json:"position"`
}

// Analysis bundles a workflow, its statistics and recent executions into
// one structure meant to be embedded in an AI prompt.
type Analysis struct {
	Workflow         Summary       `json:"workflow"`
	Performance      Statistics    `json:"performance"`
	RecentExecutions []Execution   `json:"recent_executions"`
	Nodes            []NodeSummary `json:"nodes"`
}

package workflow

import (
	"fmt"
	"strings"
)

// Validate checks the structure of d. All violations are collected; it
// never stops at the first one. A draft with no name or no nodes is never
// valid.
func Validate(d Draft) Verdict {
	v := Verdict{Valid: true, Errors: []string{}, Warnings: []string{}}

	if strings.TrimSpace(d.Name) == "" {
		v.Errors = append(v.Errors, "Workflow name is required")
	}
	if len(d.Nodes) == 0 {
		v.Errors = append(v.Errors, "Workflow must have at least one node")
	}
	for i, n := range d.Nodes {
		if strings.TrimSpace(n.Type) == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("Node %d is missing type", i))
		}
		if strings.TrimSpace(n.Name) == "" {
			v.Warnings = append(v.Warnings, fmt.Sprintf("Node %d is missing name", i))
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}

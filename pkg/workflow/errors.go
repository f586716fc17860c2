package workflow

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sensei-dev/sensei/pkg/api"
)

// ValidationError is returned by Create and Update for drafts that fail
// Validate. It matches api.ErrValidationFailed.
type ValidationError struct {
	Verdict Verdict
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow validation failed: %s", strings.Join(e.Verdict.Errors, "; "))
}

func (e *ValidationError) Unwrap() error { return api.ErrValidationFailed }

// EngineError is a failed call to the automation engine. StatusCode is 0
// when no response was received. A 404 additionally matches api.ErrNotFound.
type EngineError struct {
	Op         string
	StatusCode int
	Message    string
	Kind       error
}

func (e *EngineError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("automation engine %s failed (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("automation engine %s failed: %s", e.Op, e.Message)
}

func (e *EngineError) Unwrap() []error {
	if e.StatusCode == http.StatusNotFound {
		return []error{e.Kind, api.ErrNotFound}
	}
	return []error{e.Kind}
}

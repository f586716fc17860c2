package provider

import (
	"fmt"

	"github.com/sensei-dev/sensei/pkg/api"
)

// UpstreamError describes a failed exchange with a provider. Kind is one of
// api.ErrUpstreamUnavailable, api.ErrUpstreamProtocol or api.ErrUpstreamAuth
// and is what errors.Is matches against.
type UpstreamError struct {
	Provider   Identity
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Kind       error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Kind }

// kindForStatus maps a non-2xx status onto the taxonomy.
func kindForStatus(code int) error {
	switch code {
	case 401, 403:
		return api.ErrUpstreamAuth
	}
	return api.ErrUpstreamUnavailable
}

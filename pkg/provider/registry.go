package provider

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sensei-dev/sensei/pkg/api"
)

// Registry resolves identities to clients. It is built once at startup and
// is read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	clients map[Identity]Client
}

// Option configures NewRegistry.
type Option func(*registryOptions)

type registryOptions struct {
	httpClient   *http.Client
	chatTimeout  time.Duration
	probeTimeout time.Duration
}

// WithHTTPClient sets the HTTP client shared by all providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *registryOptions) { o.httpClient = c }
}

// WithTimeouts overrides the chat and probe timeouts.
func WithTimeouts(chat, probe time.Duration) Option {
	return func(o *registryOptions) {
		o.chatTimeout = chat
		o.probeTimeout = probe
	}
}

// NewRegistry builds an HTTPClient for every endpoint.
func NewRegistry(endpoints map[Identity]Endpoint, opts ...Option) (*Registry, error) {
	o := registryOptions{
		chatTimeout:  DefaultChatTimeout,
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	clients := make(map[Identity]Client, len(endpoints))
	for id, ep := range endpoints {
		if !id.Valid() {
			return nil, fmt.Errorf("%w: %q", api.ErrUnsupportedProvider, string(id))
		}
		c, err := NewHTTPClient(id, ep, o.httpClient, o.chatTimeout, o.probeTimeout)
		if err != nil {
			return nil, err
		}
		clients[id] = c
	}
	return &Registry{clients: clients}, nil
}

// NewStaticRegistry wraps pre-built clients.
func NewStaticRegistry(clients map[Identity]Client) *Registry {
	m := make(map[Identity]Client, len(clients))
	for id, c := range clients {
		m[id] = c
	}
	return &Registry{clients: m}
}

// Client returns the client for id, or api.ErrUnsupportedProvider if the
// identity is unknown or was not configured.
func (r *Registry) Client(id Identity) (Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", api.ErrUnsupportedProvider, string(id))
	}
	return c, nil
}

// Configured returns the configured identities in probe order.
func (r *Registry) Configured() []Identity {
	var out []Identity
	for _, id := range allIdentities {
		if _, ok := r.clients[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

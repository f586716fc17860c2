package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sensei-dev/sensei/pkg/api"
	"github.com/sensei-dev/sensei/pkg/debug"
	"github.com/sensei-dev/sensei/pkg/observability"
	"github.com/sensei-dev/sensei/pkg/ratelimit"
	"github.com/sensei-dev/sensei/pkg/transport"
)

// DefaultBypassEndpoints are served without credentials.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/readyz/n8n"}

type identityKey struct{}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by the middleware, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// Middleware authenticates every request outside bypass with chain. A
// rejected request gets 401. An accepted one continues with its identity
// and rate-limit subject in the context. CORS preflights are never
// authenticated.
func Middleware(chain *Chain, bypass []string) transport.Middleware {
	skip := make(map[string]struct{}, len(bypass))
	for _, p := range bypass {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)
			if res.Vote != Accept || res.Identity == nil {
				reason := "invalid"
				if errors.Is(res.Err, ErrUnauthenticated) {
					reason = "missing"
				}
				observability.AuthFailuresTotal.WithLabelValues(reason).Inc()
				slog.Warn("request rejected", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "reason", reason, "error", res.Err)

				w.Header().Set("WWW-Authenticate", "Bearer")
				transport.WriteErrorResponse(w, &api.APIError{
					Type:    api.ErrorTypeUnauthorized,
					Message: ErrUnauthenticated.Error(),
				}, http.StatusUnauthorized)
				return
			}

			id := res.Identity
			if id.Subject == "" {
				slog.Error("authenticator accepted a request without a subject", "method", id.Method)
				transport.WriteErrorResponse(w, api.NewServerError("authentication failed"), http.StatusInternalServerError)
				return
			}

			debug.Log("auth", "accepted", "subject", id.Subject, "method", id.Method, "path", r.URL.Path)

			ctx := WithIdentity(r.Context(), id)
			ctx = ratelimit.WithSubject(ctx, id.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package transport

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/sensei-dev/sensei/pkg/api"
)

// Recovery turns a handler panic into a 500 and keeps the server running.
// The panic value is logged with the stack but never sent to the client.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				id := RequestIDFromContext(r.Context())
				slog.Error("handler panic", "request_id", id, "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
				if !rec.committed() {
					WriteAPIError(w, api.NewServerError("internal server error (request "+id+")"))
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

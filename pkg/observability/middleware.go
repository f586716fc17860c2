package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Surface names of the API areas used as the "surface" label.
const (
	SurfaceChat      = "chat"
	SurfaceWorkflows = "workflows"
	SurfaceProviders = "providers"
	SurfaceHealth    = "health"
	SurfaceMetrics   = "metrics"
	SurfaceMCP       = "mcp"
	SurfaceOther     = "other"
)

// Surface maps a request path onto a bounded set of label values so that
// workflow and execution IDs never reach the metric labels.
func Surface(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/chat"), strings.HasPrefix(path, "/v1/sessions"):
		return SurfaceChat
	case strings.HasPrefix(path, "/v1/workflows"), strings.HasPrefix(path, "/v1/executions"):
		return SurfaceWorkflows
	case strings.HasPrefix(path, "/v1/providers"):
		return SurfaceProviders
	case path == "/healthz", strings.HasPrefix(path, "/readyz"):
		return SurfaceHealth
	case path == "/metrics":
		return SurfaceMetrics
	case strings.HasPrefix(path, "/mcp"):
		return SurfaceMCP
	}
	return SurfaceOther
}

// MetricsMiddleware records the request counter, the duration histogram
// and the in-flight gauge for every request.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		surface := Surface(r.URL.Path)
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		start := time.Now()
		cw := &codeWriter{ResponseWriter: w}
		next.ServeHTTP(cw, r)

		RequestsTotal.WithLabelValues(surface, r.Method, StatusClass(cw.Code())).Inc()
		RequestDuration.WithLabelValues(surface).Observe(time.Since(start).Seconds())
	})
}

// StatusClass renders a status code as "2xx", "4xx" and so on.
func StatusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// codeWriter remembers the first status code written. MCP responses are
// streamed, so Flush must reach the underlying writer.
type codeWriter struct {
	http.ResponseWriter
	code int
}

func (w *codeWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *codeWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *codeWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *codeWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Code is the status sent, 200 when the handler wrote nothing.
func (w *codeWriter) Code() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

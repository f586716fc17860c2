package transport

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS answers preflight requests and sets Access-Control-* headers for
// the listed origins. "*" allows any origin. With no origins the
// middleware is a pass-through.
func CORS(origins []string) Middleware {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader, "Mcp-Session-Id"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sensei-dev/sensei/pkg/api"
)

// statusByType is the HTTP status of each error type. Upstream failures
// are the gateway's fault from the caller's view, hence 502.
var statusByType = map[api.ErrorType]int{
	api.ErrorTypeInvalidRequest:      http.StatusBadRequest,
	api.ErrorTypeUnsupportedProvider: http.StatusBadRequest,
	api.ErrorTypeUnauthorized:        http.StatusUnauthorized,
	api.ErrorTypeNotFound:            http.StatusNotFound,
	api.ErrorTypeValidationFailed:    http.StatusUnprocessableEntity,
	api.ErrorTypeTooManyRequests:     http.StatusTooManyRequests,
	api.ErrorTypeUpstreamUnavailable: http.StatusBadGateway,
	api.ErrorTypeUpstreamAuth:        http.StatusBadGateway,
	api.ErrorTypeUpstreamProtocol:    http.StatusBadGateway,
	api.ErrorTypeServerError:         http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for t, 500 for unknown types.
func StatusFor(t api.ErrorType) int {
	if code, ok := statusByType[t]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v as the response body with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response write failed", "error", err)
	}
}

// WriteErrorResponse writes apiErr in the error envelope with an explicit
// status.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, status int) {
	WriteJSON(w, status, api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes apiErr with the status of its type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, StatusFor(apiErr.Type))
}

// WriteError classifies err with api.FromError and writes it.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, api.FromError(err))
}

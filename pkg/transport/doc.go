// Package transport holds the HTTP plumbing shared by sensei's adapters:
// error envelopes and status mapping, request IDs, access logging, panic
// recovery and CORS.
//
// Middleware operates on plain http.Handlers and composes with Chain.
// Errors are rendered as the api.ErrorResponse envelope, with the status
// code derived from the error taxonomy in pkg/api.
package transport

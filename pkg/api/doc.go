// Package api defines the error taxonomy shared by every sensei component
// and the JSON error envelope written by the HTTP adapter.
//
// Components return the sentinel errors declared here (wrapped with
// context where useful) so that callers can branch with errors.Is. The
// HTTP layer converts any error into an [APIError] with [FromError].
//
// The package has zero external dependencies and performs no I/O.
package api

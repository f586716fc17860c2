// Package auth identifies the caller of every request.
//
// A Chain asks its authenticators in turn. Each votes Accept, Reject or
// Abstain, and the first non-abstaining vote decides. When every
// authenticator abstains the request is rejected, or admitted under the
// shared anonymous subject when the chain allows anonymous callers.
//
// The middleware stores the identity in the request context and publishes
// its subject to the rate limiter. Admission itself happens in the
// components, which know which resource class an operation consumes.
package auth

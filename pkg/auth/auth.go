package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Vote is one authenticator's verdict on a request.
type Vote int

const (
	// Abstain means the request carries no credential this authenticator
	// understands. The chain asks the next one.
	Abstain Vote = iota

	// Accept means the credential is valid. The chain stops.
	Accept

	// Reject means a credential is present but invalid. The chain stops.
	Reject
)

func (v Vote) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	}
	return "abstain"
}

// Method names how an identity was established.
const (
	MethodAPIKey    = "apikey"
	MethodJWT       = "jwt"
	MethodAnonymous = "anonymous"
)

// AnonymousSubject is shared by every caller admitted without credentials,
// so they draw on one rate-limit budget and one history scope.
const AnonymousSubject = "anonymous"

// ErrUnauthenticated is the rejection reason when no authenticator accepts
// the request.
var ErrUnauthenticated = errors.New("authentication required")

// Identity is an authenticated caller.
type Identity struct {
	// Subject keys the rate limiter and scopes the interaction history.
	// Never empty.
	Subject string

	// Role is an optional role carried by the credential.
	Role string

	// Method is one of the Method constants.
	Method string

	// ExpiresAt is the credential expiry, zero when it does not expire.
	ExpiresAt time.Time
}

// Result is the outcome of one authentication attempt. Identity is set
// only on Accept and Err only on Reject.
type Result struct {
	Vote     Vote
	Identity *Identity
	Err      error
}

// Accepted returns an Accept result for id.
func Accepted(id *Identity) Result { return Result{Vote: Accept, Identity: id} }

// Rejected returns a Reject result carrying err.
func Rejected(err error) Result { return Result{Vote: Reject, Err: err} }

// Authenticator examines the credentials of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// Chain asks its authenticators in order and stops at the first Accept or
// Reject. When all abstain the request is rejected unless AllowAnonymous
// is set, in which case it is admitted as AnonymousSubject.
type Chain struct {
	Authenticators []Authenticator
	AllowAnonymous bool
}

// NewChain returns a chain over authns.
func NewChain(allowAnonymous bool, authns ...Authenticator) *Chain {
	return &Chain{Authenticators: authns, AllowAnonymous: allowAnonymous}
}

// Authenticate runs the chain.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.Authenticators {
		if res := a.Authenticate(ctx, r); res.Vote != Abstain {
			return res
		}
	}
	if c.AllowAnonymous {
		return Accepted(&Identity{Subject: AnonymousSubject, Method: MethodAnonymous})
	}
	return Rejected(ErrUnauthenticated)
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
// ok is false when the header is absent or uses another scheme.
func BearerToken(r *http.Request) (token string, ok bool) {
	return strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
}

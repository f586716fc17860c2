// Package apikey authenticates bearer tokens against a static set of
// configured keys. Keys are kept only as SHA-256 hashes and compared in
// constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/sensei-dev/sensei/pkg/auth"
)

// Key is one configured API key and the subject it identifies.
type Key struct {
	Key     string
	Subject string
}

var (
	errEmptyToken = errors.New("apikey: empty bearer token")
	errUnknownKey = errors.New("apikey: unknown key")
)

type entry struct {
	hash    [32]byte
	subject string
}

// Authenticator validates bearer tokens against a static key store.
type Authenticator struct {
	keys []entry
}

// New creates an API key authenticator. Plaintext keys are not retained.
func New(keys []Key) *Authenticator {
	a := &Authenticator{keys: make([]entry, 0, len(keys))}
	for _, k := range keys {
		subject := k.Subject
		if subject == "" {
			subject = "apikey"
		}
		a.keys = append(a.keys, entry{hash: sha256.Sum256([]byte(k.Key)), subject: subject})
	}
	return a
}

// Authenticate accepts a known key and rejects an unknown or empty bearer
// token. Requests without a bearer token are left to the next
// authenticator.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, ok := auth.BearerToken(r)
	switch {
	case !ok:
		return auth.Result{}
	case token == "":
		return auth.Rejected(errEmptyToken)
	}

	sum := sha256.Sum256([]byte(token))

	// Every entry is compared so timing does not reveal the match position.
	subject := ""
	for _, e := range a.keys {
		if subtle.ConstantTimeCompare(sum[:], e.hash[:]) == 1 && subject == "" {
			subject = e.subject
		}
	}
	if subject == "" {
		return auth.Rejected(errUnknownKey)
	}
	return auth.Accepted(&auth.Identity{Subject: subject, Method: auth.MethodAPIKey})
}

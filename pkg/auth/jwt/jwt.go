// Package jwt authenticates HS256-signed bearer tokens.
//
// Tokens carry the caller in the "sub" claim (configurable) and an optional
// "role" claim. Issuer and audience are checked when configured.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/sensei-dev/sensei/pkg/auth"
	"github.com/sensei-dev/sensei/pkg/debug"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the shared HMAC key. Required.
	Secret []byte

	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string

	// Audience is the expected aud claim. If empty, audience is not validated.
	Audience string

	// SubjectClaim names the claim used as the identity subject. Default: "sub".
	SubjectClaim string

	// Leeway tolerates clock skew on exp/nbf/iat. Default: 30s.
	Leeway time.Duration
}

func (c *Config) applyDefaults() {
	if c.SubjectClaim == "" {
		c.SubjectClaim = "sub"
	}
	if c.Leeway == 0 {
		c.Leeway = 30 * time.Second
	}
}

// Authenticator validates HS256 bearer tokens.
type Authenticator struct {
	config Config
	parser *jwtlib.Parser
}

// New creates a JWT authenticator. An empty secret is rejected.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret is required")
	}
	cfg.applyDefaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{config: cfg, parser: jwtlib.NewParser(opts...)}, nil
}

// Authenticate validates the bearer token. A request without one is left
// to the next authenticator. A token that fails signature, expiry, issuer
// or audience checks, or lacks the subject claim, is rejected.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	raw, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{}
	}
	if raw == "" {
		return auth.Rejected(errors.New("jwt: empty bearer token"))
	}

	claims := jwtlib.MapClaims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, a.key); err != nil {
		debug.Log("auth", "jwt rejected", "error", err)
		return auth.Rejected(fmt.Errorf("jwt: %w", err))
	}

	subject := claimString(claims, a.config.SubjectClaim)
	if subject == "" {
		return auth.Rejected(fmt.Errorf("jwt: missing %q claim", a.config.SubjectClaim))
	}

	id := &auth.Identity{
		Subject: subject,
		Role:    claimString(claims, "role"),
		Method:  auth.MethodJWT,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return auth.Accepted(id)
}

func (a *Authenticator) key(*jwtlib.Token) (any, error) {
	return a.config.Secret, nil
}

// Sign issues an HS256 token for subject that expires after ttl. It is the
// counterpart of Authenticate and is used by operators to mint tokens.
func Sign(secret []byte, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

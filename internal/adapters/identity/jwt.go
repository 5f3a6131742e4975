// Package identity resolves the acting user for HTTP requests (JWT bearer tokens)
// and for the CLI (operator config).
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/ctxutil"
	"github.com/example/galley/internal/ports/secondary"
)

// ErrNoActor is returned when no identity could be resolved for the caller.
var ErrNoActor = errors.New("no authenticated actor")

// Claims is the token payload galley understands.
// Branches may be a JSON array or a comma-separated string.
type Claims struct {
	UserID   string `json:"user_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	Branches any    `json:"branches,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse validates a token and converts its claims into an actor.
func (v *Verifier) Parse(tokenString string) (access.Actor, error) {
	if len(v.secret) == 0 {
		return access.Actor{}, fmt.Errorf("JWT secret missing")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return access.Actor{}, fmt.Errorf("invalid token: %w", err)
	}

	id := claims.Subject
	if id == "" {
		id = claims.UserID
	}
	role, ok := access.ParseRole(claims.Role)
	if !ok {
		return access.Actor{}, fmt.Errorf("invalid token: unknown role %q", claims.Role)
	}
	return access.Actor{
		ID:       id,
		Name:     claims.Name,
		Role:     role,
		Branches: branchList(claims.Branches),
	}, nil
}

// Sign issues a token for actor valid for ttl.
func (v *Verifier) Sign(actor access.Actor, ttl time.Duration, now time.Time) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("JWT secret missing")
	}
	claims := Claims{
		Name: actor.Name,
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if len(actor.Branches) > 0 {
		claims.Branches = actor.Branches
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func branchList(raw any) []string {
	var out []string
	switch b := raw.(type) {
	case string:
		for _, s := range strings.Split(b, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, s := range b {
			if str, ok := s.(string); ok && str != "" {
				out = append(out, str)
			}
		}
	case []string:
		out = b
	}
	return out
}

// ContextProvider returns the actor placed in the request context by the auth middleware.
type ContextProvider struct{}

var _ secondary.IdentityProvider = ContextProvider{}

// CurrentActor implements secondary.IdentityProvider.
func (ContextProvider) CurrentActor(ctx context.Context) (access.Actor, error) {
	a := ctxutil.ActorFromContext(ctx)
	if a.Role == "" {
		return access.Actor{}, ErrNoActor
	}
	return a, nil
}

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles used by the portal.
const (
	RoleStudent = "STUDENT"
	RoleFaculty = "FACULTY"
	RoleAdmin   = "ADMIN"
)

// ErrNoToken is returned when no credentials are held.
var ErrNoToken = errors.New("no auth token")

// Claims are the fields the portal puts in its tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Context is the caller identity handed to everything that talks to the backend.
type Context struct {
	Token     string
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// Authenticated reports whether a token is held.
func (c Context) Authenticated() bool {
	return c.Token != ""
}

// Expired reports whether the token's exp claim has passed. Tokens without exp never expire here.
func (c Context) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// FromToken decodes a bearer token's claims without verifying the signature.
// The backend verifies; the client only needs the role and expiry.
func FromToken(token string) (Context, error) {
	if token == "" {
		return Context{}, ErrNoToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Context{}, err
	}
	ctx := Context{Token: token, Subject: claims.Subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		ctx.ExpiresAt = claims.ExpiresAt.Time
	}
	return ctx, nil
}

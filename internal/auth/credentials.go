package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

var (
	// ErrNoToken indicates no bearer token is stored (logged out).
	ErrNoToken = errors.New("not logged in")

	// ErrOpaqueToken indicates the token is not a JWT and carries no readable claims.
	ErrOpaqueToken = errors.New("token is opaque")
)

// Credentials is the authentication context shared by every API client.
// It is passed explicitly to each client; there is exactly one token at a time.
type Credentials struct {
	store Store
}

// NewCredentials returns credentials persisted in store.
func NewCredentials(store Store) *Credentials {
	return &Credentials{store: store}
}

// Token returns the current bearer token, or ErrNoToken.
func (c *Credentials) Token() (*oauth2.Token, error) {
	raw, err := c.store.Get(KeyToken)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if raw == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}, nil
}

// Set replaces the stored token.
func (c *Credentials) Set(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.New("empty access token")
	}
	return c.store.Set(KeyToken, token.AccessToken)
}

// Clear erases the stored token.
func (c *Credentials) Clear() error {
	return c.store.Delete(KeyToken)
}

// LoggedIn reports whether a token is stored.
func (c *Credentials) LoggedIn() bool {
	_, err := c.Token()
	return err == nil
}

// Claims is the subset of JWT claims shown by `whoami`.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt *time.Time
}

// ParseClaims reads claims from a JWT access token without verifying its
// signature. The server is the only party that validates tokens.
func ParseClaims(accessToken string) (*Claims, error) {
	if strings.Count(accessToken, ".") != 2 {
		return nil, ErrOpaqueToken
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
	}

	claims := &Claims{}
	if sub, err := mc.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if role, ok := mc["role"].(string); ok {
		claims.Role = role
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		claims.ExpiresAt = &t
	}
	return claims, nil
}

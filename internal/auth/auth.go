// Package auth resolves opaque session tokens into authenticated identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joescharf/issues/internal/models"
	"github.com/joescharf/issues/internal/store"
)

// ErrNoSession is returned when a token does not resolve to a live user.
// It carries no reason.
var ErrNoSession = errors.New("no session")

// CookieName is the cookie checked when no Authorization header is sent.
const CookieName = "session_token"

// DefaultTTL is used when Issue is called with a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Resolver turns a request token into a session.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*models.Session, error)
}

// Claims is the JWT payload for a session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTResolver issues and verifies HS256 session tokens. A token is only
// honoured while the user it names still exists.
type JWTResolver struct {
	secret []byte
	users  store.UserStore
}

// NewJWTResolver creates a resolver signing with secret and checking users.
func NewJWTResolver(secret string, users store.UserStore) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), users: users}
}

// Issue mints a token for user valid for ttl.
func (r *JWTResolver) Issue(user *models.User, ttl time.Duration) (string, error) {
	if len(r.secret) == 0 {
		return "", errors.New("auth secret is not configured")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	claims := &Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

// Resolve verifies token and loads the user it names.
func (r *JWTResolver) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if token == "" || len(r.secret) == 0 {
		return nil, ErrNoSession
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrNoSession
	}

	user, err := r.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	return &models.Session{UserID: user.ID, Email: user.Email, Name: user.Name}, nil
}

// TokenFromRequest reads a bearer token from the Authorization header, falling
// back to the session cookie. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

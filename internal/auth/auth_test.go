package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/issues/internal/models"
	"github.com/joescharf/issues/internal/store"
)

const testSecret = "test-secret"

type mockUsers struct {
	users map[string]*models.User
	err   error
}

func (m *mockUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func newTestResolver() (*JWTResolver, *models.User) {
	u := &models.User{ID: "u1", Name: "Ann", Email: "ann@example.com"}
	return NewJWTResolver(testSecret, &mockUsers{users: map[string]*models.User{u.ID: u}}), u
}

func TestIssueAndResolve(t *testing.T) {
	r, u := newTestResolver()

	token, err := r.Issue(u, time.Hour)
	require.NoError(t, err)

	sess, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "ann@example.com", sess.Email)
	assert.Equal(t, "Ann", sess.Name)
}

func TestResolve_Rejects(t *testing.T) {
	r, u := newTestResolver()
	other := NewJWTResolver("other-secret", &mockUsers{})
	foreign, err := other.Issue(u, time.Hour)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: u.ID},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	ghost, err := r.Issue(&models.User{ID: "ghost"}, time.Hour)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
		"no expiry":    noExpiry,
		"unknown user": ghost,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), token)
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestResolve_StoreFailureIsNotNoSession(t *testing.T) {
	r, u := newTestResolver()
	token, err := r.Issue(u, time.Hour)
	require.NoError(t, err)

	r.users = &mockUsers{err: errors.New("disk on fire")}
	_, err = r.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestIssue_RequiresSecret(t *testing.T) {
	r := NewJWTResolver("", &mockUsers{})
	_, err := r.Issue(&models.User{ID: "u1"}, time.Hour)
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(req))

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "from-cookie", TokenFromRequest(req))
}

package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetUserFlags(t *testing.T) {
	t.Helper()
	userName, userImage, userTTL = "", "", ""
	dryRun = false
	ui.DryRun = false
}

func TestUserAddRun(t *testing.T) {
	testEnv(t)
	resetUserFlags(t)
	userName = "Ann Smith"

	require.NoError(t, userAddRun("ann@example.com"))
	assert.Contains(t, out(), "Added user")

	s, err := getStore()
	require.NoError(t, err)
	u, err := s.GetUserByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann Smith", u.Name)
}

func TestUserAddRun_DefaultNameAndDuplicate(t *testing.T) {
	testEnv(t)
	resetUserFlags(t)

	require.NoError(t, userAddRun("bob@example.com"))
	u, err := findUser("bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Name)

	err = userAddRun("bob@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestUserAddRun_InvalidEmail(t *testing.T) {
	testEnv(t)
	resetUserFlags(t)

	assert.Error(t, userAddRun("not-an-email"))
}

func TestUserAddRun_DryRun(t *testing.T) {
	testEnv(t)
	resetUserFlags(t)
	dryRun = true
	ui.DryRun = true

	require.NoError(t, userAddRun("dry@example.com"))
	_, err := findUser("dry@example.com")
	assert.Error(t, err)
}

func TestUserListRun(t *testing.T) {
	testEnv(t)
	resetUserFlags(t)

	require.NoError(t, userListRun())
	assert.Contains(t, out(), "No users")

	require.NoError(t, userAddRun("ann@example.com"))
	require.NoError(t, userListRun())
	assert.Contains(t, out(), "ann@example.com")
}

func TestUserDeleteRun(t *testing.T) {
	testEnv(t)
	resetUserFlags(t)

	require.NoError(t, userAddRun("gone@example.com"))
	require.NoError(t, userDeleteRun("gone@example.com"))

	_, err := findUser("gone@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user not found")

	assert.Error(t, userDeleteRun("gone@example.com"))
}

func TestUserTokenRun(t *testing.T) {
	testEnv(t)
	resetUserFlags(t)
	viper.Set("auth.secret", "test-secret")

	require.NoError(t, userAddRun("ann@example.com"))
	require.NoError(t, userTokenRun("ann@example.com"))

	lines := strings.Split(strings.TrimSpace(out()), "\n")
	token := lines[len(lines)-1]
	assert.Equal(t, 2, strings.Count(token, "."), "expected a JWT")

	resolver, err := getResolver()
	require.NoError(t, err)
	sess, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", sess.Email)
}

func TestUserTokenRun_Errors(t *testing.T) {
	testEnv(t)
	resetUserFlags(t)

	require.NoError(t, userAddRun("ann@example.com"))

	// No secret configured.
	err := userTokenRun("ann@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config init")

	viper.Set("auth.secret", "test-secret")
	userTTL = "soon"
	err = userTokenRun("ann@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token ttl")

	userTTL = ""
	assert.Error(t, userTokenRun("nobody@example.com"))
}

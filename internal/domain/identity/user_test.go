package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Run("creates user with defaults", func(t *testing.T) {
		user, err := NewUser("Alice@Example.com", "Alice")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, "Alice", user.DisplayName)
		assert.Equal(t, RoleUser, user.Role)
		assert.False(t, user.IsAdmin())
	})

	t.Run("rejects empty email", func(t *testing.T) {
		_, err := NewUser("", "Alice")
		assert.Error(t, err)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		_, err := NewUser("not-an-email", "Alice")
		assert.Error(t, err)
	})
}

func TestUserSetRole(t *testing.T) {
	user, err := NewUser("op@example.com", "Op")
	require.NoError(t, err)

	require.NoError(t, user.SetRole(RoleAdmin))
	assert.True(t, user.IsAdmin())

	assert.Error(t, user.SetRole(Role("superuser")))
	assert.Equal(t, RoleAdmin, user.Role)
}

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleAdmin.IsValid())
	assert.False(t, Role("").IsValid())
	assert.False(t, Role("root").IsValid())
}

package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHierarchyRank(t *testing.T) {
	h := DefaultHierarchy()

	tests := []struct {
		role Role
		rank int
	}{
		{RoleUser, 1},
		{RoleModerator, 2},
		{RoleAdmin, 3},
		{RoleSuperAdmin, 4},
	}
	for _, tc := range tests {
		rank, err := h.Rank(tc.role)
		require.NoError(t, err)
		assert.Equal(t, tc.rank, rank)
	}
}

func TestHierarchyRankUnknownRole(t *testing.T) {
	h := DefaultHierarchy()

	_, err := h.Rank(Role("OVERLORD"))
	require.ErrorIs(t, err, ErrUnknownRole)

	_, err = h.AtLeast(Role("OVERLORD"), RoleUser)
	require.ErrorIs(t, err, ErrUnknownRole)

	_, err = h.AtLeast(RoleUser, Role("OVERLORD"))
	require.ErrorIs(t, err, ErrUnknownRole)

	_, err = h.CanManage(Role(""), RoleUser)
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestHierarchyAtLeast(t *testing.T) {
	h := DefaultHierarchy()

	atLeast := func(role, minimum Role) bool {
		ok, err := h.AtLeast(role, minimum)
		require.NoError(t, err)
		return ok
	}

	assert.True(t, atLeast(RoleUser, RoleUser))
	assert.True(t, atLeast(RoleAdmin, RoleModerator))
	assert.True(t, atLeast(RoleSuperAdmin, RoleAdmin))
	assert.False(t, atLeast(RoleUser, RoleModerator))
	assert.False(t, atLeast(RoleModerator, RoleAdmin))
}

func TestHierarchyCanManageIsStrict(t *testing.T) {
	h := DefaultHierarchy()

	canManage := func(manager, target Role) bool {
		ok, err := h.CanManage(manager, target)
		require.NoError(t, err)
		return ok
	}

	assert.True(t, canManage(RoleAdmin, RoleModerator))
	assert.True(t, canManage(RoleSuperAdmin, RoleAdmin))
	assert.False(t, canManage(RoleModerator, RoleAdmin))

	// No role manages a peer, including itself.
	for _, role := range h.Roles() {
		assert.False(t, canManage(role, role), "role %s must not manage itself", role)
	}
}

func TestHierarchyParse(t *testing.T) {
	h := DefaultHierarchy()

	role, err := h.Parse("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = h.Parse("admin")
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, err = h.Parse("")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestDefaultRole(t *testing.T) {
	assert.Equal(t, RoleUser, DefaultRole())
}

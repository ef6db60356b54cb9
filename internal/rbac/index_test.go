package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionsForRoleMatchesMatrix(t *testing.T) {
	matrix := DefaultMatrix()
	index := NewIndex(matrix)
	roles := []RoleCode{RoleAdmin, RoleFnb, RoleFnbManager, RoleHost}

	for module, row := range matrix {
		for action, granted := range row {
			key := PermissionKey(module, action)
			allowed := make(map[RoleCode]bool)
			for _, role := range granted {
				allowed[role] = true
			}
			for _, role := range roles {
				assert.Equal(t, allowed[role], index.RoleHas(role, key),
					"role %s key %s", role, key)
			}
		}
	}
}

func TestPermissionsForRoleSortedAndIdempotent(t *testing.T) {
	index := NewIndex(DefaultMatrix())

	first := index.PermissionsForRole(RoleFnbManager)
	second := index.PermissionsForRole(RoleFnbManager)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.IsIncreasing(t, first)
}

func TestPermissionsForUnknownRole(t *testing.T) {
	index := NewIndex(DefaultMatrix())

	perms := index.PermissionsForRole(RoleCode("cashier"))
	assert.NotNil(t, perms)
	assert.Empty(t, perms)
}

func TestResolveFromRolesIsUnion(t *testing.T) {
	index := NewIndex(DefaultMatrix())
	roles := []RoleCode{RoleHost, RoleFnbManager}

	union := index.ResolveFromRoles(roles)

	expected := make(map[Key]bool)
	for _, role := range roles {
		for _, key := range index.PermissionsForRole(role) {
			expected[key] = true
		}
	}
	assert.Len(t, union, len(expected))
	for _, key := range union {
		assert.True(t, expected[key], "unexpected key %s in union", key)
	}
	assert.IsIncreasing(t, union)

	// Order of the input roles must not matter.
	reversed := index.ResolveFromRoles([]RoleCode{RoleFnbManager, RoleHost})
	assert.Equal(t, union, reversed)
}

func TestMultiRoleUnionIncludesManagerGrants(t *testing.T) {
	index := NewIndex(DefaultMatrix())

	union := index.ResolveFromRoles([]RoleCode{RoleHost, RoleFnbManager})
	assert.Contains(t, union, PermissionKey(ModuleSalesApproval, ActionApprove))
	assert.Contains(t, union, PermissionKey(ModulePurchase, ActionCreate))

	hostOnly := index.PermissionsForRole(RoleHost)
	assert.NotContains(t, hostOnly, PermissionKey(ModuleSalesApproval, ActionApprove))
	assert.NotContains(t, hostOnly, PermissionKey(ModulePurchase, ActionCreate))
}

func TestFnbGrants(t *testing.T) {
	index := NewIndex(DefaultMatrix())

	assert.True(t, index.RoleHas(RoleFnb, PermissionKey(ModuleSales, ActionCreate)))
	assert.False(t, index.RoleHas(RoleFnb, PermissionKey(ModuleSales, ActionUpdate)))
	assert.False(t, index.RoleHas(RoleFnb, PermissionKey(ModuleSalesApproval, ActionApprove)))
	assert.False(t, index.RoleHas(RoleFnb, PermissionKey(ModulePurchase, ActionCreate)))
	assert.False(t, index.RoleHas(RoleFnb, PermissionKey(ModuleInventory, ActionCreate)))
}

func TestAdminInventoryCreate(t *testing.T) {
	index := NewIndex(DefaultMatrix())

	assert.True(t, index.RoleHas(RoleAdmin, PermissionKey(ModuleInventory, ActionCreate)))
}

func TestUnknownKeyAlwaysDenied(t *testing.T) {
	index := NewIndex(DefaultMatrix())

	for _, role := range []RoleCode{RoleAdmin, RoleFnb, RoleFnbManager, RoleHost} {
		assert.False(t, index.RoleHas(role, Key("attendance:read")))
	}
}

func TestAbsentActionGrantsNobody(t *testing.T) {
	index := NewIndex(DefaultMatrix())

	// sales_approval has no create action in the matrix.
	for _, role := range []RoleCode{RoleAdmin, RoleFnb, RoleFnbManager, RoleHost} {
		assert.False(t, index.RoleHas(role, PermissionKey(ModuleSalesApproval, ActionCreate)))
	}
}

func TestKeySplit(t *testing.T) {
	module, action, ok := PermissionKey(ModuleSales, ActionRead).Split()
	require.True(t, ok)
	assert.Equal(t, ModuleSales, module)
	assert.Equal(t, ActionRead, action)

	_, _, ok = Key("sales").Split()
	assert.False(t, ok)
	_, _, ok = Key(":read").Split()
	assert.False(t, ok)
}

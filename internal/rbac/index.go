package rbac

import "sort"

// Index answers role-to-permission lookups derived from a Matrix. It is
// built once at startup and never mutated afterwards, so it is safe for
// concurrent use.
type Index struct {
	byRole map[RoleCode]map[Key]struct{}
	keys   []Key
}

// NewIndex derives the lookup structures from the given matrix. The matrix
// itself is not retained.
func NewIndex(matrix Matrix) *Index {
	byRole := make(map[RoleCode]map[Key]struct{})
	keySet := make(map[Key]struct{})
	for module, row := range matrix {
		for action, roles := range row {
			key := PermissionKey(module, action)
			keySet[key] = struct{}{}
			for _, role := range roles {
				grants, ok := byRole[role]
				if !ok {
					grants = make(map[Key]struct{})
					byRole[role] = grants
				}
				grants[key] = struct{}{}
			}
		}
	}
	keys := make([]Key, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return &Index{byRole: byRole, keys: keys}
}

// PermissionsForRole returns the sorted permission keys granted to the
// role. Unknown roles yield an empty slice, never an error.
func (ix *Index) PermissionsForRole(role RoleCode) []Key {
	grants, ok := ix.byRole[role]
	if !ok {
		return []Key{}
	}
	keys := make([]Key, 0, len(grants))
	for key := range grants {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ResolveFromRoles returns the sorted, deduplicated union of permissions
// across all given roles. Sessions hold a single role today; the union form
// keeps multi-role assignment workable.
func (ix *Index) ResolveFromRoles(roles []RoleCode) []Key {
	union := make(map[Key]struct{})
	for _, role := range roles {
		for key := range ix.byRole[role] {
			union[key] = struct{}{}
		}
	}
	keys := make([]Key, 0, len(union))
	for key := range union {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// RoleHas reports whether the role is granted the key. Unknown keys and
// unknown roles always deny.
func (ix *Index) RoleHas(role RoleCode, key Key) bool {
	grants, ok := ix.byRole[role]
	if !ok {
		return false
	}
	_, ok = grants[key]
	return ok
}

// Keys returns every key the matrix defines, sorted. The slice is shared;
// callers must not modify it.
func (ix *Index) Keys() []Key {
	return ix.keys
}

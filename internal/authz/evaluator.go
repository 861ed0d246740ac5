package authz

// Package-level decision functions over the default ruleset. See the
// Ruleset methods for the evaluation semantics.

// HasPermission decides whether the principal holds the permission
// under the default ruleset.
func HasPermission(p Principal, perm Permission) bool {
	return std.HasPermission(p, perm)
}

// HasAnyPermission reports whether the principal holds at least one of
// the permissions.
func HasAnyPermission(p Principal, perms []Permission) bool {
	return std.HasAnyPermission(p, perms)
}

// HasAllPermissions reports whether the principal holds every one of
// the permissions.
func HasAllPermissions(p Principal, perms []Permission) bool {
	return std.HasAllPermissions(p, perms)
}

// EffectivePermissions computes the principal's derived permission set
// under the default ruleset.
func EffectivePermissions(p Principal) []Permission {
	return std.EffectivePermissions(p)
}

// CustomPermissionsBeyondDefaults returns the principal's explicit
// grants that are not already role defaults.
func CustomPermissionsBeyondDefaults(p Principal) []Permission {
	role := p.Role()
	var out []Permission
	for _, perm := range p.CustomPermissions() {
		if !HasDefault(role, perm) {
			out = append(out, perm)
		}
	}
	return out
}

// PermissionsRemovedFromDefaults returns role defaults absent from the
// principal's explicit permission list. Custom permissions are
// additive, so this is a diagnostic view for administration screens,
// not a security gate: a short custom list does not revoke defaults.
func PermissionsRemovedFromDefaults(p Principal) []Permission {
	custom := permSet(p.CustomPermissions())
	var out []Permission
	for _, perm := range DefaultsFor(p.Role()) {
		if _, ok := custom[perm]; !ok {
			out = append(out, perm)
		}
	}
	return out
}

// PermissionDiff holds the result of comparing two permission lists.
type PermissionDiff struct {
	Added   []Permission
	Removed []Permission
}

// Diff compares an old and a new permission list, for audit logging of
// permission assignment changes.
func Diff(oldPerms, newPerms []Permission) PermissionDiff {
	oldSet := permSet(oldPerms)
	newSet := permSet(newPerms)

	var diff PermissionDiff
	for _, perm := range newPerms {
		if _, ok := oldSet[perm]; !ok {
			diff.Added = append(diff.Added, perm)
		}
	}
	for _, perm := range oldPerms {
		if _, ok := newSet[perm]; !ok {
			diff.Removed = append(diff.Removed, perm)
		}
	}
	return diff
}

// CanManagePermissionsOf decides whether manager may edit the target
// principal's custom permission list. super_admin may edit anyone;
// nobody edits super_admin through this path; admins may edit any
// non-admin. Everyone else needs MANAGE_PERMISSIONS.
func CanManagePermissionsOf(manager Principal, target Role) bool {
	switch {
	case manager.Role() == RoleSuperAdmin:
		return true
	case target == RoleSuperAdmin:
		return false
	case manager.Role() == RoleAdmin && target != RoleAdmin:
		return true
	default:
		return HasPermission(manager, PermManagePermissions)
	}
}

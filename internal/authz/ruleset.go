package authz

// Ruleset is the policy configuration the evaluator runs against:
// per-role exclusion sets and role default permission lists. It is
// immutable after construction and safe to share across goroutines.
// The package-level functions operate on Default(); derived rulesets
// exist so callers (and tests) can encode stricter policies, e.g.
// adding FINALIZE_SALE to the admin exclusion list.
type Ruleset struct {
	excluded map[Role]map[Permission]struct{}
	defaults map[Role][]Permission
}

var std = newStdRuleset()

func newStdRuleset() *Ruleset {
	excluded := make(map[Role]map[Permission]struct{}, len(hierarchy))
	for role, entry := range hierarchy {
		excluded[role] = entry.Excluded
	}
	return &Ruleset{excluded: excluded, defaults: roleDefaults}
}

// Default returns the standard ruleset built from the catalog and the
// role hierarchy.
func Default() *Ruleset {
	return std
}

// WithExclusions returns a derived ruleset whose exclusion list for
// the role additionally contains the given permissions. The receiver
// is not modified.
func (rs *Ruleset) WithExclusions(r Role, perms ...Permission) *Ruleset {
	excluded := make(map[Role]map[Permission]struct{}, len(rs.excluded))
	for role, set := range rs.excluded {
		excluded[role] = set
	}
	merged := make(map[Permission]struct{}, len(rs.excluded[r])+len(perms))
	for p := range rs.excluded[r] {
		merged[p] = struct{}{}
	}
	for _, p := range perms {
		merged[p] = struct{}{}
	}
	excluded[r] = merged
	return &Ruleset{excluded: excluded, defaults: rs.defaults}
}

// IsExcluded reports whether the permission is on the role's exclusion
// list. Exclusion always wins over any grant.
func (rs *Ruleset) IsExcluded(r Role, p Permission) bool {
	_, ok := rs.excluded[r][p]
	return ok
}

// DefaultsFor returns a copy of the role's baseline permission list.
// Unknown roles get nothing (fail closed).
func (rs *Ruleset) DefaultsFor(r Role) []Permission {
	defaults, ok := rs.defaults[r]
	if !ok {
		return nil
	}
	out := make([]Permission, len(defaults))
	copy(out, defaults)
	return out
}

// HasDefault reports whether the permission is part of the role's
// baseline grants.
func (rs *Ruleset) HasDefault(r Role, p Permission) bool {
	for _, d := range rs.defaults[r] {
		if d == p {
			return true
		}
	}
	return false
}

// HasPermission decides whether the principal holds the permission.
// Evaluation order is fixed:
//
//  1. role exclusion denies, whatever the source of the grant
//  2. super_admin is answered from its defaults alone; its custom
//     permissions and manager flag are never consulted
//  3. explicit custom grant
//  4. manager-tier permission with the manager flag set
//  5. role default
//
// Unknown permissions evaluate to false because they can appear in no
// sanctioned set; assignment paths reject them via Validate.
func (rs *Ruleset) HasPermission(p Principal, perm Permission) bool {
	if !Known(perm) {
		return false
	}
	role := p.Role()
	if rs.IsExcluded(role, perm) {
		return false
	}
	if role == RoleSuperAdmin {
		return rs.HasDefault(RoleSuperAdmin, perm)
	}
	for _, granted := range p.CustomPermissions() {
		if granted == perm {
			return true
		}
	}
	if p.Manager() && CategoryOf(perm) == CategoryManager {
		return true
	}
	return rs.HasDefault(role, perm)
}

// HasAnyPermission reports whether the principal holds at least one of
// the permissions.
func (rs *Ruleset) HasAnyPermission(p Principal, perms []Permission) bool {
	for _, perm := range perms {
		if rs.HasPermission(p, perm) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the principal holds every one of
// the permissions.
func (rs *Ruleset) HasAllPermissions(p Principal, perms []Permission) bool {
	for _, perm := range perms {
		if !rs.HasPermission(p, perm) {
			return false
		}
	}
	return true
}

// EffectivePermissions computes the derived permission set: role
// defaults, manager-tier permissions when the flag is set, and custom
// grants, each filtered through the role's exclusion list. Identifiers
// outside the catalog are dropped from the custom source. The result
// is deduplicated; order follows the catalog composition. super_admin
// is reduced to its defaults, mirroring HasPermission.
func (rs *Ruleset) EffectivePermissions(p Principal) []Permission {
	role := p.Role()

	sources := [][]Permission{rs.DefaultsFor(role)}
	if role != RoleSuperAdmin {
		if p.Manager() {
			sources = append(sources, ManagerPermissions)
		}
		sources = append(sources, p.CustomPermissions())
	}

	seen := make(map[Permission]struct{})
	var out []Permission
	for _, source := range sources {
		for _, perm := range source {
			if !Known(perm) {
				continue
			}
			if rs.IsExcluded(role, perm) {
				continue
			}
			if _, dup := seen[perm]; dup {
				continue
			}
			seen[perm] = struct{}{}
			out = append(out, perm)
		}
	}
	return out
}

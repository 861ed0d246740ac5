package authz

// Role is one of the four ordered tiers.
type Role string

// Roles, ordered by level.
const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RolePharmacist Role = "pharmacist"
	RoleCashier    Role = "cashier"
)

// Scope is the data-visibility tier attached to a role.
type Scope string

// Scopes, ordered system > pharmacy > branch.
const (
	ScopeSystem   Scope = "system"
	ScopePharmacy Scope = "pharmacy"
	ScopeBranch   Scope = "branch"
)

var scopeRank = map[Scope]int{
	ScopeBranch:   1,
	ScopePharmacy: 2,
	ScopeSystem:   3,
}

// RoleEntry describes one tier of the hierarchy.
type RoleEntry struct {
	Level     int
	Scope     Scope
	CanCreate []Role
	CanManage []Role
	// Excluded permissions can never be granted to the role, whatever
	// the source: role default, manager flag or explicit custom grant.
	Excluded map[Permission]struct{}
}

// hierarchy is immutable after init; exclusion sets are built by set
// difference over the catalog slices so the category slices stay the
// single source of truth.
var hierarchy = map[Role]RoleEntry{
	RoleSuperAdmin: {
		Level:     4,
		Scope:     ScopeSystem,
		CanCreate: []Role{RoleAdmin, RolePharmacist, RoleCashier},
		CanManage: []Role{RoleAdmin, RolePharmacist, RoleCashier},
		// The top tier stays out of day-to-day pharmacy operations:
		// everything operational except branch visibility is excluded.
		Excluded: permSet(
			concat(
				DrugPermissions,
				SalesPermissions,
				CustomerPermissions,
				ExpiryPermissions,
				ManagerPermissions,
				without(BranchPermissions, PermViewBranches),
			),
		),
	},
	RoleAdmin: {
		Level:     3,
		Scope:     ScopePharmacy,
		CanCreate: []Role{RolePharmacist, RoleCashier},
		CanManage: []Role{RolePharmacist, RoleCashier},
		Excluded:  permSet(SystemPermissions),
	},
	RolePharmacist: {
		Level:    2,
		Scope:    ScopeBranch,
		Excluded: permSet(concat(SystemPermissions, AuditPermissions)),
	},
	RoleCashier: {
		Level: 1,
		Scope: ScopeBranch,
		Excluded: permSet(concat(
			SystemPermissions,
			AuditPermissions,
			[]Permission{PermManagePermissions},
		)),
	},
}

// Roles lists the known roles from the highest tier down.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RolePharmacist, RoleCashier}
}

// KnownRole reports whether the role exists in the hierarchy.
func KnownRole(r Role) bool {
	_, ok := hierarchy[r]
	return ok
}

// LevelOf returns the role's tier level, 0 for unknown roles.
func LevelOf(r Role) int {
	return hierarchy[r].Level
}

// CanCreateRole reports whether creator may create accounts with the
// target role. Unknown roles can create nothing.
func CanCreateRole(creator, target Role) bool {
	for _, allowed := range hierarchy[creator].CanCreate {
		if allowed == target {
			return true
		}
	}
	return false
}

// CanManageRole reports whether manager may administer accounts with
// the target role.
func CanManageRole(manager, target Role) bool {
	for _, allowed := range hierarchy[manager].CanManage {
		if allowed == target {
			return true
		}
	}
	return false
}

// ScopeOf returns the data-visibility scope of a role. Unknown roles
// fall back to branch scope rather than failing, so a stale role on a
// request can never widen visibility.
func ScopeOf(r Role) Scope {
	if entry, ok := hierarchy[r]; ok {
		return entry.Scope
	}
	return ScopeBranch
}

// ScopeCovers reports whether scope s grants at least the visibility
// of required, under the ordering system > pharmacy > branch.
func ScopeCovers(s, required Scope) bool {
	return scopeRank[s] >= scopeRank[required]
}

// IsExcluded reports whether the permission is on the role's exclusion
// list under the default ruleset.
func IsExcluded(r Role, p Permission) bool {
	return std.IsExcluded(r, p)
}

func permSet(perms []Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func concat(groups ...[]Permission) []Permission {
	var out []Permission
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func without(perms []Permission, drop ...Permission) []Permission {
	skip := permSet(drop)
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if _, ok := skip[p]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

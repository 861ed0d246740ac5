package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCashierDefaults(t *testing.T) {
	cashier := Subject{UserRole: RoleCashier, Pharmacy: 1, Branch: 1}

	require.True(t, HasPermission(cashier, PermCreateSale))
	require.True(t, HasPermission(cashier, PermFinalizeSale))
	require.True(t, HasPermission(cashier, PermViewDrugs))
	require.True(t, HasPermission(cashier, PermViewCustomers))

	require.False(t, HasPermission(cashier, PermApplyDiscount))
	require.False(t, HasPermission(cashier, PermAdjustStock))
	require.False(t, HasPermission(cashier, PermDeleteSale))
	require.False(t, HasPermission(cashier, PermViewReports))
}

func TestPharmacistDefaults(t *testing.T) {
	pharmacist := Subject{UserRole: RolePharmacist, Pharmacy: 1, Branch: 1}

	require.True(t, HasPermission(pharmacist, PermAdjustStock))
	require.True(t, HasPermission(pharmacist, PermFinalizeSale))
	require.True(t, HasPermission(pharmacist, PermDisposeExpiredDrugs))
	require.True(t, HasPermission(pharmacist, PermViewInventoryReports))

	require.False(t, HasPermission(pharmacist, PermDeleteDrug))
	require.False(t, HasPermission(pharmacist, PermCreateUser))
	require.False(t, HasPermission(pharmacist, PermViewAuditLogs))
}

func TestAdminLacksFinalizeSaleByDefault(t *testing.T) {
	admin := Subject{UserRole: RoleAdmin, Pharmacy: 1}

	require.False(t, HasPermission(admin, PermFinalizeSale))
	require.True(t, HasPermission(admin, PermCreateSale))
	require.True(t, HasPermission(admin, PermRefundSale))

	// An explicit grant puts the admin behind the register.
	granted := Subject{UserRole: RoleAdmin, Pharmacy: 1, Permissions: []Permission{PermFinalizeSale}}
	require.True(t, HasPermission(granted, PermFinalizeSale))
}

func TestExclusionWinsOverEveryGrant(t *testing.T) {
	// System permissions are excluded for admin; neither a custom
	// grant nor the manager flag can get past that.
	admin := Subject{
		UserRole:    RoleAdmin,
		Pharmacy:    1,
		IsManager:   true,
		Permissions: []Permission{PermManageSystemSettings},
	}
	require.False(t, HasPermission(admin, PermManageSystemSettings))

	cashier := Subject{
		UserRole:    RoleCashier,
		Permissions: []Permission{PermManagePermissions, PermViewAuditLogs},
	}
	require.False(t, HasPermission(cashier, PermManagePermissions))
	require.False(t, HasPermission(cashier, PermViewAuditLogs))
}

func TestSuperAdminAnsweredFromDefaultsAlone(t *testing.T) {
	root := Subject{
		UserRole:  RoleSuperAdmin,
		IsManager: true,
		// Grants that would matter for any other role.
		Permissions: []Permission{PermCreateSale, PermVoidSale, PermAdjustStock},
	}

	require.True(t, HasPermission(root, PermManageSystemSettings))
	require.True(t, HasPermission(root, PermCreatePharmacy))
	require.True(t, HasPermission(root, PermViewAuditLogs))
	require.True(t, HasPermission(root, PermViewBranches))

	// Operational permissions stay out no matter what is attached to
	// the account.
	require.False(t, HasPermission(root, PermCreateSale))
	require.False(t, HasPermission(root, PermVoidSale))
	require.False(t, HasPermission(root, PermAdjustStock))
	require.False(t, HasPermission(root, PermCreateBranch))
}

func TestManagerFlagUnlocksManagerTier(t *testing.T) {
	plain := Subject{UserRole: RolePharmacist, Pharmacy: 1}
	manager := Subject{UserRole: RolePharmacist, Pharmacy: 1, IsManager: true}

	require.False(t, HasPermission(plain, PermVoidSale))
	require.True(t, HasPermission(manager, PermVoidSale))
	require.True(t, HasPermission(manager, PermOverridePrice))
	require.True(t, HasPermission(manager, PermViewBranchAnalytics))

	// The flag unlocks only the manager category.
	require.False(t, HasPermission(manager, PermDeleteDrug))
}

func TestUnknownPermissionEvaluatesFalse(t *testing.T) {
	admin := Subject{UserRole: RoleAdmin, Permissions: []Permission{"LAUNCH_ROCKETS"}}
	require.False(t, HasPermission(admin, "LAUNCH_ROCKETS"))

	// A stale or forged custom grant outside the catalog must not grant
	// itself, and must not leak into the effective set.
	require.NotContains(t, EffectivePermissions(admin), Permission("LAUNCH_ROCKETS"))
	require.False(t, HasAnyPermission(admin, []Permission{"LAUNCH_ROCKETS"}))
}

func TestUnknownRoleFailsClosed(t *testing.T) {
	ghost := Subject{UserRole: Role("intern"), Permissions: []Permission{PermViewDrugs}}
	require.Empty(t, DefaultsFor("intern"))
	// Custom grants still apply; defaults and manager tier do not.
	require.True(t, HasPermission(ghost, PermViewDrugs))
	require.False(t, HasPermission(ghost, PermCreateSale))
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	cashier := Subject{UserRole: RoleCashier}

	require.True(t, HasAnyPermission(cashier, []Permission{PermAdjustStock, PermCreateSale}))
	require.False(t, HasAnyPermission(cashier, []Permission{PermAdjustStock, PermDeleteDrug}))

	require.True(t, HasAllPermissions(cashier, []Permission{PermCreateSale, PermViewDrugs}))
	require.False(t, HasAllPermissions(cashier, []Permission{PermCreateSale, PermAdjustStock}))
}

func TestEffectivePermissionsComposition(t *testing.T) {
	manager := Subject{
		UserRole:  RolePharmacist,
		IsManager: true,
		// One duplicate of a default, one genuine extension, one
		// excluded grant that must be filtered out.
		Permissions: []Permission{PermViewDrugs, PermDeleteDrug, PermViewAuditLogs},
	}

	effective := EffectivePermissions(manager)

	require.Contains(t, effective, PermViewDrugs)
	require.Contains(t, effective, PermVoidSale)
	require.Contains(t, effective, PermDeleteDrug)
	require.NotContains(t, effective, PermViewAuditLogs)

	seen := map[Permission]int{}
	for _, p := range effective {
		seen[p]++
	}
	for p, n := range seen {
		require.Equalf(t, 1, n, "permission %s appears %d times", p, n)
	}
}

func TestEffectivePermissionsSuperAdminIgnoresExtras(t *testing.T) {
	root := Subject{
		UserRole:    RoleSuperAdmin,
		IsManager:   true,
		Permissions: []Permission{PermCreateSale},
	}
	effective := EffectivePermissions(root)
	require.ElementsMatch(t, DefaultsFor(RoleSuperAdmin), effective)
}

func TestWithExclusionsOverridesCustomGrant(t *testing.T) {
	strict := Default().WithExclusions(RoleAdmin, PermFinalizeSale)
	admin := Subject{UserRole: RoleAdmin, Permissions: []Permission{PermFinalizeSale}}

	require.True(t, Default().HasPermission(admin, PermFinalizeSale))
	require.False(t, strict.HasPermission(admin, PermFinalizeSale))

	// Other roles keep their baseline under the derived ruleset.
	pharmacist := Subject{UserRole: RolePharmacist}
	require.True(t, strict.HasPermission(pharmacist, PermFinalizeSale))

	// The default ruleset is untouched.
	require.False(t, Default().IsExcluded(RoleAdmin, PermFinalizeSale))
}

func TestCustomPermissionsBeyondDefaults(t *testing.T) {
	pharmacist := Subject{
		UserRole:    RolePharmacist,
		Permissions: []Permission{PermViewDrugs, PermDeleteDrug},
	}
	extras := CustomPermissionsBeyondDefaults(pharmacist)
	require.Equal(t, []Permission{PermDeleteDrug}, extras)
}

func TestPermissionsRemovedFromDefaultsIsDiagnosticOnly(t *testing.T) {
	cashier := Subject{UserRole: RoleCashier, Permissions: []Permission{PermCreateSale}}

	removed := PermissionsRemovedFromDefaults(cashier)
	require.Contains(t, removed, PermViewDrugs)

	// A short custom list never revokes a default.
	require.True(t, HasPermission(cashier, PermViewDrugs))
}

func TestDiff(t *testing.T) {
	oldPerms := []Permission{PermViewDrugs, PermCreateSale}
	newPerms := []Permission{PermViewDrugs, PermAdjustStock, PermViewReports}

	diff := Diff(oldPerms, newPerms)
	require.ElementsMatch(t, []Permission{PermAdjustStock, PermViewReports}, diff.Added)
	require.Equal(t, []Permission{PermCreateSale}, diff.Removed)

	empty := Diff(oldPerms, oldPerms)
	require.Empty(t, empty.Added)
	require.Empty(t, empty.Removed)
}

func TestCanManagePermissionsOf(t *testing.T) {
	root := Subject{UserRole: RoleSuperAdmin}
	admin := Subject{UserRole: RoleAdmin}
	pharmacist := Subject{UserRole: RolePharmacist}
	delegate := Subject{UserRole: RolePharmacist, Permissions: []Permission{PermManagePermissions}}

	require.True(t, CanManagePermissionsOf(root, RoleAdmin))
	require.True(t, CanManagePermissionsOf(root, RoleSuperAdmin))

	require.False(t, CanManagePermissionsOf(admin, RoleSuperAdmin))
	require.True(t, CanManagePermissionsOf(admin, RoleCashier))
	// Peer admins are reachable through the MANAGE_PERMISSIONS default.
	require.True(t, CanManagePermissionsOf(admin, RoleAdmin))

	require.False(t, CanManagePermissionsOf(pharmacist, RoleCashier))
	require.True(t, CanManagePermissionsOf(delegate, RoleCashier))
}

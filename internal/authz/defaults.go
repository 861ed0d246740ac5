package authz

// Role default permission sets. These are implicit: they are never
// stored on a user record, so a change here takes effect for every
// principal of the role immediately.
var roleDefaults = map[Role][]Permission{
	// super_admin gets platform administration plus read-only
	// oversight; operational permissions are excluded at the
	// hierarchy level and deliberately absent here.
	RoleSuperAdmin: concat(
		SystemPermissions,
		AuditPermissions,
		PharmacyPermissions,
		UserPermissions,
		[]Permission{PermViewBranches, PermViewReports, PermExportReports},
	),
	RoleAdmin: concat(
		BranchPermissions,
		DrugPermissions,
		without(SalesPermissions, PermFinalizeSale),
		CustomerPermissions,
		UserPermissions,
		ReportPermissions,
		ExpiryPermissions,
	),
	RolePharmacist: []Permission{
		PermViewBranches,
		PermCreateDrug, PermViewDrugs, PermUpdateDrug, PermAdjustStock,
		PermCreateSale, PermViewSales, PermUpdateSale, PermFinalizeSale,
		PermCreateCustomer, PermViewCustomers, PermUpdateCustomer,
		PermViewExpiryAlerts, PermDisposeExpiredDrugs,
		PermViewInventoryReports,
	},
	RoleCashier: []Permission{
		PermViewDrugs,
		PermCreateSale, PermViewSales, PermFinalizeSale,
		PermCreateCustomer, PermViewCustomers,
	},
}

// DefaultsFor returns a copy of the role's baseline permission list
// under the default ruleset. Unknown roles get nothing (fail closed).
func DefaultsFor(r Role) []Permission {
	return std.DefaultsFor(r)
}

// HasDefault reports whether the permission is part of the role's
// baseline grants under the default ruleset.
func HasDefault(r Role, p Permission) bool {
	return std.HasDefault(r, p)
}

// Package authz implements the Apothek authorization policy engine:
// a closed permission catalog, the four-tier role hierarchy, the
// permission evaluator and pharmacy tenancy scoping. All decisions are
// pure functions over static tables and the caller-supplied principal,
// so the package is safe for concurrent use without coordination.
package authz

// Permission identifies an atomic capability. Identifiers are globally
// unique across categories; the catalog below is the single source of
// truth for which strings are valid.
type Permission string

// Category groups permissions for description and UI purposes only; it
// carries no authorization semantics.
type Category string

// Permission categories.
const (
	CategoryUser     Category = "USER"
	CategoryPharmacy Category = "PHARMACY"
	CategoryBranch   Category = "BRANCH"
	CategoryDrug     Category = "DRUG"
	CategorySales    Category = "SALES"
	CategoryCustomer Category = "CUSTOMER"
	CategoryReport   Category = "REPORT"
	CategorySystem   Category = "SYSTEM"
	CategoryAudit    Category = "AUDIT"
	CategoryExpiry   Category = "EXPIRY"
	CategoryManager  Category = "MANAGER"
	// CategoryUnknown is returned for permissions outside the catalog.
	CategoryUnknown Category = "UNKNOWN"
)

// User management permissions.
const (
	PermCreateUser        Permission = "CREATE_USER"
	PermViewUsers         Permission = "VIEW_USERS"
	PermUpdateUser        Permission = "UPDATE_USER"
	PermDeleteUser        Permission = "DELETE_USER"
	PermManagePermissions Permission = "MANAGE_PERMISSIONS"
)

// Pharmacy management permissions.
const (
	PermCreatePharmacy      Permission = "CREATE_PHARMACY"
	PermViewPharmacies      Permission = "VIEW_PHARMACIES"
	PermUpdatePharmacy      Permission = "UPDATE_PHARMACY"
	PermDeletePharmacy      Permission = "DELETE_PHARMACY"
	PermManagePharmacyUsers Permission = "MANAGE_PHARMACY_USERS"
)

// Branch management permissions.
const (
	PermCreateBranch      Permission = "CREATE_BRANCH"
	PermViewBranches      Permission = "VIEW_BRANCHES"
	PermUpdateBranch      Permission = "UPDATE_BRANCH"
	PermDeleteBranch      Permission = "DELETE_BRANCH"
	PermManageBranchUsers Permission = "MANAGE_BRANCH_USERS"
)

// Drug and inventory permissions.
const (
	PermCreateDrug    Permission = "CREATE_DRUG"
	PermViewDrugs     Permission = "VIEW_DRUGS"
	PermUpdateDrug    Permission = "UPDATE_DRUG"
	PermDeleteDrug    Permission = "DELETE_DRUG"
	PermAdjustStock   Permission = "ADJUST_STOCK"
	PermTransferStock Permission = "TRANSFER_STOCK"
)

// Point-of-sale permissions.
const (
	PermCreateSale    Permission = "CREATE_SALE"
	PermViewSales     Permission = "VIEW_SALES"
	PermUpdateSale    Permission = "UPDATE_SALE"
	PermDeleteSale    Permission = "DELETE_SALE"
	PermFinalizeSale  Permission = "FINALIZE_SALE"
	PermRefundSale    Permission = "REFUND_SALE"
	PermApplyDiscount Permission = "APPLY_DISCOUNT"
)

// Customer permissions.
const (
	PermCreateCustomer Permission = "CREATE_CUSTOMER"
	PermViewCustomers  Permission = "VIEW_CUSTOMERS"
	PermUpdateCustomer Permission = "UPDATE_CUSTOMER"
	PermDeleteCustomer Permission = "DELETE_CUSTOMER"
)

// Reporting permissions.
const (
	PermViewReports          Permission = "VIEW_REPORTS"
	PermExportReports        Permission = "EXPORT_REPORTS"
	PermViewSalesReports     Permission = "VIEW_SALES_REPORTS"
	PermViewInventoryReports Permission = "VIEW_INVENTORY_REPORTS"
)

// Platform administration permissions.
const (
	PermManageSystemSettings Permission = "MANAGE_SYSTEM_SETTINGS"
	PermViewSystemLogs       Permission = "VIEW_SYSTEM_LOGS"
	PermManageSubscriptions  Permission = "MANAGE_SUBSCRIPTIONS"
	PermManageBackups        Permission = "MANAGE_BACKUPS"
)

// Audit permissions.
const (
	PermViewAuditLogs   Permission = "VIEW_AUDIT_LOGS"
	PermExportAuditLogs Permission = "EXPORT_AUDIT_LOGS"
)

// Expiry tracking permissions.
const (
	PermViewExpiryAlerts     Permission = "VIEW_EXPIRY_ALERTS"
	PermManageExpirySettings Permission = "MANAGE_EXPIRY_SETTINGS"
	PermDisposeExpiredDrugs  Permission = "DISPOSE_EXPIRED_DRUGS"
)

// Manager-tier permissions, unlocked by the principal's manager flag.
const (
	PermVoidSale            Permission = "VOID_SALE"
	PermOverridePrice       Permission = "OVERRIDE_PRICE"
	PermApproveStockAdjust  Permission = "APPROVE_STOCK_ADJUSTMENT"
	PermViewBranchAnalytics Permission = "VIEW_BRANCH_ANALYTICS"
)

// Category slices. Role defaults and exclusion sets are composed from
// these, never from copy-pasted literals.
var (
	UserPermissions = []Permission{
		PermCreateUser, PermViewUsers, PermUpdateUser, PermDeleteUser,
		PermManagePermissions,
	}
	PharmacyPermissions = []Permission{
		PermCreatePharmacy, PermViewPharmacies, PermUpdatePharmacy,
		PermDeletePharmacy, PermManagePharmacyUsers,
	}
	BranchPermissions = []Permission{
		PermCreateBranch, PermViewBranches, PermUpdateBranch,
		PermDeleteBranch, PermManageBranchUsers,
	}
	DrugPermissions = []Permission{
		PermCreateDrug, PermViewDrugs, PermUpdateDrug, PermDeleteDrug,
		PermAdjustStock, PermTransferStock,
	}
	SalesPermissions = []Permission{
		PermCreateSale, PermViewSales, PermUpdateSale, PermDeleteSale,
		PermFinalizeSale, PermRefundSale, PermApplyDiscount,
	}
	CustomerPermissions = []Permission{
		PermCreateCustomer, PermViewCustomers, PermUpdateCustomer,
		PermDeleteCustomer,
	}
	ReportPermissions = []Permission{
		PermViewReports, PermExportReports, PermViewSalesReports,
		PermViewInventoryReports,
	}
	SystemPermissions = []Permission{
		PermManageSystemSettings, PermViewSystemLogs,
		PermManageSubscriptions, PermManageBackups,
	}
	AuditPermissions = []Permission{
		PermViewAuditLogs, PermExportAuditLogs,
	}
	ExpiryPermissions = []Permission{
		PermViewExpiryAlerts, PermManageExpirySettings,
		PermDisposeExpiredDrugs,
	}
	ManagerPermissions = []Permission{
		PermVoidSale, PermOverridePrice, PermApproveStockAdjust,
		PermViewBranchAnalytics,
	}
)

type catalogEntry struct {
	category    Category
	description string
}

var catalog = buildCatalog()

func buildCatalog() map[Permission]catalogEntry {
	entries := map[Permission]catalogEntry{
		PermCreateUser:        {CategoryUser, "Create user accounts"},
		PermViewUsers:         {CategoryUser, "View user accounts"},
		PermUpdateUser:        {CategoryUser, "Update user accounts"},
		PermDeleteUser:        {CategoryUser, "Deactivate or delete user accounts"},
		PermManagePermissions: {CategoryUser, "Grant or revoke custom permissions"},

		PermCreatePharmacy:      {CategoryPharmacy, "Register a pharmacy"},
		PermViewPharmacies:      {CategoryPharmacy, "View pharmacies"},
		PermUpdatePharmacy:      {CategoryPharmacy, "Update pharmacy details"},
		PermDeletePharmacy:      {CategoryPharmacy, "Deactivate a pharmacy"},
		PermManagePharmacyUsers: {CategoryPharmacy, "Assign users to pharmacies"},

		PermCreateBranch:      {CategoryBranch, "Open a branch"},
		PermViewBranches:      {CategoryBranch, "View branches"},
		PermUpdateBranch:      {CategoryBranch, "Update branch details"},
		PermDeleteBranch:      {CategoryBranch, "Close a branch"},
		PermManageBranchUsers: {CategoryBranch, "Assign users to branches"},

		PermCreateDrug:    {CategoryDrug, "Add drugs to the catalog"},
		PermViewDrugs:     {CategoryDrug, "View the drug catalog and stock"},
		PermUpdateDrug:    {CategoryDrug, "Update drug details and pricing"},
		PermDeleteDrug:    {CategoryDrug, "Remove drugs from the catalog"},
		PermAdjustStock:   {CategoryDrug, "Adjust stock levels"},
		PermTransferStock: {CategoryDrug, "Transfer stock between branches"},

		PermCreateSale:    {CategorySales, "Open a sale"},
		PermViewSales:     {CategorySales, "View sales"},
		PermUpdateSale:    {CategorySales, "Edit an open sale"},
		PermDeleteSale:    {CategorySales, "Delete an open sale"},
		PermFinalizeSale:  {CategorySales, "Finalize a sale at the register"},
		PermRefundSale:    {CategorySales, "Refund a finalized sale"},
		PermApplyDiscount: {CategorySales, "Apply discounts to a sale"},

		PermCreateCustomer: {CategoryCustomer, "Register customers"},
		PermViewCustomers:  {CategoryCustomer, "View customers"},
		PermUpdateCustomer: {CategoryCustomer, "Update customer details"},
		PermDeleteCustomer: {CategoryCustomer, "Remove customers"},

		PermViewReports:          {CategoryReport, "View reports"},
		PermExportReports:        {CategoryReport, "Export reports"},
		PermViewSalesReports:     {CategoryReport, "View sales reports"},
		PermViewInventoryReports: {CategoryReport, "View inventory reports"},

		PermManageSystemSettings: {CategorySystem, "Manage platform settings"},
		PermViewSystemLogs:       {CategorySystem, "View platform logs"},
		PermManageSubscriptions:  {CategorySystem, "Manage pharmacy subscriptions"},
		PermManageBackups:        {CategorySystem, "Manage platform backups"},

		PermViewAuditLogs:   {CategoryAudit, "View audit logs"},
		PermExportAuditLogs: {CategoryAudit, "Export audit logs"},

		PermViewExpiryAlerts:     {CategoryExpiry, "View expiry alerts"},
		PermManageExpirySettings: {CategoryExpiry, "Configure expiry thresholds"},
		PermDisposeExpiredDrugs:  {CategoryExpiry, "Record disposal of expired drugs"},

		PermVoidSale:            {CategoryManager, "Void a finalized sale"},
		PermOverridePrice:       {CategoryManager, "Override a sale price"},
		PermApproveStockAdjust:  {CategoryManager, "Approve stock adjustments"},
		PermViewBranchAnalytics: {CategoryManager, "View branch analytics"},
	}
	return entries
}

// All returns every permission in the catalog. The order is stable
// (category declaration order) so it can be rendered directly.
func All() []Permission {
	out := make([]Permission, 0, len(catalog))
	for _, group := range [][]Permission{
		UserPermissions, PharmacyPermissions, BranchPermissions,
		DrugPermissions, SalesPermissions, CustomerPermissions,
		ReportPermissions, SystemPermissions, AuditPermissions,
		ExpiryPermissions, ManagerPermissions,
	} {
		out = append(out, group...)
	}
	return out
}

// Known reports whether the permission exists in the catalog.
func Known(p Permission) bool {
	_, ok := catalog[p]
	return ok
}

// Describe returns the human-readable label for a permission, or the
// raw identifier when the permission carries no description. It never
// fails.
func Describe(p Permission) string {
	if entry, ok := catalog[p]; ok {
		return entry.description
	}
	return string(p)
}

// CategoryOf returns the category a permission belongs to, or
// CategoryUnknown for identifiers outside the catalog.
func CategoryOf(p Permission) Category {
	if entry, ok := catalog[p]; ok {
		return entry.category
	}
	return CategoryUnknown
}

// Validate reports whether every element of the list exists in the
// catalog. Assignment paths must call this before persisting custom
// grants; evaluation itself treats unknown permissions as absent.
func Validate(perms []Permission) bool {
	for _, p := range perms {
		if !Known(p) {
			return false
		}
	}
	return true
}

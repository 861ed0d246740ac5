package authz

// HasPharmacyAccess decides whether the principal may operate on the
// target pharmacy's data. Independent of the permission catalog: this
// is tenancy, decided by assignment.
//
// super_admin passes unconditionally. Everyone else passes for their
// own pharmacy or for an active additional assignment. Token-backed
// principals carry no assignment list (ActivePharmacies returns nil),
// so through a token this check is strictly more restrictive than
// against the stored record; callers needing the additional
// assignments must evaluate a record-backed principal.
func HasPharmacyAccess(p Principal, targetPharmacyID int64) bool {
	if p.Role() == RoleSuperAdmin {
		return true
	}
	if p.PharmacyID() != 0 && p.PharmacyID() == targetPharmacyID {
		return true
	}
	for _, id := range p.ActivePharmacies() {
		if id == targetPharmacyID {
			return true
		}
	}
	return false
}

// ValidatePharmacyAccess returns an AccessDeniedError naming the
// operation when the principal may not touch the target pharmacy.
func ValidatePharmacyAccess(p Principal, targetPharmacyID int64, operation string) error {
	if HasPharmacyAccess(p, targetPharmacyID) {
		return nil
	}
	return &AccessDeniedError{Operation: operation}
}

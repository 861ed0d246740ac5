package authz

// Principal is the evaluator's view of an authenticated actor. Both
// the persisted user record and the decoded token payload satisfy it
// through small adapters, so every decision runs through a single code
// path regardless of where the principal came from.
type Principal interface {
	Role() Role
	// CustomPermissions are explicit grants beyond the role defaults.
	CustomPermissions() []Permission
	// Manager reports the manager flag, which unlocks manager-tier
	// permissions unless excluded for the role.
	Manager() bool
	PharmacyID() int64
	BranchID() int64
	// ActivePharmacies lists additional pharmacy assignments that are
	// currently active. Token principals return nil: tokens do not
	// carry the assignment list, which makes the token path a strictly
	// more restrictive approximation for tenancy checks.
	ActivePharmacies() []int64
}

// Subject is a plain-struct Principal. It backs both representations:
// the auth package builds one from token claims, the users package
// from a stored record.
type Subject struct {
	UserID      int64
	UserRole    Role
	Permissions []Permission
	IsManager   bool
	Pharmacy    int64
	Branch      int64
	Assignments []int64
}

// PrincipalID returns the user ID behind a principal, 0 when the
// concrete type does not carry one.
func PrincipalID(p Principal) int64 {
	if subject, ok := p.(Subject); ok {
		return subject.UserID
	}
	return 0
}

func (s Subject) Role() Role                      { return s.UserRole }
func (s Subject) CustomPermissions() []Permission { return s.Permissions }
func (s Subject) Manager() bool                   { return s.IsManager }
func (s Subject) PharmacyID() int64               { return s.Pharmacy }
func (s Subject) BranchID() int64                 { return s.Branch }
func (s Subject) ActivePharmacies() []int64       { return s.Assignments }

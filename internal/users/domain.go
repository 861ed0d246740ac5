// Package users manages user accounts: role-gated creation and
// administration, and the custom permission assignment operation.
package users

import (
	"time"

	"github.com/apothek-io/apothek/internal/authz"
)

// User represents a managed user account. Permissions holds only the
// custom delta beyond role defaults; the effective set is derived at
// read time, never stored.
type User struct {
	ID          int64              `json:"id"`
	Email       string             `json:"email"`
	Name        string             `json:"name"`
	Role        authz.Role         `json:"role"`
	Permissions []authz.Permission `json:"permissions"`
	IsManager   bool               `json:"is_manager"`
	PharmacyID  int64              `json:"pharmacy_id,omitempty"`
	BranchID    int64              `json:"branch_id,omitempty"`
	IsActive    bool               `json:"is_active"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Subject converts the stored record into a record-backed principal.
func (u User) Subject(assignments []int64) authz.Subject {
	return authz.Subject{
		UserID:      u.ID,
		UserRole:    u.Role,
		Permissions: u.Permissions,
		IsManager:   u.IsManager,
		Pharmacy:    u.PharmacyID,
		Branch:      u.BranchID,
		Assignments: assignments,
	}
}

// PermissionView is the administration view of a user's permission
// state: the derived effective set plus the custom/removed diagnostics.
type PermissionView struct {
	Effective []authz.Permission `json:"effective"`
	Custom    []authz.Permission `json:"custom_beyond_defaults"`
	Removed   []authz.Permission `json:"removed_from_defaults"`
}

// Filter narrows user listings.
type Filter struct {
	PharmacyID int64
	BranchID   int64
	Role       authz.Role
	IsActive   *bool
	Search     string
	Limit      int
	Offset     int
}

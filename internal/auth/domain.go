// Package auth implements credential verification and the signed
// token lifecycle. Tokens carry the principal fields the authorization
// engine evaluates: role, pharmacy/branch assignment, custom
// permissions and the manager flag.
package auth

import (
	"time"

	"github.com/apothek-io/apothek/internal/authz"
)

// Account is the authentication view of a stored user.
type Account struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         authz.Role
	Permissions  []authz.Permission
	IsManager    bool
	PharmacyID   int64
	BranchID     int64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subject converts the account into a record-backed principal,
// including active additional pharmacy assignments.
func (a Account) Subject(assignments []int64) authz.Subject {
	return authz.Subject{
		UserID:      a.ID,
		UserRole:    a.Role,
		Permissions: a.Permissions,
		IsManager:   a.IsManager,
		Pharmacy:    a.PharmacyID,
		Branch:      a.BranchID,
		Assignments: assignments,
	}
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

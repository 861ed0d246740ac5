// Package pharmacies manages the pharmacy tenants and user-to-pharmacy
// assignments that drive tenancy scoping.
package pharmacies

import "time"

// Pharmacy is a tenant of the platform.
type Pharmacy struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	License   string    `json:"license,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assignment links a user to an additional pharmacy beyond the primary
// one. Only active assignments count for tenancy.
type Assignment struct {
	UserID     int64     `json:"user_id"`
	PharmacyID int64     `json:"pharmacy_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

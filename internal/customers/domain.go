// Package customers manages the per-pharmacy customer registry.
package customers

import "time"

// Customer is registered against one pharmacy.
type Customer struct {
	ID         int64     `json:"id"`
	PharmacyID int64     `json:"pharmacy_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Address    string    `json:"address,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Filter narrows customer listings.
type Filter struct {
	PharmacyID int64
	Search     string
	Limit      int
	Offset     int
}

// Package branches manages the branches of a pharmacy.
package branches

import "time"

// Branch is a physical location of a pharmacy.
type Branch struct {
	ID         int64     `json:"id"`
	PharmacyID int64     `json:"pharmacy_id"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

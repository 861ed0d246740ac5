// Package audit records and serves the audit trail. Every
// security-relevant mutation (user creation, permission assignment,
// sale finalization, stock adjustment, disposal) leaves an entry.
package audit

import "time"

// Entry represents a record stored in audit_logs.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	PharmacyID int64          `json:"pharmacy_id,omitempty"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	At         time.Time      `json:"at"`
}

// Filter narrows audit listings.
type Filter struct {
	PharmacyID int64
	ActorID    int64
	Entity     string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

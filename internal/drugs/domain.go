// Package drugs manages the drug catalog, batch-level expiry tracking
// and stock movements for a pharmacy.
package drugs

import "time"

// Drug is a catalog entry. Stock is the current on-hand quantity
// across all batches; it is only mutated through stock movements.
type Drug struct {
	ID                   int64     `json:"id"`
	PharmacyID           int64     `json:"pharmacy_id"`
	BranchID             int64     `json:"branch_id,omitempty"`
	Name                 string    `json:"name"`
	GenericName          string    `json:"generic_name,omitempty"`
	Barcode              string    `json:"barcode,omitempty"`
	Category             string    `json:"category,omitempty"`
	Manufacturer         string    `json:"manufacturer,omitempty"`
	Unit                 string    `json:"unit"`
	Price                float64   `json:"price"`
	Cost                 float64   `json:"cost"`
	Stock                float64   `json:"stock"`
	ReorderLevel         float64   `json:"reorder_level"`
	RequiresPrescription bool      `json:"requires_prescription"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Batch tracks a received lot of a drug with its expiry date.
type Batch struct {
	ID          int64     `json:"id"`
	DrugID      int64     `json:"drug_id"`
	BatchNumber string    `json:"batch_number"`
	Quantity    float64   `json:"quantity"`
	UnitCost    float64   `json:"unit_cost"`
	ExpiresAt   time.Time `json:"expires_at"`
	ReceivedAt  time.Time `json:"received_at"`
}

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementReceive  MovementType = "receive"
	MovementSale     MovementType = "sale"
	MovementAdjust   MovementType = "adjust"
	MovementDispose  MovementType = "dispose"
	MovementTransfer MovementType = "transfer"
)

// Movement is a single ledger entry against a drug's stock.
type Movement struct {
	ID       int64        `json:"id"`
	DrugID   int64        `json:"drug_id"`
	Type     MovementType `json:"type"`
	Qty      float64      `json:"qty"`
	Balance  float64      `json:"balance"`
	Note     string       `json:"note,omitempty"`
	ActorID  int64        `json:"actor_id"`
	PostedAt time.Time    `json:"posted_at"`
}

// Filter narrows catalog listings.
type Filter struct {
	PharmacyID int64
	BranchID   int64
	Search     string
	Category   string
	LowStock   bool
	Limit      int
	Offset     int
}

// AdjustmentInput describes a manual stock adjustment. Qty may be
// negative; a negative result is rejected.
type AdjustmentInput struct {
	DrugID int64
	Qty    float64
	Type   MovementType
	Note   string
}

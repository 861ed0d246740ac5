package drugs

import "time"

// DrugRequest creates or updates a catalog entry.
type DrugRequest struct {
	PharmacyID           int64   `json:"pharmacy_id,omitempty" validate:"omitempty,gt=0"`
	BranchID             int64   `json:"branch_id,omitempty" validate:"omitempty,gt=0"`
	Name                 string  `json:"name" validate:"required,max=200"`
	GenericName          string  `json:"generic_name,omitempty" validate:"omitempty,max=200"`
	Barcode              string  `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Category             string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Manufacturer         string  `json:"manufacturer,omitempty" validate:"omitempty,max=200"`
	Unit                 string  `json:"unit" validate:"required,max=32"`
	Price                float64 `json:"price" validate:"gte=0"`
	Cost                 float64 `json:"cost" validate:"gte=0"`
	Stock                float64 `json:"stock,omitempty" validate:"gte=0"`
	ReorderLevel         float64 `json:"reorder_level" validate:"gte=0"`
	RequiresPrescription bool    `json:"requires_prescription"`
}

// AdjustStockRequest posts a manual stock movement.
type AdjustStockRequest struct {
	Qty  float64 `json:"qty" validate:"required"`
	Type string  `json:"type,omitempty" validate:"omitempty,oneof=receive adjust dispose transfer"`
	Note string  `json:"note,omitempty" validate:"omitempty,max=500"`
}

// BatchRequest registers a received lot.
type BatchRequest struct {
	BatchNumber string    `json:"batch_number" validate:"required,max=64"`
	Quantity    float64   `json:"quantity" validate:"gt=0"`
	UnitCost    float64   `json:"unit_cost" validate:"gte=0"`
	ExpiresAt   time.Time `json:"expires_at" validate:"required"`
}

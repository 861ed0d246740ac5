// Package sales implements the point-of-sale flow: an open sale is a
// cart; finalizing it decrements stock and locks the record; voiding
// or refunding a finalized sale restores stock.
package sales

import "time"

// Status tracks a sale through its lifecycle.
type Status string

const (
	StatusOpen      Status = "open"
	StatusFinalized Status = "finalized"
	StatusVoided    Status = "voided"
	StatusRefunded  Status = "refunded"
)

// Sale is a register transaction.
type Sale struct {
	ID            int64      `json:"id"`
	Code          string     `json:"code"`
	PharmacyID    int64      `json:"pharmacy_id"`
	BranchID      int64      `json:"branch_id,omitempty"`
	CashierID     int64      `json:"cashier_id"`
	CustomerID    int64      `json:"customer_id,omitempty"`
	Status        Status     `json:"status"`
	Subtotal      float64    `json:"subtotal"`
	Discount      float64    `json:"discount"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Lines         []Line     `json:"lines,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinalizedAt   *time.Time `json:"finalized_at,omitempty"`
}

// Line is one drug on a sale. Name and UnitPrice are copied from the
// catalog at capture time so later catalog edits do not rewrite
// history.
type Line struct {
	ID        int64   `json:"id"`
	SaleID    int64   `json:"sale_id"`
	DrugID    int64   `json:"drug_id"`
	Name      string  `json:"name"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// Filter narrows sale listings.
type Filter struct {
	PharmacyID int64
	BranchID   int64
	CashierID  int64
	CustomerID int64
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

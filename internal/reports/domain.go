// Package reports aggregates sales and inventory figures per
// pharmacy. Results are cached in Redis under a versioned key so
// report invalidation is a single version bump.
package reports

import "time"

// SalesSummary aggregates finalized sales over a period.
type SalesSummary struct {
	PharmacyID       int64      `json:"pharmacy_id"`
	From             time.Time  `json:"from"`
	To               time.Time  `json:"to"`
	TotalSales       float64    `json:"total_sales"`
	TotalDiscount    float64    `json:"total_discount"`
	TransactionCount int        `json:"transaction_count"`
	AverageTicket    float64    `json:"average_ticket"`
	TopDrugs         []DrugRank `json:"top_drugs,omitempty"`
}

// DrugRank is one row of the top-sellers list.
type DrugRank struct {
	DrugID  int64   `json:"drug_id"`
	Name    string  `json:"name"`
	QtySold float64 `json:"qty_sold"`
	Revenue float64 `json:"revenue"`
}

// InventoryValuation prices the current stock of a pharmacy.
type InventoryValuation struct {
	PharmacyID    int64   `json:"pharmacy_id"`
	DrugCount     int     `json:"drug_count"`
	TotalUnits    float64 `json:"total_units"`
	CostValue     float64 `json:"cost_value"`
	RetailValue   float64 `json:"retail_value"`
	LowStockCount int     `json:"low_stock_count"`
}

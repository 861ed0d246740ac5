package sales

// LineRequest is one requested cart line. Price comes from the
// catalog, not the client.
type LineRequest struct {
	DrugID int64   `json:"drug_id" validate:"required,gt=0"`
	Qty    float64 `json:"qty" validate:"required,gt=0"`
}

// CreateSaleRequest opens a sale.
type CreateSaleRequest struct {
	CustomerID int64         `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Lines      []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// UpdateSaleRequest replaces the cart of an open sale.
type UpdateSaleRequest struct {
	CustomerID int64         `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Lines      []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// DiscountRequest applies an absolute discount to an open sale.
type DiscountRequest struct {
	Discount float64 `json:"discount" validate:"gte=0"`
}

// FinalizeRequest closes the sale at the register.
type FinalizeRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash card transfer insurance"`
}

// ReverseRequest voids or refunds a finalized sale.
type ReverseRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

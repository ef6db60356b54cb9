package purchasing

import "time"

// OrderStatus enumerates the purchase order lifecycle.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "DRAFT"
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusApproved  OrderStatus = "APPROVED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusReceived  OrderStatus = "RECEIVED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is a purchase order to a supplier.
type Order struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	Status       OrderStatus `json:"status"`
	SupplierName string      `json:"supplier_name"`
	OutletCode   string      `json:"outlet_code"`
	Total        float64     `json:"total"`
	Note         string      `json:"note,omitempty"`
	OrderedBy    int64       `json:"ordered_by"`
	OrderedAt    time.Time   `json:"ordered_at"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Lines        []OrderLine `json:"lines,omitempty"`
}

// OrderLine is one item on a purchase order.
type OrderLine struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Qty       float64 `json:"qty"`
	UnitCost  float64 `json:"unit_cost"`
	LineTotal float64 `json:"line_total"`
}

// OrderFilter narrows List queries.
type OrderFilter struct {
	Status     OrderStatus
	OutletCode string
	Page       int
	PerPage    int
}

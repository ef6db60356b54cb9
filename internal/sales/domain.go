package sales

import "time"

// SaleStatus enumerates the lifecycle of a sale record.
type SaleStatus string

const (
	SaleStatusDraft     SaleStatus = "DRAFT"
	SaleStatusSubmitted SaleStatus = "SUBMITTED"
	SaleStatusApproved  SaleStatus = "APPROVED"
	SaleStatusRejected  SaleStatus = "REJECTED"
	SaleStatusVoid      SaleStatus = "VOID"
)

// Sale is a point-of-sale transaction header.
type Sale struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	Status      SaleStatus `json:"status"`
	OutletCode  string     `json:"outlet_code"`
	CashierID   int64      `json:"cashier_id"`
	CashierName string     `json:"cashier_name,omitempty"`
	Subtotal    float64    `json:"subtotal"`
	Discount    float64    `json:"discount"`
	Tax         float64    `json:"tax"`
	Total       float64    `json:"total"`
	Note        string     `json:"note,omitempty"`
	SoldAt      time.Time  `json:"sold_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Lines       []SaleLine `json:"lines,omitempty"`
}

// SaleLine is one item on a sale.
type SaleLine struct {
	ID        int64   `json:"id"`
	SaleID    int64   `json:"sale_id"`
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	Discount  float64 `json:"discount"`
	LineTotal float64 `json:"line_total"`
}

// SaleFilter narrows List queries.
type SaleFilter struct {
	Status     SaleStatus
	OutletCode string
	From       time.Time
	To         time.Time
	Page       int
	PerPage    int
}

// Summary aggregates sales for a date range.
type Summary struct {
	OutletCode string  `json:"outlet_code,omitempty"`
	Count      int64   `json:"count"`
	GrossTotal float64 `json:"gross_total"`
	Discount   float64 `json:"discount"`
	Tax        float64 `json:"tax"`
	NetTotal   float64 `json:"net_total"`
}

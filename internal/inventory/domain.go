package inventory

import "time"

// Product is a sellable item tracked in stock.
type Product struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Unit      string    `json:"unit"`
	Price     float64   `json:"price"`
	Stock     float64   `json:"stock"`
	MinStock  float64   `json:"min_stock"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdjustmentReason categorises a stock movement.
type AdjustmentReason string

const (
	ReasonPurchase   AdjustmentReason = "PURCHASE"
	ReasonSale       AdjustmentReason = "SALE"
	ReasonCount      AdjustmentReason = "COUNT"
	ReasonWaste      AdjustmentReason = "WASTE"
	ReasonCorrection AdjustmentReason = "CORRECTION"
)

// Adjustment is one stock movement against a product.
type Adjustment struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"product_id"`
	Delta     float64          `json:"delta"`
	Reason    AdjustmentReason `json:"reason"`
	Note      string           `json:"note,omitempty"`
	ActorID   int64            `json:"actor_id"`
	CreatedAt time.Time        `json:"created_at"`
}

// ProductFilter narrows product listing.
type ProductFilter struct {
	Query    string
	Category string
	LowStock bool
	Page     int
	PerPage  int
}

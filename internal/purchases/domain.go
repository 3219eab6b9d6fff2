package purchases

import (
	"errors"
	"time"
)

// Status enumerates the purchase order lifecycle.
type Status string

const (
	// StatusAwaiting is the initial state, order placed but not shipped.
	StatusAwaiting Status = "AWAITING"
	// StatusInTransit marks orders on the way.
	StatusInTransit Status = "IN_TRANSIT"
	// StatusCompleted marks received orders; only these ever have a lot.
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled marks cancelled orders; their lot, if any, is archived.
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusAwaiting, StatusInTransit, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// PurchaseOrder is a stock purchase. Cost adjustments (discount, freight,
// tax) are absolute amounts over the whole order.
type PurchaseOrder struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	SKU         string    `json:"sku"`
	ProductName string    `json:"product_name"`
	Brand       string    `json:"brand,omitempty"`
	Supplier    string    `json:"supplier,omitempty"`
	TrackingRef string    `json:"tracking_ref,omitempty"`
	Qty         float64   `json:"qty"`
	UnitPrice   float64   `json:"unit_price"`
	Discount    float64   `json:"discount"`
	Freight     float64   `json:"freight"`
	Tax         float64   `json:"tax"`
	Status      Status    `json:"status"`
	OrderedAt   time.Time `json:"ordered_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GrossTotal is qty times unit price before adjustments.
func (p PurchaseOrder) GrossTotal() float64 {
	return p.Qty * p.UnitPrice
}

// NetTotal is the landed cost of the whole order.
func (p PurchaseOrder) NetTotal() float64 {
	return p.GrossTotal() - p.Discount + p.Freight + p.Tax
}

// FinalUnitCost is the landed cost per unit, the figure every unit of the
// resulting lot is valued at.
func (p PurchaseOrder) FinalUnitCost() float64 {
	if p.Qty <= 0 {
		return 0
	}
	return p.NetTotal() / p.Qty
}

// ErrNotFound indicates a missing purchase order.
var ErrNotFound = errors.New("purchases: order not found")

// ErrDuplicateNumber indicates the order number is already taken.
var ErrDuplicateNumber = errors.New("purchases: order number already exists")

// ErrInvalidStatus indicates an unknown lifecycle status.
var ErrInvalidStatus = errors.New("purchases: invalid status")

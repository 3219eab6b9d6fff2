package sales

import (
	"errors"
	"time"

	"github.com/merx-ops/merx/internal/lots"
)

// Status enumerates the sale order lifecycle.
type Status string

const (
	// StatusAwaiting is the initial state, sale registered but not shipped.
	StatusAwaiting Status = "AWAITING"
	// StatusInTransit marks sales on the way to the customer.
	StatusInTransit Status = "IN_TRANSIT"
	// StatusCompleted marks delivered sales; completing consumes stock.
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled marks cancelled sales.
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

// SaleOrder is a customer sale. Allocations holds the per-lot breakdown
// recorded when the sale most recently entered COMPLETED; it is the sole
// input to reversal and is cleared once reversed.
type SaleOrder struct {
	ID          int64             `json:"id"`
	Number      string            `json:"number"`
	SKU         string            `json:"sku"`
	ProductName string            `json:"product_name"`
	Customer    string            `json:"customer,omitempty"`
	Qty         float64           `json:"qty"`
	UnitPrice   float64           `json:"unit_price"`
	Status      Status            `json:"status"`
	Allocations []lots.Allocation `json:"allocations,omitempty"`
	SoldAt      time.Time         `json:"sold_at"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Total is the sale value.
func (s SaleOrder) Total() float64 {
	return s.Qty * s.UnitPrice
}

// StockWarning reports a partial allocation to the operator. It accompanies
// a successful save; a shortfall never blocks the sale.
type StockWarning struct {
	SKU      string  `json:"sku"`
	QtyShort float64 `json:"qty_short"`
}

// ErrNotFound indicates a missing sale order.
var ErrNotFound = errors.New("sales: order not found")

// ErrDuplicateNumber indicates the order number is already taken.
var ErrDuplicateNumber = errors.New("sales: order number already exists")

// ErrInvalidStatus indicates an unknown lifecycle status.
var ErrInvalidStatus = errors.New("sales: invalid status")

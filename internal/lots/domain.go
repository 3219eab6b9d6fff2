package lots

import (
	"errors"
	"time"
)

// LotStatus enumerates lot lifecycle states.
type LotStatus string

const (
	// LotStatusActive marks lots available for consumption and valuation.
	LotStatusActive LotStatus = "ACTIVE"
	// LotStatusArchived marks lots retained for history only.
	LotStatusArchived LotStatus = "ARCHIVED"
)

// LowStockThreshold is the balance at or below which a lot counts as low stock.
const LowStockThreshold = 5.0

// Lot is a batch of inventory originating from exactly one completed purchase.
// Its ID always equals the originating purchase id, so ascending ID order is
// creation order.
type Lot struct {
	ID           int64
	SKU          string
	ProductName  string
	Brand        string
	Supplier     string
	OrderRef     string
	TrackingRef  string
	PurchaseDate time.Time
	UnitCost     float64
	InitialQty   float64
	Balance      float64
	Status       LotStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ArchivedAt   *time.Time
}

// Active reports whether the lot participates in consumption and valuation.
func (l Lot) Active() bool {
	return l.Status == LotStatusActive
}

// Allocation records one draw against a lot. Sales keep the ordered list of
// these so a completed sale can be reversed exactly, without re-deriving which
// lots were touched from current stock.
type Allocation struct {
	LotID         int64   `json:"lot_id"`
	QtyTaken      float64 `json:"qty_taken"`
	BalanceBefore float64 `json:"balance_before"`
	BalanceAfter  float64 `json:"balance_after"`
}

// AllocationResult is the outcome of a FIFO allocation. A shortfall is not an
// error; the caller commits the partial allocation and surfaces QtyShort.
type AllocationResult struct {
	Allocations  []Allocation `json:"allocations"`
	QtyAllocated float64      `json:"qty_allocated"`
	QtyShort     float64      `json:"qty_short"`
}

// PurchaseSnapshot carries the purchase fields the synchronizer copies onto a
// lot. FinalUnitCost is the landed cost per unit.
type PurchaseSnapshot struct {
	PurchaseID    int64
	SKU           string
	ProductName   string
	Brand         string
	Supplier      string
	OrderRef      string
	TrackingRef   string
	PurchaseDate  time.Time
	Qty           float64
	FinalUnitCost float64
}

// StockBucket buckets lots by remaining balance for listing filters.
type StockBucket string

const (
	// BucketHasStock selects lots with balance > 0.
	BucketHasStock StockBucket = "has-stock"
	// BucketNoStock selects lots with zero balance.
	BucketNoStock StockBucket = "no-stock"
	// BucketLow selects lots with 0 < balance <= LowStockThreshold.
	BucketLow StockBucket = "low"
)

// ListFilter narrows lot listings.
type ListFilter struct {
	Query    string
	Supplier string
	Status   LotStatus
	Bucket   StockBucket
}

// StockSummary aggregates quantity and value over active lots.
type StockSummary struct {
	TotalQty     float64 `json:"total_qty"`
	TotalValue   float64 `json:"total_value"`
	ActiveLots   int     `json:"active_lots"`
	LowStockLots int     `json:"low_stock_lots"`
}

// ValuationSnapshot is a persisted point-in-time copy of a StockSummary.
// The scheduled snapshot job appends one row per run so reporting can read
// already-computed totals instead of re-walking the lot collection.
type ValuationSnapshot struct {
	TakenAt      time.Time `json:"taken_at"`
	TotalQty     float64   `json:"total_qty"`
	TotalValue   float64   `json:"total_value"`
	ActiveLots   int       `json:"active_lots"`
	LowStockLots int       `json:"low_stock_lots"`
}

// ErrLotNotFound indicates the targeted lot does not exist.
var ErrLotNotFound = errors.New("lots: lot not found")

// ErrInvalidQuantity indicates a non-positive requested quantity.
var ErrInvalidQuantity = errors.New("lots: quantity must be positive")

// ErrNegativeBalance indicates a manual balance below zero.
var ErrNegativeBalance = errors.New("lots: balance must not be negative")

// ErrConfirmationRequired is returned when an operation needs an explicit
// operator confirmation before it may proceed.
var ErrConfirmationRequired = errors.New("lots: operator confirmation required")

// ErrAlreadyArchived indicates an archive request against an archived lot.
var ErrAlreadyArchived = errors.New("lots: lot already archived")

// ErrNotArchived indicates a restore request against an active lot.
var ErrNotArchived = errors.New("lots: lot is not archived")

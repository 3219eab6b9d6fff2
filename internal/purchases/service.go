package purchases

import (
	"context"
	"fmt"
	"time"

	"github.com/merx-ops/merx/internal/lots"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, po PurchaseOrder) (int64, error)
	Update(ctx context.Context, po PurchaseOrder) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	List(ctx context.Context, status Status) ([]PurchaseOrder, error)
}

// LedgerPort is the slice of the lot ledger the purchase lifecycle drives.
type LedgerPort interface {
	SyncCompletedPurchase(ctx context.Context, snap lots.PurchaseSnapshot) (lots.Lot, error)
	ArchiveForPurchase(ctx context.Context, purchaseID int64) error
}

// Service orchestrates the purchase lifecycle and keeps the lot ledger in
// step with it. Ledger calls always happen after the purchase record itself
// is persisted.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
}

// NewService constructs the purchase service.
func NewService(repo RepositoryPort, ledger LedgerPort) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Input carries every operator-settable purchase field.
type Input struct {
	Number      string
	SKU         string
	ProductName string
	Brand       string
	Supplier    string
	TrackingRef string
	Qty         float64
	UnitPrice   float64
	Discount    float64
	Freight     float64
	Tax         float64
	Status      Status
	OrderedAt   time.Time
}

// Create persists a new purchase order. A purchase created directly in
// COMPLETED state receives its lot immediately.
func (s *Service) Create(ctx context.Context, input Input) (*PurchaseOrder, error) {
	po, err := buildOrder(input)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	po.CreatedAt = now
	po.UpdatedAt = now

	id, err := s.repo.Create(ctx, po)
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	po.ID = id

	if po.Status == StatusCompleted {
		if _, err := s.ledger.SyncCompletedPurchase(ctx, snapshotOf(po)); err != nil {
			return nil, fmt.Errorf("sync lot for purchase %d: %w", po.ID, err)
		}
	}
	return &po, nil
}

// Update overwrites an order and propagates its lifecycle to the ledger:
// COMPLETED re-syncs the lot on every save, CANCELLED archives it, any other
// status leaves the ledger untouched even when the order was completed before
// (see DESIGN.md).
func (s *Service) Update(ctx context.Context, id int64, input Input) (*PurchaseOrder, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	po, err := buildOrder(input)
	if err != nil {
		return nil, err
	}
	po.ID = existing.ID
	po.CreatedAt = existing.CreatedAt
	po.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, po); err != nil {
		return nil, fmt.Errorf("update purchase %d: %w", id, err)
	}

	switch po.Status {
	case StatusCompleted:
		if _, err := s.ledger.SyncCompletedPurchase(ctx, snapshotOf(po)); err != nil {
			return nil, fmt.Errorf("sync lot for purchase %d: %w", id, err)
		}
	case StatusCancelled:
		if err := s.ledger.ArchiveForPurchase(ctx, id); err != nil {
			return nil, fmt.Errorf("archive lot for purchase %d: %w", id, err)
		}
	}
	return &po, nil
}

// Delete removes an order and archives its lot, preserving any consumption
// history already attributed to it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete purchase %d: %w", id, err)
	}
	if err := s.ledger.ArchiveForPurchase(ctx, id); err != nil {
		return fmt.Errorf("archive lot for purchase %d: %w", id, err)
	}
	return nil
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders, optionally narrowed to one status.
func (s *Service) List(ctx context.Context, status Status) ([]PurchaseOrder, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, status)
}

func buildOrder(input Input) (PurchaseOrder, error) {
	if !input.Status.Valid() {
		return PurchaseOrder{}, ErrInvalidStatus
	}
	po := PurchaseOrder{
		Number:      input.Number,
		SKU:         input.SKU,
		ProductName: input.ProductName,
		Brand:       input.Brand,
		Supplier:    input.Supplier,
		TrackingRef: input.TrackingRef,
		Qty:         input.Qty,
		UnitPrice:   input.UnitPrice,
		Discount:    input.Discount,
		Freight:     input.Freight,
		Tax:         input.Tax,
		Status:      input.Status,
		OrderedAt:   input.OrderedAt,
	}
	if po.Number == "" {
		po.Number = generateNumber("PO")
	}
	if po.OrderedAt.IsZero() {
		po.OrderedAt = time.Now().UTC()
	}
	return po, nil
}

func snapshotOf(po PurchaseOrder) lots.PurchaseSnapshot {
	return lots.PurchaseSnapshot{
		PurchaseID:    po.ID,
		SKU:           po.SKU,
		ProductName:   po.ProductName,
		Brand:         po.Brand,
		Supplier:      po.Supplier,
		OrderRef:      po.Number,
		TrackingRef:   po.TrackingRef,
		PurchaseDate:  po.OrderedAt,
		Qty:           po.Qty,
		FinalUnitCost: po.FinalUnitCost(),
	}
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

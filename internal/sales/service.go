package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/merx-ops/merx/internal/lots"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, sale SaleOrder) (int64, error)
	Update(ctx context.Context, sale SaleOrder) error
	SetAllocations(ctx context.Context, id int64, allocations []lots.Allocation) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (SaleOrder, error)
	List(ctx context.Context, status Status) ([]SaleOrder, error)
}

// LedgerPort is the slice of the lot ledger the sale lifecycle drives.
type LedgerPort interface {
	Allocate(ctx context.Context, sku string, qty float64) (lots.AllocationResult, error)
	Reverse(ctx context.Context, allocations []lots.Allocation) error
}

// Service orchestrates the sale lifecycle and its stock effects. Completing a
// sale consumes lots FIFO and pins the allocation breakdown onto the sale;
// leaving COMPLETED reverses that exact breakdown before anything else is
// mutated, then clears it so it can never be reversed twice.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
}

// NewService constructs the sale service.
func NewService(repo RepositoryPort, ledger LedgerPort) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Input carries every operator-settable sale field.
type Input struct {
	Number      string
	SKU         string
	ProductName string
	Customer    string
	Qty         float64
	UnitPrice   float64
	Status      Status
	SoldAt      time.Time
}

// Create persists a new sale. A sale created directly in COMPLETED state
// consumes stock immediately; a shortfall is returned as a warning, never as
// an error.
func (s *Service) Create(ctx context.Context, input Input) (*SaleOrder, *StockWarning, error) {
	sale, err := buildSale(input)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now().UTC()
	sale.CreatedAt = now
	sale.UpdatedAt = now

	id, err := s.repo.Create(ctx, sale)
	if err != nil {
		return nil, nil, fmt.Errorf("create sale: %w", err)
	}
	sale.ID = id

	if sale.Status != StatusCompleted {
		return &sale, nil, nil
	}
	warning, err := s.consume(ctx, &sale)
	if err != nil {
		return nil, nil, err
	}
	return &sale, warning, nil
}

// Update overwrites a sale and propagates the lifecycle change:
//   - leaving COMPLETED reverses the stored allocations first, then persists
//     the sale with the list cleared;
//   - newly reaching COMPLETED persists the sale, then allocates and stores
//     the breakdown;
//   - an edit that stays COMPLETED keeps its allocations untouched (see
//     DESIGN.md).
func (s *Service) Update(ctx context.Context, id int64, input Input) (*SaleOrder, *StockWarning, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	sale, err := buildSale(input)
	if err != nil {
		return nil, nil, err
	}
	sale.ID = existing.ID
	sale.CreatedAt = existing.CreatedAt
	sale.UpdatedAt = time.Now().UTC()

	wasCompleted := existing.Status == StatusCompleted
	nowCompleted := sale.Status == StatusCompleted

	if wasCompleted && !nowCompleted {
		if err := s.ledger.Reverse(ctx, existing.Allocations); err != nil {
			return nil, nil, fmt.Errorf("reverse allocations for sale %d: %w", id, err)
		}
		sale.Allocations = nil
	}
	if wasCompleted && nowCompleted {
		sale.Allocations = existing.Allocations
	}

	if err := s.repo.Update(ctx, sale); err != nil {
		return nil, nil, fmt.Errorf("update sale %d: %w", id, err)
	}

	if !wasCompleted && nowCompleted {
		warning, err := s.consume(ctx, &sale)
		if err != nil {
			return nil, nil, err
		}
		return &sale, warning, nil
	}
	return &sale, nil, nil
}

// Delete reverses a completed sale's allocations, then removes the record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status == StatusCompleted {
		if err := s.ledger.Reverse(ctx, existing.Allocations); err != nil {
			return fmt.Errorf("reverse allocations for sale %d: %w", id, err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete sale %d: %w", id, err)
	}
	return nil
}

// Get loads one sale.
func (s *Service) Get(ctx context.Context, id int64) (SaleOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns sales, optionally narrowed to one status.
func (s *Service) List(ctx context.Context, status Status) ([]SaleOrder, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, status)
}

// consume allocates stock for a completed sale and stores the breakdown on
// the sale row. The sale record is already persisted at this point; ledger
// and sale are updated in separate sequential writes.
func (s *Service) consume(ctx context.Context, sale *SaleOrder) (*StockWarning, error) {
	result, err := s.ledger.Allocate(ctx, sale.SKU, sale.Qty)
	if err != nil {
		return nil, fmt.Errorf("allocate stock for sale %d: %w", sale.ID, err)
	}
	sale.Allocations = result.Allocations
	if err := s.repo.SetAllocations(ctx, sale.ID, result.Allocations); err != nil {
		return nil, fmt.Errorf("store allocations for sale %d: %w", sale.ID, err)
	}
	if result.QtyShort > 0 {
		return &StockWarning{SKU: sale.SKU, QtyShort: result.QtyShort}, nil
	}
	return nil, nil
}

func buildSale(input Input) (SaleOrder, error) {
	if !input.Status.Valid() {
		return SaleOrder{}, ErrInvalidStatus
	}
	sale := SaleOrder{
		Number:      input.Number,
		SKU:         input.SKU,
		ProductName: input.ProductName,
		Customer:    input.Customer,
		Qty:         input.Qty,
		UnitPrice:   input.UnitPrice,
		Status:      input.Status,
		SoldAt:      input.SoldAt,
	}
	if sale.Number == "" {
		sale.Number = generateNumber("SO")
	}
	if sale.SoldAt.IsZero() {
		sale.SoldAt = time.Now().UTC()
	}
	return sale, nil
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

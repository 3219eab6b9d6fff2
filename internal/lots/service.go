package lots

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RepositoryPort abstracts lot persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	LoadAll(ctx context.Context) ([]Lot, error)
}

// Service owns every mutation of the lot collection: purchase-driven sync,
// FIFO consumption, reversal, and the explicit manual operations. A single
// mutex serialises the read-modify-write cycles so concurrent callers within
// the process cannot interleave them. Coordination across processes is out of
// scope (see DESIGN.md).
type Service struct {
	repo  RepositoryPort
	cache *SummaryCache
	mu    sync.Mutex
}

// NewService builds Service. The cache may be nil.
func NewService(repo RepositoryPort, cache *SummaryCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// SyncCompletedPurchase creates or refreshes the lot for a purchase that is
// saved in COMPLETED state. One purchase maps to at most one lot, forever:
// the lot id is the purchase id.
//
// On re-completion the descriptive fields, unit cost and initial quantity are
// overwritten unconditionally and an archived lot is re-activated. The
// balance follows the consumption-protection policy: a lot untouched by any
// consumption is reset to the new purchase quantity, while a partially
// consumed lot is capped at min(current balance, new quantity) so sold
// history is never inflated.
func (s *Service) SyncCompletedPurchase(ctx context.Context, snap PurchaseSnapshot) (Lot, error) {
	if snap.Qty <= 0 {
		return Lot{}, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		collection, err := tx.LoadAll(ctx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		idx := indexByID(collection, snap.PurchaseID)
		if idx < 0 {
			lot := Lot{
				ID:           snap.PurchaseID,
				SKU:          snap.SKU,
				ProductName:  snap.ProductName,
				Brand:        snap.Brand,
				Supplier:     snap.Supplier,
				OrderRef:     snap.OrderRef,
				TrackingRef:  snap.TrackingRef,
				PurchaseDate: snap.PurchaseDate,
				UnitCost:     snap.FinalUnitCost,
				InitialQty:   snap.Qty,
				Balance:      snap.Qty,
				Status:       LotStatusActive,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			collection = append(collection, lot)
			result = lot
		} else {
			lot := &collection[idx]
			untouched := lot.Balance == lot.InitialQty
			lot.SKU = snap.SKU
			lot.ProductName = snap.ProductName
			lot.Brand = snap.Brand
			lot.Supplier = snap.Supplier
			lot.OrderRef = snap.OrderRef
			lot.TrackingRef = snap.TrackingRef
			lot.PurchaseDate = snap.PurchaseDate
			lot.UnitCost = snap.FinalUnitCost
			lot.InitialQty = snap.Qty
			if untouched {
				lot.Balance = snap.Qty
			} else if lot.Balance > snap.Qty {
				lot.Balance = snap.Qty
			}
			lot.Status = LotStatusActive
			lot.ArchivedAt = nil
			lot.UpdatedAt = now
			result = *lot
		}
		return tx.SaveAll(ctx, collection)
	})
	if err != nil {
		return Lot{}, err
	}
	s.invalidateSummary(ctx)
	return result, nil
}

// ArchiveForPurchase archives the lot belonging to a cancelled or deleted
// purchase. The balance is left as is: consumption that already shipped
// through sales stays on the archived lot. A purchase that never completed
// has no lot, which is not an error.
func (s *Service) ArchiveForPurchase(ctx context.Context, purchaseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		collection, err := tx.LoadAll(ctx)
		if err != nil {
			return err
		}
		idx := indexByID(collection, purchaseID)
		if idx < 0 {
			return nil
		}
		lot := &collection[idx]
		if lot.Status == LotStatusArchived {
			return nil
		}
		now := time.Now().UTC()
		lot.Status = LotStatusArchived
		lot.ArchivedAt = &now
		lot.UpdatedAt = now
		return tx.SaveAll(ctx, collection)
	})
	if err != nil {
		return err
	}
	s.invalidateSummary(ctx)
	return nil
}

// Allocate consumes qty of a SKU from active lots in FIFO order. A shortfall
// is reported in the result, not as an error; the caller decides how to
// surface it.
func (s *Service) Allocate(ctx context.Context, sku string, qty float64) (AllocationResult, error) {
	if qty <= 0 {
		return AllocationResult{}, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var result AllocationResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		collection, err := tx.LoadAll(ctx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		ptrs := collectionPointers(collection)
		result = allocateFIFO(ptrs, sku, qty)
		for _, alloc := range result.Allocations {
			if idx := indexByID(collection, alloc.LotID); idx >= 0 {
				collection[idx].UpdatedAt = now
			}
		}
		return tx.SaveAll(ctx, collection)
	})
	if err != nil {
		return AllocationResult{}, err
	}
	s.invalidateSummary(ctx)
	return result, nil
}

// Reverse restores a stored allocation list onto the current lot balances.
// Each restore is additive; allocations whose lot no longer exists are
// skipped. The caller must clear the stored allocations afterwards so the
// same list cannot be reversed twice.
func (s *Service) Reverse(ctx context.Context, allocations []Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		collection, err := tx.LoadAll(ctx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		touched := reverseAllocations(collectionPointers(collection), allocations)
		for _, lot := range touched {
			lot.UpdatedAt = now
		}
		return tx.SaveAll(ctx, collection)
	})
	if err != nil {
		return err
	}
	s.invalidateSummary(ctx)
	return nil
}

// SetBalance applies a manual balance override. Negative balances are
// rejected outright; raising the balance above the initial quantity models an
// out-of-band correction and requires confirm to be set.
func (s *Service) SetBalance(ctx context.Context, lotID int64, newBalance float64, confirm bool) (Lot, error) {
	if newBalance < 0 {
		return Lot{}, ErrNegativeBalance
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		collection, err := tx.LoadAll(ctx)
		if err != nil {
			return err
		}
		idx := indexByID(collection, lotID)
		if idx < 0 {
			return ErrLotNotFound
		}
		lot := &collection[idx]
		if newBalance > lot.InitialQty && !confirm {
			return ErrConfirmationRequired
		}
		lot.Balance = newBalance
		lot.UpdatedAt = time.Now().UTC()
		result = *lot
		return tx.SaveAll(ctx, collection)
	})
	if err != nil {
		return Lot{}, err
	}
	s.invalidateSummary(ctx)
	return result, nil
}

// Archive marks a lot unavailable for consumption and valuation while keeping
// its history. Archiving remaining stock writes it off from availability, so
// a positive balance requires confirm.
func (s *Service) Archive(ctx context.Context, lotID int64, confirm bool) (Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		collection, err := tx.LoadAll(ctx)
		if err != nil {
			return err
		}
		idx := indexByID(collection, lotID)
		if idx < 0 {
			return ErrLotNotFound
		}
		lot := &collection[idx]
		if lot.Status == LotStatusArchived {
			return ErrAlreadyArchived
		}
		if lot.Balance > 0 && !confirm {
			return ErrConfirmationRequired
		}
		now := time.Now().UTC()
		lot.Status = LotStatusArchived
		lot.ArchivedAt = &now
		lot.UpdatedAt = now
		result = *lot
		return tx.SaveAll(ctx, collection)
	})
	if err != nil {
		return Lot{}, err
	}
	s.invalidateSummary(ctx)
	return result, nil
}

// Restore re-activates an archived lot without touching its balance.
func (s *Service) Restore(ctx context.Context, lotID int64) (Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		collection, err := tx.LoadAll(ctx)
		if err != nil {
			return err
		}
		idx := indexByID(collection, lotID)
		if idx < 0 {
			return ErrLotNotFound
		}
		lot := &collection[idx]
		if lot.Status != LotStatusArchived {
			return ErrNotArchived
		}
		lot.Status = LotStatusActive
		lot.ArchivedAt = nil
		lot.UpdatedAt = time.Now().UTC()
		result = *lot
		return tx.SaveAll(ctx, collection)
	})
	if err != nil {
		return Lot{}, err
	}
	s.invalidateSummary(ctx)
	return result, nil
}

// invalidateSummary bumps the summary cache version after a mutation. The
// bump is best effort: a stale summary self-heals on TTL expiry, so a Redis
// failure must not fail the ledger write that already committed.
func (s *Service) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		slog.Warn("bump summary cache version", slog.Any("error", err))
	}
}

func indexByID(collection []Lot, id int64) int {
	for i := range collection {
		if collection[i].ID == id {
			return i
		}
	}
	return -1
}

func collectionPointers(collection []Lot) []*Lot {
	ptrs := make([]*Lot, len(collection))
	for i := range collection {
		ptrs[i] = &collection[i]
	}
	return ptrs
}

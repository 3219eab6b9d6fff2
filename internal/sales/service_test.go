package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/merx-ops/merx/internal/lots"
)

type memorySaleRepo struct {
	sales  map[int64]SaleOrder
	nextID int64
}

func newMemorySaleRepo() *memorySaleRepo {
	return &memorySaleRepo{sales: make(map[int64]SaleOrder), nextID: 1}
}

func (m *memorySaleRepo) Create(_ context.Context, sale SaleOrder) (int64, error) {
	id := m.nextID
	m.nextID++
	sale.ID = id
	m.sales[id] = sale
	return id, nil
}

func (m *memorySaleRepo) Update(_ context.Context, sale SaleOrder) error {
	if _, ok := m.sales[sale.ID]; !ok {
		return ErrNotFound
	}
	m.sales[sale.ID] = sale
	return nil
}

func (m *memorySaleRepo) SetAllocations(_ context.Context, id int64, allocations []lots.Allocation) error {
	sale, ok := m.sales[id]
	if !ok {
		return ErrNotFound
	}
	sale.Allocations = allocations
	m.sales[id] = sale
	return nil
}

func (m *memorySaleRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.sales[id]; !ok {
		return ErrNotFound
	}
	delete(m.sales, id)
	return nil
}

func (m *memorySaleRepo) Get(_ context.Context, id int64) (SaleOrder, error) {
	sale, ok := m.sales[id]
	if !ok {
		return SaleOrder{}, ErrNotFound
	}
	return sale, nil
}

func (m *memorySaleRepo) List(_ context.Context, status Status) ([]SaleOrder, error) {
	var out []SaleOrder
	for _, sale := range m.sales {
		if status != "" && sale.Status != status {
			continue
		}
		out = append(out, sale)
	}
	return out, nil
}

type fakeLedger struct {
	result   lots.AllocationResult
	allocs   []string
	reversed [][]lots.Allocation
}

func (f *fakeLedger) Allocate(_ context.Context, sku string, _ float64) (lots.AllocationResult, error) {
	f.allocs = append(f.allocs, sku)
	return f.result, nil
}

func (f *fakeLedger) Reverse(_ context.Context, allocations []lots.Allocation) error {
	f.reversed = append(f.reversed, allocations)
	return nil
}

func saleInput(status Status) Input {
	return Input{
		Number:      "SO-1",
		SKU:         "SKU-A",
		ProductName: "Amber Vase",
		Customer:    "Dana",
		Qty:         4,
		UnitPrice:   25,
		Status:      status,
		SoldAt:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateAwaitingDoesNotTouchLedger(t *testing.T) {
	repo := newMemorySaleRepo()
	ledger := &fakeLedger{}
	svc := NewService(repo, ledger)

	sale, warning, err := svc.Create(context.Background(), saleInput(StatusAwaiting))
	require.NoError(t, err)
	require.Nil(t, warning)
	require.Empty(t, ledger.allocs)
	require.Empty(t, sale.Allocations)
}

func TestCreateCompletedAllocatesAndStoresBreakdown(t *testing.T) {
	repo := newMemorySaleRepo()
	ledger := &fakeLedger{result: lots.AllocationResult{
		Allocations:  []lots.Allocation{{LotID: 100, QtyTaken: 4, BalanceBefore: 10, BalanceAfter: 6}},
		QtyAllocated: 4,
	}}
	svc := NewService(repo, ledger)

	sale, warning, err := svc.Create(context.Background(), saleInput(StatusCompleted))
	require.NoError(t, err)
	require.Nil(t, warning)
	require.Equal(t, []string{"SKU-A"}, ledger.allocs)

	stored, err := repo.Get(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, sale.Allocations, stored.Allocations)
	require.Equal(t, int64(100), stored.Allocations[0].LotID)
}

func TestShortfallReturnsWarningButCommits(t *testing.T) {
	repo := newMemorySaleRepo()
	ledger := &fakeLedger{result: lots.AllocationResult{
		Allocations:  []lots.Allocation{{LotID: 100, QtyTaken: 2, BalanceBefore: 2, BalanceAfter: 0}},
		QtyAllocated: 2,
		QtyShort:     2,
	}}
	svc := NewService(repo, ledger)

	sale, warning, err := svc.Create(context.Background(), saleInput(StatusCompleted))
	require.NoError(t, err)
	require.NotNil(t, warning)
	require.Equal(t, "SKU-A", warning.SKU)
	require.Equal(t, 2.0, warning.QtyShort)

	stored, err := repo.Get(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.Len(t, stored.Allocations, 1)
}

func TestUpdateLeavingCompletedReversesThenClears(t *testing.T) {
	repo := newMemorySaleRepo()
	ledger := &fakeLedger{result: lots.AllocationResult{
		Allocations:  []lots.Allocation{{LotID: 100, QtyTaken: 4, BalanceBefore: 10, BalanceAfter: 6}},
		QtyAllocated: 4,
	}}
	svc := NewService(repo, ledger)

	sale, _, err := svc.Create(context.Background(), saleInput(StatusCompleted))
	require.NoError(t, err)

	updated, warning, err := svc.Update(context.Background(), sale.ID, saleInput(StatusCancelled))
	require.NoError(t, err)
	require.Nil(t, warning)
	require.Len(t, ledger.reversed, 1)
	require.Equal(t, sale.Allocations, ledger.reversed[0])
	require.Empty(t, updated.Allocations)

	stored, err := repo.Get(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Empty(t, stored.Allocations)
}

func TestUpdateStayingCompletedKeepsAllocations(t *testing.T) {
	repo := newMemorySaleRepo()
	ledger := &fakeLedger{result: lots.AllocationResult{
		Allocations:  []lots.Allocation{{LotID: 100, QtyTaken: 4, BalanceBefore: 10, BalanceAfter: 6}},
		QtyAllocated: 4,
	}}
	svc := NewService(repo, ledger)

	sale, _, err := svc.Create(context.Background(), saleInput(StatusCompleted))
	require.NoError(t, err)

	edited := saleInput(StatusCompleted)
	edited.Customer = "Dana Ruiz"
	updated, warning, err := svc.Update(context.Background(), sale.ID, edited)
	require.NoError(t, err)
	require.Nil(t, warning)
	require.Len(t, ledger.allocs, 1, "no second allocation")
	require.Empty(t, ledger.reversed)
	require.Equal(t, sale.Allocations, updated.Allocations)
}

func TestUpdateNewlyCompletedAllocates(t *testing.T) {
	repo := newMemorySaleRepo()
	ledger := &fakeLedger{result: lots.AllocationResult{
		Allocations:  []lots.Allocation{{LotID: 7, QtyTaken: 4, BalanceBefore: 5, BalanceAfter: 1}},
		QtyAllocated: 4,
	}}
	svc := NewService(repo, ledger)

	sale, _, err := svc.Create(context.Background(), saleInput(StatusInTransit))
	require.NoError(t, err)
	require.Empty(t, ledger.allocs)

	updated, warning, err := svc.Update(context.Background(), sale.ID, saleInput(StatusCompleted))
	require.NoError(t, err)
	require.Nil(t, warning)
	require.Equal(t, []string{"SKU-A"}, ledger.allocs)
	require.Len(t, updated.Allocations, 1)
}

func TestDeleteCompletedReversesFirst(t *testing.T) {
	repo := newMemorySaleRepo()
	ledger := &fakeLedger{result: lots.AllocationResult{
		Allocations:  []lots.Allocation{{LotID: 100, QtyTaken: 4, BalanceBefore: 10, BalanceAfter: 6}},
		QtyAllocated: 4,
	}}
	svc := NewService(repo, ledger)

	sale, _, err := svc.Create(context.Background(), saleInput(StatusCompleted))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), sale.ID))
	require.Len(t, ledger.reversed, 1)
	_, err = repo.Get(context.Background(), sale.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAwaitingSkipsLedger(t *testing.T) {
	repo := newMemorySaleRepo()
	ledger := &fakeLedger{}
	svc := NewService(repo, ledger)

	sale, _, err := svc.Create(context.Background(), saleInput(StatusAwaiting))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), sale.ID))
	require.Empty(t, ledger.reversed)
}

func TestCreateRejectsUnknownStatus(t *testing.T) {
	svc := NewService(newMemorySaleRepo(), &fakeLedger{})
	_, _, err := svc.Create(context.Background(), saleInput(Status("SHIPPED")))
	require.ErrorIs(t, err, ErrInvalidStatus)
}

// memoryLotRepo drives the real lot service without Postgres for the
// end-to-end lifecycle test below.
type memoryLotRepo struct {
	collection []lots.Lot
}

func (m *memoryLotRepo) WithTx(ctx context.Context, fn func(context.Context, lots.TxStore) error) error {
	return fn(ctx, m)
}

func (m *memoryLotRepo) LoadAll(_ context.Context) ([]lots.Lot, error) {
	out := make([]lots.Lot, len(m.collection))
	copy(out, m.collection)
	return out, nil
}

func (m *memoryLotRepo) SaveAll(_ context.Context, collection []lots.Lot) error {
	m.collection = make([]lots.Lot, len(collection))
	copy(m.collection, collection)
	return nil
}

func TestSaleLifecycleAgainstRealLedger(t *testing.T) {
	ctx := context.Background()
	lotRepo := &memoryLotRepo{}
	ledger := lots.NewService(lotRepo, nil)
	repo := newMemorySaleRepo()
	svc := NewService(repo, ledger)

	_, err := ledger.SyncCompletedPurchase(ctx, lots.PurchaseSnapshot{
		PurchaseID:    100,
		SKU:           "SKU-A",
		ProductName:   "Amber Vase",
		OrderRef:      "PO-100",
		PurchaseDate:  time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		FinalUnitCost: 6,
		Qty:           10,
	})
	require.NoError(t, err)

	sale, warning, err := svc.Create(ctx, saleInput(StatusCompleted))
	require.NoError(t, err)
	require.Nil(t, warning)
	require.Equal(t, []lots.Allocation{{LotID: 100, QtyTaken: 4, BalanceBefore: 10, BalanceAfter: 6}}, sale.Allocations)
	require.Equal(t, 6.0, lotRepo.collection[0].Balance)

	// Cancelling restores the exact quantities drawn.
	_, _, err = svc.Update(ctx, sale.ID, saleInput(StatusCancelled))
	require.NoError(t, err)
	require.Equal(t, 10.0, lotRepo.collection[0].Balance)
}

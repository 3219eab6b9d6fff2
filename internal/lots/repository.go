package lots

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the lot collection in PostgreSQL. The store contract is
// deliberately coarse: load the whole collection, save the whole collection.
// Collections are small enough for a linear scan, and whole-collection writes
// keep every ledger mutation a single read-modify-write cycle.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxStore exposes the lot store contract inside a transaction.
type TxStore interface {
	LoadAll(ctx context.Context) ([]Lot, error)
	SaveAll(ctx context.Context, collection []Lot) error
}

type txStore struct {
	tx pgx.Tx
}

// WithTx runs the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txStore{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const lotColumns = `id, sku, product_name, brand, supplier, order_ref, tracking_ref, purchase_date, unit_cost, initial_qty, balance, status, created_at, updated_at, archived_at`

// LoadAll reads the full lot collection outside a transaction, for listing
// and valuation paths.
func (r *Repository) LoadAll(ctx context.Context) ([]Lot, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lotColumns+` FROM lots ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLots(rows)
}

func (s *txStore) LoadAll(ctx context.Context) ([]Lot, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+lotColumns+` FROM lots ORDER BY id FOR UPDATE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLots(rows)
}

// SaveAll upserts every lot in the collection. Lots are never physically
// deleted, so an upsert of the full collection is a faithful write-all.
func (s *txStore) SaveAll(ctx context.Context, collection []Lot) error {
	for _, lot := range collection {
		_, err := s.tx.Exec(ctx, `INSERT INTO lots (`+lotColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
	sku = EXCLUDED.sku,
	product_name = EXCLUDED.product_name,
	brand = EXCLUDED.brand,
	supplier = EXCLUDED.supplier,
	order_ref = EXCLUDED.order_ref,
	tracking_ref = EXCLUDED.tracking_ref,
	purchase_date = EXCLUDED.purchase_date,
	unit_cost = EXCLUDED.unit_cost,
	initial_qty = EXCLUDED.initial_qty,
	balance = EXCLUDED.balance,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at,
	archived_at = EXCLUDED.archived_at`,
			lot.ID, lot.SKU, lot.ProductName, lot.Brand, lot.Supplier, lot.OrderRef, lot.TrackingRef,
			lot.PurchaseDate, lot.UnitCost, lot.InitialQty, lot.Balance, string(lot.Status),
			lot.CreatedAt, lot.UpdatedAt, lot.ArchivedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveValuationSnapshot appends one valuation history row.
func (r *Repository) SaveValuationSnapshot(ctx context.Context, snap ValuationSnapshot) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO valuation_snapshots (taken_at, total_qty, total_value, active_lots, low_stock_lots)
VALUES ($1, $2, $3, $4, $5)`,
		snap.TakenAt, snap.TotalQty, snap.TotalValue, snap.ActiveLots, snap.LowStockLots)
	return err
}

func scanLots(rows pgx.Rows) ([]Lot, error) {
	var collection []Lot
	for rows.Next() {
		var lot Lot
		var status string
		if err := rows.Scan(&lot.ID, &lot.SKU, &lot.ProductName, &lot.Brand, &lot.Supplier,
			&lot.OrderRef, &lot.TrackingRef, &lot.PurchaseDate, &lot.UnitCost, &lot.InitialQty,
			&lot.Balance, &status, &lot.CreatedAt, &lot.UpdatedAt, &lot.ArchivedAt); err != nil {
			return nil, err
		}
		lot.Status = LotStatus(status)
		collection = append(collection, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return collection, nil
}

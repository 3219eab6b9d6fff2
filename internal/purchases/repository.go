package purchases

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for purchase orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const purchaseColumns = `id, number, sku, product_name, brand, supplier, tracking_ref, qty, unit_price, discount, freight, tax, status, ordered_at, created_at, updated_at`

// Create inserts an order and returns its id.
func (r *Repository) Create(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO purchase_orders (number, sku, product_name, brand, supplier, tracking_ref, qty, unit_price, discount, freight, tax, status, ordered_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`,
		po.Number, po.SKU, po.ProductName, po.Brand, po.Supplier, po.TrackingRef,
		po.Qty, po.UnitPrice, po.Discount, po.Freight, po.Tax, string(po.Status),
		po.OrderedAt, po.CreatedAt, po.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, mapUniqueViolation(err)
	}
	return id, nil
}

// Update overwrites every mutable field of an order.
func (r *Repository) Update(ctx context.Context, po PurchaseOrder) error {
	tag, err := r.pool.Exec(ctx, `UPDATE purchase_orders SET number=$2, sku=$3, product_name=$4, brand=$5, supplier=$6, tracking_ref=$7, qty=$8, unit_price=$9, discount=$10, freight=$11, tax=$12, status=$13, ordered_at=$14, updated_at=$15 WHERE id=$1`,
		po.ID, po.Number, po.SKU, po.ProductName, po.Brand, po.Supplier, po.TrackingRef,
		po.Qty, po.UnitPrice, po.Discount, po.Freight, po.Tax, string(po.Status),
		po.OrderedAt, po.UpdatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an order row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one order.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchase_orders WHERE id=$1`, id)
	po, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// List returns orders, optionally narrowed to one status, newest first.
func (r *Repository) List(ctx context.Context, status Status) ([]PurchaseOrder, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchase_orders ORDER BY id DESC`
	args := []any{}
	if status != "" {
		query = `SELECT ` + purchaseColumns + ` FROM purchase_orders WHERE status=$1 ORDER BY id DESC`
		args = append(args, string(status))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanPurchase(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	err := row.Scan(&po.ID, &po.Number, &po.SKU, &po.ProductName, &po.Brand, &po.Supplier,
		&po.TrackingRef, &po.Qty, &po.UnitPrice, &po.Discount, &po.Freight, &po.Tax,
		&status, &po.OrderedAt, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Status = Status(status)
	return po, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateNumber
	}
	return err
}

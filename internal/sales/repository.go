package sales

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merx-ops/merx/internal/lots"
)

// Repository provides PostgreSQL backed persistence for sale orders. The
// allocation list lives on the sale row as JSONB so a sale carries its own
// reversal input.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const saleColumns = `id, number, sku, product_name, customer, qty, unit_price, status, allocations, sold_at, created_at, updated_at`

// Create inserts a sale and returns its id.
func (r *Repository) Create(ctx context.Context, sale SaleOrder) (int64, error) {
	allocations, err := marshalAllocations(sale.Allocations)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO sale_orders (number, sku, product_name, customer, qty, unit_price, status, allocations, sold_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		sale.Number, sale.SKU, sale.ProductName, sale.Customer, sale.Qty, sale.UnitPrice,
		string(sale.Status), allocations, sale.SoldAt, sale.CreatedAt, sale.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, mapUniqueViolation(err)
	}
	return id, nil
}

// Update overwrites every mutable field of a sale, allocations included.
func (r *Repository) Update(ctx context.Context, sale SaleOrder) error {
	allocations, err := marshalAllocations(sale.Allocations)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE sale_orders SET number=$2, sku=$3, product_name=$4, customer=$5, qty=$6, unit_price=$7, status=$8, allocations=$9, sold_at=$10, updated_at=$11 WHERE id=$1`,
		sale.ID, sale.Number, sale.SKU, sale.ProductName, sale.Customer, sale.Qty,
		sale.UnitPrice, string(sale.Status), allocations, sale.SoldAt, sale.UpdatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAllocations stores the allocation list recorded at completion.
func (r *Repository) SetAllocations(ctx context.Context, id int64, allocations []lots.Allocation) error {
	encoded, err := marshalAllocations(allocations)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE sale_orders SET allocations=$2, updated_at=NOW() WHERE id=$1`, id, encoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a sale row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sale_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one sale.
func (r *Repository) Get(ctx context.Context, id int64) (SaleOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sale_orders WHERE id=$1`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SaleOrder{}, ErrNotFound
		}
		return SaleOrder{}, err
	}
	return sale, nil
}

// List returns sales, optionally narrowed to one status, newest first.
func (r *Repository) List(ctx context.Context, status Status) ([]SaleOrder, error) {
	query := `SELECT ` + saleColumns + ` FROM sale_orders ORDER BY id DESC`
	args := []any{}
	if status != "" {
		query = `SELECT ` + saleColumns + ` FROM sale_orders WHERE status=$1 ORDER BY id DESC`
		args = append(args, string(status))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []SaleOrder
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func scanSale(row pgx.Row) (SaleOrder, error) {
	var sale SaleOrder
	var status string
	var allocations []byte
	err := row.Scan(&sale.ID, &sale.Number, &sale.SKU, &sale.ProductName, &sale.Customer,
		&sale.Qty, &sale.UnitPrice, &status, &allocations, &sale.SoldAt, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return SaleOrder{}, err
	}
	sale.Status = Status(status)
	if len(allocations) > 0 {
		if err := json.Unmarshal(allocations, &sale.Allocations); err != nil {
			return SaleOrder{}, err
		}
	}
	return sale, nil
}

func marshalAllocations(allocations []lots.Allocation) ([]byte, error) {
	if len(allocations) == 0 {
		return []byte(`[]`), nil
	}
	return json.Marshal(allocations)
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateNumber
	}
	return err
}

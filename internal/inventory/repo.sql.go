package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nusapos/nusapos/internal/platform/db"
	"github.com/nusapos/nusapos/internal/platform/httpx"
)

// ErrInsufficientStock is returned when an adjustment would take stock negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository persists products and stock movements.
type Repository interface {
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id int64) error
	Adjust(ctx context.Context, adj *Adjustment) error
	ListAdjustments(ctx context.Context, productID int64, limit int) ([]Adjustment, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectProduct = `
SELECT id, sku, name, category, unit, price, stock, min_stock, is_active, created_at, updated_at
FROM products`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Unit, &p.Price, &p.Stock, &p.MinStock,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGRepository) ListProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error) {
	where := " WHERE 1=1"
	args := []any{}
	idx := 1
	if f.Query != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR sku ILIKE $%d)", idx, idx)
		args = append(args, "%"+f.Query+"%")
		idx++
	}
	if f.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", idx)
		args = append(args, f.Category)
		idx++
	}
	if f.LowStock {
		where += " AND stock <= min_stock"
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.PerPage
	if limit <= 0 {
		limit = 50
	}
	offset := 0
	if f.Page > 1 {
		offset = (f.Page - 1) * limit
	}
	query := selectProduct + where + fmt.Sprintf(" ORDER BY name LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (r *PGRepository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, selectProduct+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PGRepository) CreateProduct(ctx context.Context, p *Product) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, category, unit, price, stock, min_stock, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, updated_at`,
		p.SKU, p.Name, p.Category, p.Unit, p.Price, p.Stock, p.MinStock, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return httpx.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *PGRepository) UpdateProduct(ctx context.Context, p *Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET name=$2, category=$3, unit=$4, price=$5, min_stock=$6, is_active=$7, updated_at=NOW()
WHERE id=$1`, p.ID, p.Name, p.Category, p.Unit, p.Price, p.MinStock, p.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *PGRepository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Adjust applies a stock delta and records the movement atomically. The row
// lock keeps concurrent adjustments from racing past zero.
func (r *PGRepository) Adjust(ctx context.Context, adj *Adjustment) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var stock float64
		err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, adj.ProductID).Scan(&stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return httpx.ErrNotFound
			}
			return err
		}
		if stock+adj.Delta < 0 {
			return ErrInsufficientStock
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id=$1`, adj.ProductID, adj.Delta); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `INSERT INTO stock_adjustments (product_id, delta, reason, note, actor_id)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
			adj.ProductID, adj.Delta, string(adj.Reason), adj.Note, adj.ActorID,
		).Scan(&adj.ID, &adj.CreatedAt)
	})
}

func (r *PGRepository) ListAdjustments(ctx context.Context, productID int64, limit int) ([]Adjustment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, delta, reason, note, actor_id, created_at
FROM stock_adjustments WHERE product_id=$1 ORDER BY created_at DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var adjs []Adjustment
	for rows.Next() {
		var a Adjustment
		var reason string
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Delta, &reason, &a.Note, &a.ActorID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Reason = AdjustmentReason(reason)
		adjs = append(adjs, a)
	}
	return adjs, rows.Err()
}

package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nusapos/nusapos/internal/platform/db"
	"github.com/nusapos/nusapos/internal/platform/httpx"
)

// Repository persists sales.
type Repository interface {
	List(ctx context.Context, f SaleFilter) ([]Sale, int64, error)
	Get(ctx context.Context, id int64) (*Sale, error)
	Create(ctx context.Context, sale *Sale) error
	Update(ctx context.Context, sale *Sale) error
	UpdateStatus(ctx context.Context, id int64, status SaleStatus) error
	Delete(ctx context.Context, id int64) error
	Summarize(ctx context.Context, f SaleFilter) (*Summary, error)
	ExportRows(ctx context.Context, f SaleFilter) ([]Sale, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectSale = `
SELECT s.id, s.number, s.status, s.outlet_code, s.cashier_id, COALESCE(u.name, ''),
       s.subtotal, s.discount, s.tax, s.total, s.note, s.sold_at, s.created_at, s.updated_at
FROM sales s
LEFT JOIN users u ON u.id = s.cashier_id`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.Number, &s.Status, &s.OutletCode, &s.CashierID, &s.CashierName,
		&s.Subtotal, &s.Discount, &s.Tax, &s.Total, &s.Note, &s.SoldAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGRepository) List(ctx context.Context, f SaleFilter) ([]Sale, int64, error) {
	where := " WHERE 1=1"
	args := []any{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND s.status = $%d", idx)
		args = append(args, string(f.Status))
		idx++
	}
	if f.OutletCode != "" {
		where += fmt.Sprintf(" AND s.outlet_code = $%d", idx)
		args = append(args, f.OutletCode)
		idx++
	}
	if !f.From.IsZero() {
		where += fmt.Sprintf(" AND s.sold_at >= $%d", idx)
		args = append(args, f.From)
		idx++
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(" AND s.sold_at < $%d", idx)
		args = append(args, f.To)
		idx++
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sales s"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if f.Page > 1 {
		offset = (f.Page - 1) * limit
	}
	query := selectSale + where + fmt.Sprintf(" ORDER BY s.sold_at DESC, s.id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

func (r *PGRepository) Get(ctx context.Context, id int64) (*Sale, error) {
	s, err := scanSale(r.pool.QueryRow(ctx, selectSale+" WHERE s.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	lines, err := r.listLines(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Lines = lines
	return s, nil
}

func (r *PGRepository) listLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, product_id, name, qty, unit_price, discount, line_total
FROM sale_lines WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []SaleLine
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.ProductID, &l.Name, &l.Qty, &l.UnitPrice, &l.Discount, &l.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, sale *Sale) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO sales (number, status, outlet_code, cashier_id, subtotal, discount, tax, total, note, sold_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at, updated_at`,
			sale.Number, string(sale.Status), sale.OutletCode, sale.CashierID,
			sale.Subtotal, sale.Discount, sale.Tax, sale.Total, sale.Note, sale.SoldAt,
		).Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt)
		if err != nil {
			return err
		}
		for i := range sale.Lines {
			line := &sale.Lines[i]
			line.SaleID = sale.ID
			err := tx.QueryRow(ctx, `INSERT INTO sale_lines (sale_id, product_id, name, qty, unit_price, discount, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
				line.SaleID, line.ProductID, line.Name, line.Qty, line.UnitPrice, line.Discount, line.LineTotal,
			).Scan(&line.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PGRepository) Update(ctx context.Context, sale *Sale) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE sales SET outlet_code=$2, subtotal=$3, discount=$4, tax=$5, total=$6, note=$7, sold_at=$8, updated_at=NOW()
WHERE id=$1`, sale.ID, sale.OutletCode, sale.Subtotal, sale.Discount, sale.Tax, sale.Total, sale.Note, sale.SoldAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sale_lines WHERE sale_id=$1`, sale.ID); err != nil {
			return err
		}
		for i := range sale.Lines {
			line := &sale.Lines[i]
			line.SaleID = sale.ID
			err := tx.QueryRow(ctx, `INSERT INTO sale_lines (sale_id, product_id, name, qty, unit_price, discount, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
				line.SaleID, line.ProductID, line.Name, line.Qty, line.UnitPrice, line.Discount, line.LineTotal,
			).Scan(&line.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, status SaleStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sales SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sales WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *PGRepository) Summarize(ctx context.Context, f SaleFilter) (*Summary, error) {
	where := " WHERE s.status <> 'VOID'"
	args := []any{}
	idx := 1
	if f.OutletCode != "" {
		where += fmt.Sprintf(" AND s.outlet_code = $%d", idx)
		args = append(args, f.OutletCode)
		idx++
	}
	if !f.From.IsZero() {
		where += fmt.Sprintf(" AND s.sold_at >= $%d", idx)
		args = append(args, f.From)
		idx++
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(" AND s.sold_at < $%d", idx)
		args = append(args, f.To)
		idx++
	}
	var sum Summary
	sum.OutletCode = f.OutletCode
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(s.subtotal),0), COALESCE(SUM(s.discount),0), COALESCE(SUM(s.tax),0), COALESCE(SUM(s.total),0)
FROM sales s`+where, args...).Scan(&sum.Count, &sum.GrossTotal, &sum.Discount, &sum.Tax, &sum.NetTotal)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (r *PGRepository) ExportRows(ctx context.Context, f SaleFilter) ([]Sale, error) {
	f.Page = 0
	f.PerPage = 10000
	sales, _, err := r.List(ctx, f)
	return sales, err
}

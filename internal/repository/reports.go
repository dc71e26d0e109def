package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pharmapos/internal/domain"
)

// SalesCounts holds the raw numbers behind the dashboard summary.
type SalesCounts struct {
	Orders       int
	Revenue      float64
	TodayOrders  int
	ThisWeek     int
	PreviousWeek int
}

// SalesCounts counts sales in [from, to) plus the rolling windows the
// dashboard compares: today, the last seven days and the seven before that.
func (r *Repository) SalesCounts(ctx context.Context, from, to, now time.Time) (SalesCounts, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)

	var counts SalesCounts
	if err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE date >= $1 AND date < $2)::int,
			COALESCE(SUM(total) FILTER (WHERE date >= $1 AND date < $2), 0)::double precision,
			COUNT(*) FILTER (WHERE date >= $3)::int,
			COUNT(*) FILTER (WHERE date > $4)::int,
			COUNT(*) FILTER (WHERE date >= $5 AND date <= $4)::int
		FROM sales
	`, from, to, startOfDay, weekAgo, twoWeeksAgo).Scan(
		&counts.Orders,
		&counts.Revenue,
		&counts.TodayOrders,
		&counts.ThisWeek,
		&counts.PreviousWeek,
	); err != nil {
		return SalesCounts{}, fmt.Errorf("sales summary: %w", err)
	}
	return counts, nil
}

func (r *Repository) DailySales(ctx context.Context, from, to time.Time) ([]domain.DailySales, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			TO_CHAR(DATE_TRUNC('day', s.date), 'YYYY-MM-DD') AS day,
			COUNT(*)::int,
			COALESCE(SUM(i.items), 0)::int,
			COALESCE(SUM(s.subtotal), 0)::double precision,
			COALESCE(SUM(s.discount), 0)::double precision,
			COALESCE(SUM(s.total), 0)::double precision
		FROM sales s
		LEFT JOIN (
			SELECT sale_id, SUM(quantity) AS items
			FROM sale_items
			GROUP BY sale_id
		) i ON i.sale_id = s.id
		WHERE s.date >= $1 AND s.date < $2
		GROUP BY day
		ORDER BY day ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	defer rows.Close()

	days := make([]domain.DailySales, 0)
	for rows.Next() {
		var d domain.DailySales
		if err := rows.Scan(&d.Day, &d.Orders, &d.ItemsSold, &d.Subtotal, &d.Discount, &d.Revenue); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily sales: %w", err)
	}
	return days, nil
}

func (r *Repository) CategoryStock(ctx context.Context) ([]domain.CategoryStock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			COALESCE(NULLIF(BTRIM(category), ''), $1) AS label,
			COUNT(*)::int,
			COALESCE(SUM(stock), 0)::int,
			COALESCE(SUM(stock * price), 0)::double precision
		FROM products
		GROUP BY label
		ORDER BY label ASC
	`, domain.UncategorizedLabel)
	if err != nil {
		return nil, fmt.Errorf("category stock: %w", err)
	}
	defer rows.Close()

	list := make([]domain.CategoryStock, 0)
	for rows.Next() {
		var c domain.CategoryStock
		if err := rows.Scan(&c.Category, &c.ProductCount, &c.TotalStock, &c.StockValue); err != nil {
			return nil, fmt.Errorf("scan category stock: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category stock: %w", err)
	}
	return list, nil
}

// TopSellers ranks products by quantity sold in [from, to). Lines whose
// product was deleted are grouped under their recorded name.
func (r *Repository) TopSellers(ctx context.Context, from, to time.Time, limit int) ([]domain.TopSeller, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			si.product_id,
			COALESCE(p.name, MAX(si.name)) AS name,
			SUM(si.quantity)::int AS qty,
			COALESCE(SUM(si.quantity * si.price), 0)::double precision
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		LEFT JOIN products p ON p.id = si.product_id
		WHERE s.date >= $1 AND s.date < $2
		GROUP BY si.product_id, p.name, CASE WHEN si.product_id IS NULL THEN si.name END
		ORDER BY qty DESC, name ASC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top sellers: %w", err)
	}
	defer rows.Close()

	list := make([]domain.TopSeller, 0, limit)
	for rows.Next() {
		var (
			row       domain.TopSeller
			productID sql.NullInt64
		)
		if err := rows.Scan(&productID, &row.Name, &row.Quantity, &row.Revenue); err != nil {
			return nil, fmt.Errorf("scan top seller: %w", err)
		}
		if productID.Valid {
			value := productID.Int64
			row.ProductID = &value
		}
		list = append(list, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top sellers: %w", err)
	}
	return list, nil
}

func (r *Repository) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+productColumns+`
		FROM products
		WHERE stock <= $1
		ORDER BY stock ASC, name ASC
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	return collectProducts(rows, "low stock")
}

// ExpiringBefore lists products with an expiry date on or before the cutoff,
// soonest first.
func (r *Repository) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+productColumns+`
		FROM products
		WHERE expiry_date IS NOT NULL AND expiry_date <= $1::date
		ORDER BY expiry_date ASC, name ASC
	`, cutoff.Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("expiring products: %w", err)
	}
	return collectProducts(rows, "expiring products")
}

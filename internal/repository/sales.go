package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"pharmapos/internal/domain"
	"pharmapos/internal/money"

	"github.com/jackc/pgx/v5"
)

type lockedProduct struct {
	name  string
	unit  string
	price float64
	stock int
}

// CreateSale commits a sale in one transaction. Products are locked in id
// order, priced from their current row, and their stock is reduced by the
// part of each line the cart had not reserved yet. Nothing is written when
// any line fails.
func (r *Repository) CreateSale(ctx context.Context, lines []domain.SaleLineInput, discount float64) (domain.Sale, error) {
	if len(lines) == 0 {
		return domain.Sale{}, fmt.Errorf("create sale: no items")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin sale tx: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := lockProductsTx(ctx, tx, saleProductIDs(lines))
	if err != nil {
		return domain.Sale{}, err
	}

	priced, err := priceLines(lines, locked)
	if err != nil {
		return domain.Sale{}, err
	}

	if err := decrementStockTx(ctx, tx, priced); err != nil {
		return domain.Sale{}, err
	}

	moneyLines := make([]money.Line, 0, len(priced))
	for _, line := range priced {
		moneyLines = append(moneyLines, money.Line{Price: line.Price, Quantity: line.Quantity})
	}
	totals := money.Compute(moneyLines, discount)

	sale := domain.Sale{
		Total:    totals.Total,
		Subtotal: totals.Subtotal,
		Discount: totals.Discount,
		Items:    make([]domain.SaleItem, 0, len(priced)),
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO sales (total, subtotal, discount)
		VALUES ($1, $2, $3)
		RETURNING id, date
	`, sale.Total, sale.Subtotal, sale.Discount).Scan(&sale.ID, &sale.Date); err != nil {
		return domain.Sale{}, fmt.Errorf("insert sale: %w", err)
	}

	for i, line := range priced {
		productID := line.ProductID
		item := domain.SaleItem{
			SaleID:    sale.ID,
			ProductID: &productID,
			Quantity:  line.Quantity,
			Price:     line.Price,
			Name:      line.Name,
			Unit:      line.Unit,
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, price, name, unit)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, sale.ID, line.ProductID, line.Quantity, line.Price, line.Name, line.Unit).Scan(&item.ID); err != nil {
			return domain.Sale{}, fmt.Errorf("insert sale item %d: %w", i+1, err)
		}
		sale.Items = append(sale.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Sale{}, fmt.Errorf("commit sale tx: %w", err)
	}
	return sale, nil
}

func saleProductIDs(lines []domain.SaleLineInput) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func lockProductsTx(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*lockedProduct, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, name, unit, price::double precision, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock sale products: %w", err)
	}
	defer rows.Close()

	locked := make(map[int64]*lockedProduct, len(ids))
	for rows.Next() {
		var (
			id int64
			p  lockedProduct
		)
		if err := rows.Scan(&id, &p.name, &p.unit, &p.price, &p.stock); err != nil {
			return nil, fmt.Errorf("scan sale product: %w", err)
		}
		locked[id] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale products: %w", err)
	}
	return locked, nil
}

// priceLines resolves each cart line against the locked rows and checks the
// unreserved part of every line against the remaining stock.
func priceLines(lines []domain.SaleLineInput, locked map[int64]*lockedProduct) ([]domain.PricedLine, error) {
	remaining := make(map[int64]int, len(locked))
	for id, p := range locked {
		remaining[id] = p.stock
	}

	priced := make([]domain.PricedLine, 0, len(lines))
	for _, line := range lines {
		p, ok := locked[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, ErrUnknownProduct)
		}
		reserved := min(max(line.ReservedQty, 0), line.Quantity)
		decrement := line.Quantity - reserved
		if decrement > remaining[line.ProductID] {
			return nil, fmt.Errorf("%s: %d requested, %d available: %w",
				p.name, decrement, remaining[line.ProductID], ErrInsufficientStock)
		}
		remaining[line.ProductID] -= decrement
		priced = append(priced, domain.PricedLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Decrement: decrement,
			Price:     p.price,
			Name:      p.name,
			Unit:      p.unit,
		})
	}
	return priced, nil
}

func decrementStockTx(ctx context.Context, tx pgx.Tx, lines []domain.PricedLine) error {
	totals := make(map[int64]int)
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if line.Decrement == 0 {
			continue
		}
		if _, ok := totals[line.ProductID]; !ok {
			ids = append(ids, line.ProductID)
		}
		totals[line.ProductID] += line.Decrement
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = NOW()
			WHERE id = $1
		`, id, totals[id]); err != nil {
			return fmt.Errorf("decrement stock for product %d: %w", id, err)
		}
	}
	return nil
}

// ListSales returns every sale newest first. Items are loaded with one
// extra query for the whole page.
func (r *Repository) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			id,
			total::double precision,
			subtotal::double precision,
			discount::double precision,
			date
		FROM sales
		ORDER BY date DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0)
	index := make(map[int64]int)
	ids := make([]int64, 0)
	for rows.Next() {
		sale, err := scanSaleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		index[sale.ID] = len(sales)
		ids = append(ids, sale.ID)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return sales, nil
	}
	items, err := r.listSaleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if i, ok := index[item.SaleID]; ok {
			sales[i].Items = append(sales[i].Items, item)
		}
	}
	return sales, nil
}

func (r *Repository) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT
			id,
			total::double precision,
			subtotal::double precision,
			discount::double precision,
			date
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSaleRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get sale %d: %w", id, err)
	}

	items, err := r.listSaleItems(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	sale.Items = append(sale.Items, items...)
	return &sale, nil
}

func (r *Repository) listSaleItems(ctx context.Context, saleIDs []int64) ([]domain.SaleItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, price::double precision, name, unit
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, id
	`, saleIDs)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0)
	for rows.Next() {
		var (
			item      domain.SaleItem
			productID sql.NullInt64
		)
		if err := rows.Scan(
			&item.ID,
			&item.SaleID,
			&productID,
			&item.Quantity,
			&item.Price,
			&item.Name,
			&item.Unit,
		); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		if productID.Valid {
			value := productID.Int64
			item.ProductID = &value
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale items: %w", err)
	}
	return items, nil
}

func scanSaleRow(row pgx.Row) (domain.Sale, error) {
	sale := domain.Sale{Items: []domain.SaleItem{}}
	if err := row.Scan(&sale.ID, &sale.Total, &sale.Subtotal, &sale.Discount, &sale.Date); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pharmapos/internal/domain"

	"github.com/jackc/pgx/v5"
)

// ProductFields is a validated product write. A nil Stock keeps the current
// stock on update and means zero on create.
type ProductFields struct {
	Name        string
	Description *string
	Category    string
	Price       float64
	Stock       *int
	Unit        string
	DefaultQty  int
	Photo       *string
	ExpiryDate  *string
}

func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+productColumns+` FROM products ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collectProducts(rows, "products")
}

func (r *Repository) ListProductsByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT`+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("list products by id: %w", err)
	}
	return collectProducts(rows, "products")
}

func (r *Repository) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProductRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &product, nil
}

func (r *Repository) CreateProduct(ctx context.Context, input ProductFields) (domain.Product, error) {
	stock := 0
	if input.Stock != nil {
		stock = *input.Stock
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (
			name,
			description,
			category,
			price,
			stock,
			unit,
			default_qty,
			photo,
			expiry_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::date)
		RETURNING`+productColumns,
		input.Name,
		optionalText(input.Description),
		strings.TrimSpace(input.Category),
		input.Price,
		stock,
		input.Unit,
		input.DefaultQty,
		optionalText(input.Photo),
		optionalText(input.ExpiryDate),
	)
	product, err := scanProductRow(row)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

// UpdateProduct locks the row before writing so a missing id is reported
// without touching anything.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, input ProductFields) (*domain.Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update product tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedID int64
	if err := tx.QueryRow(ctx, "SELECT id FROM products WHERE id = $1 FOR UPDATE", id).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load product for update: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE products
		SET
			name = $2,
			description = $3,
			category = $4,
			price = $5,
			stock = COALESCE($6, stock),
			unit = $7,
			default_qty = $8,
			photo = $9,
			expiry_date = $10::date,
			updated_at = NOW()
		WHERE id = $1
		RETURNING`+productColumns,
		id,
		input.Name,
		optionalText(input.Description),
		strings.TrimSpace(input.Category),
		input.Price,
		input.Stock,
		input.Unit,
		input.DefaultQty,
		optionalText(input.Photo),
		optionalText(input.ExpiryDate),
	)
	updated, err := scanProductRow(row)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update product tx: %w", err)
	}
	return &updated, nil
}

func (r *Repository) SetStock(ctx context.Context, id int64, stock int) (*domain.Product, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE products
		SET stock = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING`+productColumns, id, stock)
	product, err := scanProductRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("set stock for product %d: %w", id, err)
	}
	return &product, nil
}

// AdjustStock applies a relative change in a single statement. When no row
// comes back the product is either missing or would go below zero.
func (r *Repository) AdjustStock(ctx context.Context, id int64, delta int) (*domain.Product, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING`+productColumns, id, delta)
	product, err := scanProductRow(row)
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("adjust stock for product %d: %w", id, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check product %d: %w", id, err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("product %d by %d: %w", id, delta, ErrInsufficientStock)
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertProducts matches rows by case-insensitive name inside one
// transaction and returns how many were created and updated.
func (r *Repository) UpsertProducts(ctx context.Context, rows []ProductFields) (int, int, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created := 0
	updated := 0
	for _, line := range rows {
		name := strings.TrimSpace(line.Name)
		if name == "" {
			continue
		}

		var existingID int64
		err := tx.QueryRow(ctx, "SELECT id FROM products WHERE LOWER(name) = LOWER($1) ORDER BY id LIMIT 1", name).Scan(&existingID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, fmt.Errorf("query existing product %q: %w", name, err)
		}

		if errors.Is(err, pgx.ErrNoRows) {
			stock := 0
			if line.Stock != nil {
				stock = *line.Stock
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO products (
					name,
					description,
					category,
					price,
					stock,
					unit,
					default_qty,
					expiry_date
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date)
			`,
				name,
				optionalText(line.Description),
				strings.TrimSpace(line.Category),
				line.Price,
				stock,
				line.Unit,
				line.DefaultQty,
				optionalText(line.ExpiryDate),
			); err != nil {
				return 0, 0, fmt.Errorf("insert imported product %q: %w", name, err)
			}
			created++
			continue
		}

		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET
				name = $2,
				description = COALESCE($3, description),
				category = $4,
				price = $5,
				stock = COALESCE($6, stock),
				unit = $7,
				default_qty = $8,
				expiry_date = COALESCE($9::date, expiry_date),
				updated_at = NOW()
			WHERE id = $1
		`,
			existingID,
			name,
			optionalText(line.Description),
			strings.TrimSpace(line.Category),
			line.Price,
			line.Stock,
			line.Unit,
			line.DefaultQty,
			optionalText(line.ExpiryDate),
		); err != nil {
			return 0, 0, fmt.Errorf("update imported product %q: %w", name, err)
		}
		updated++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit import tx: %w", err)
	}
	return created, updated, nil
}

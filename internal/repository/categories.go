package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pharmapos/internal/domain"

	"github.com/jackc/pgx/v5"
)

func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at
		FROM categories
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		category, err := scanCategoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *Repository) CreateCategory(ctx context.Context, name string, description *string) (domain.Category, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO categories (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at
	`, name, optionalText(description))
	category, err := scanCategoryRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Category{}, fmt.Errorf("category %q: %w", name, ErrConflict)
		}
		return domain.Category{}, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

// DeleteCategory refuses to remove a category while any product still
// carries its name.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete category tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var name string
	if err := tx.QueryRow(ctx, "SELECT name FROM categories WHERE id = $1 FOR UPDATE", id).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("load category %d: %w", id, err)
	}

	var inUse int
	if err := tx.QueryRow(ctx, "SELECT COUNT(*)::int FROM products WHERE category = $1", name).Scan(&inUse); err != nil {
		return fmt.Errorf("count products in category %q: %w", name, err)
	}
	if inUse > 0 {
		return fmt.Errorf("category %q has %d products: %w", name, inUse, ErrCategoryInUse)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM categories WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete category tx: %w", err)
	}
	return nil
}

func scanCategoryRow(row pgx.Row) (domain.Category, error) {
	var (
		category    domain.Category
		description sql.NullString
	)
	if err := row.Scan(&category.ID, &category.Name, &description, &category.CreatedAt); err != nil {
		return domain.Category{}, err
	}
	category.Description = nullableString(description)
	return category, nil
}

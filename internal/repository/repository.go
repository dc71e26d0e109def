package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pharmapos/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrCategoryInUse     = errors.New("category is used by products")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownProduct    = errors.New("unknown product")
)

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool DB
}

func New(pool DB) *Repository {
	return &Repository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const productColumns = `
	id,
	name,
	description,
	category,
	price::double precision,
	stock,
	unit,
	default_qty,
	photo,
	TO_CHAR(expiry_date, 'YYYY-MM-DD'),
	created_at,
	updated_at`

func scanProductRow(row pgx.Row) (domain.Product, error) {
	var (
		product     domain.Product
		description sql.NullString
		category    sql.NullString
		photo       sql.NullString
		expiry      sql.NullString
	)
	if err := row.Scan(
		&product.ID,
		&product.Name,
		&description,
		&category,
		&product.Price,
		&product.Stock,
		&product.Unit,
		&product.DefaultQty,
		&photo,
		&expiry,
		&product.CreatedAt,
		&product.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	product.Category = strings.TrimSpace(category.String)
	if product.Category == "" {
		product.Category = domain.UncategorizedLabel
	}
	product.Description = nullableString(description)
	product.Photo = nullableString(photo)
	product.ExpiryDate = nullableString(expiry)
	return product, nil
}

func collectProducts(rows pgx.Rows, what string) ([]domain.Product, error) {
	defer rows.Close()
	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProductRow(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return products, nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

// optionalText stores blank strings as NULL.
func optionalText(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

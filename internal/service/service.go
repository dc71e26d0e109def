package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmapos/internal/domain"
	"pharmapos/internal/repository"
)

// Store is the persistence the service drives. *repository.Repository
// implements it.
type Store interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListProductsByIDs(ctx context.Context, ids []int64) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, input repository.ProductFields) (domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, input repository.ProductFields) (*domain.Product, error)
	SetStock(ctx context.Context, id int64, stock int) (*domain.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	UpsertProducts(ctx context.Context, rows []repository.ProductFields) (int, int, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, name string, description *string) (domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	CreateSale(ctx context.Context, lines []domain.SaleLineInput, discount float64) (domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)

	SalesCounts(ctx context.Context, from, to, now time.Time) (repository.SalesCounts, error)
	DailySales(ctx context.Context, from, to time.Time) ([]domain.DailySales, error)
	CategoryStock(ctx context.Context) ([]domain.CategoryStock, error)
	TopSellers(ctx context.Context, from, to time.Time, limit int) ([]domain.TopSeller, error)
	LowStock(ctx context.Context, threshold int) ([]domain.Product, error)
	ExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.Product, error)

	ResetData(ctx context.Context, plan domain.ResetPlan) error
}

// Notifier receives every change that open event streams should see.
type Notifier interface {
	Notify(eventType string, payload any)
}

type Options struct {
	LowStockLevel    int
	ExpiryWindowDays int
	Now              func() time.Time
}

type Service struct {
	store  Store
	notify Notifier
	opts   Options
}

func New(store Store, notifier Notifier, opts Options) *Service {
	if opts.LowStockLevel < 0 {
		opts.LowStockLevel = 0
	}
	if opts.ExpiryWindowDays <= 0 {
		opts.ExpiryWindowDays = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, notify: notifier, opts: opts}
}

// ValidationError reports bad input. Handlers answer it with 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

func normalizeNullable(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

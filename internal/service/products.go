package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmapos/internal/domain"
	"pharmapos/internal/events"
	"pharmapos/internal/repository"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.store.GetProductByID(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	fields, err := productFields(input)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.store.CreateProduct(ctx, fields)
	if err != nil {
		return domain.Product{}, err
	}
	s.notify.Notify(events.TypeProductUpdate, events.ProductUpdate{Product: product})
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, input domain.ProductInput) (*domain.Product, error) {
	fields, err := productFields(input)
	if err != nil {
		return nil, err
	}
	product, err := s.store.UpdateProduct(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(events.TypeProductUpdate, events.ProductUpdate{Product: *product})
	return product, nil
}

// SetStock overwrites the stock level. Negative values are stored as zero.
func (s *Service) SetStock(ctx context.Context, id int64, stock *int) (*domain.Product, error) {
	if stock == nil {
		return nil, invalid("stock", "stock is required")
	}
	product, err := s.store.SetStock(ctx, id, max(*stock, 0))
	if err != nil {
		return nil, err
	}
	s.notify.Notify(events.TypeProductUpdate, events.ProductUpdate{Product: *product})
	return product, nil
}

// AdjustStock adds delta to the stock level. It fails instead of going
// below zero.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta *int) (*domain.Product, error) {
	if delta == nil {
		return nil, invalid("delta", "delta is required")
	}
	product, err := s.store.AdjustStock(ctx, id, *delta)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(events.TypeProductUpdate, events.ProductUpdate{Product: *product})
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.notify.Notify(events.TypeProductDeleted, events.ProductDeleted{ID: id})
	return nil
}

func (s *Service) ImportProducts(ctx context.Context, rows []domain.ProductInput) (domain.ImportResult, error) {
	if len(rows) == 0 {
		return domain.ImportResult{}, invalid("file", "import file has no data rows")
	}
	fields := make([]repository.ProductFields, 0, len(rows))
	for i, row := range rows {
		f, err := productFields(row)
		if err != nil {
			return domain.ImportResult{}, invalid("file", "row %d: %s", i+2, err.Error())
		}
		fields = append(fields, f)
	}

	created, updated, err := s.store.UpsertProducts(ctx, fields)
	if err != nil {
		return domain.ImportResult{}, err
	}
	s.notify.Notify(events.TypeDataReset, events.DataReset{
		Message: fmt.Sprintf("Inventory imported: %d created, %d updated", created, updated),
		Type:    "inventory",
	})
	return domain.ImportResult{TotalRows: len(rows), Created: created, Updated: updated}, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, name string, description *string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, invalid("name", "category name is required")
	}
	if strings.EqualFold(name, domain.UncategorizedLabel) {
		return domain.Category{}, invalid("name", "%q is reserved for products without a category", domain.UncategorizedLabel)
	}
	return s.store.CreateCategory(ctx, name, normalizeNullable(description))
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.store.DeleteCategory(ctx, id)
}

// productFields validates a create or update body and applies the same
// coercions on both paths.
func productFields(input domain.ProductInput) (repository.ProductFields, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return repository.ProductFields{}, invalid("name", "name is required")
	}
	if input.Price == nil {
		return repository.ProductFields{}, invalid("price", "price is required")
	}

	fields := repository.ProductFields{
		Name:        name,
		Description: normalizeNullable(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Price:       max(*input.Price, 0),
		Unit:        strings.TrimSpace(input.Unit),
		DefaultQty:  1,
		Photo:       normalizeNullable(input.Photo),
	}
	if strings.EqualFold(fields.Category, domain.UncategorizedLabel) {
		fields.Category = ""
	}
	if fields.Unit == "" {
		fields.Unit = domain.DefaultUnit
	}
	if input.Stock != nil {
		stock := max(*input.Stock, 0)
		fields.Stock = &stock
	}
	if input.DefaultQty != nil && *input.DefaultQty > 1 {
		fields.DefaultQty = *input.DefaultQty
	}

	expiry, err := normalizeDate(input.ExpiryDate)
	if err != nil {
		return repository.ProductFields{}, err
	}
	fields.ExpiryDate = expiry
	return fields, nil
}

// normalizeDate accepts YYYY-MM-DD or an RFC 3339 timestamp and keeps the
// calendar date.
func normalizeDate(raw *string) (*string, error) {
	value := normalizeNullable(raw)
	if value == nil {
		return nil, nil
	}
	if t, err := time.Parse(domain.DateLayout, *value); err == nil {
		day := t.Format(domain.DateLayout)
		return &day, nil
	}
	if t, err := time.Parse(time.RFC3339, *value); err == nil {
		day := t.Format(domain.DateLayout)
		return &day, nil
	}
	return nil, invalid("expiry_date", "expiry_date must be a date in YYYY-MM-DD form")
}

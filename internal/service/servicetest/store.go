// Package servicetest provides in-memory doubles for the service layer.
package servicetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pharmapos/internal/domain"
	"pharmapos/internal/money"
	"pharmapos/internal/repository"
)

// Store keeps products, categories and sales in memory and follows the
// repository's error contract. Exported fields let tests inject results and
// inspect the arguments the service passed down.
type Store struct {
	mu         sync.Mutex
	products   map[int64]domain.Product
	categories []domain.Category
	sales      []domain.Sale
	nextID     int64

	Resets        []domain.ResetPlan
	Counts        repository.SalesCounts
	Expiring      []domain.Product
	LowStockCalls []int

	SaleErr    error
	GotCounts  [3]time.Time
	GotExpiry  time.Time
	GotTopArgs []any
}

func NewStore(products ...domain.Product) *Store {
	f := &Store{products: make(map[int64]domain.Product), categories: []domain.Category{}}
	for _, p := range products {
		f.products[p.ID] = p
		if p.ID > f.nextID {
			f.nextID = p.ID
		}
	}
	return f
}

func (f *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *Store) ListProductsByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			list = append(list, p)
		}
	}
	return list, nil
}

func (f *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *Store) apply(p *domain.Product, in repository.ProductFields) {
	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	if p.Category == "" {
		p.Category = domain.UncategorizedLabel
	}
	p.Price = in.Price
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	p.Unit = in.Unit
	p.DefaultQty = in.DefaultQty
	p.Photo = in.Photo
	p.ExpiryDate = in.ExpiryDate
}

func (f *Store) CreateProduct(ctx context.Context, in repository.ProductFields) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := domain.Product{ID: f.nextID}
	f.apply(&p, in)
	f.products[p.ID] = p
	return p, nil
}

func (f *Store) UpdateProduct(ctx context.Context, id int64, in repository.ProductFields) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	f.apply(&p, in)
	f.products[id] = p
	return &p, nil
}

func (f *Store) SetStock(ctx context.Context, id int64, stock int) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Stock = stock
	f.products[id] = p
	return &p, nil
}

func (f *Store) AdjustStock(ctx context.Context, id int64, delta int) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return nil, repository.ErrInsufficientStock
	}
	p.Stock += delta
	f.products[id] = p
	return &p, nil
}

func (f *Store) DeleteProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *Store) UpsertProducts(ctx context.Context, rows []repository.ProductFields) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created, updated := 0, 0
	for _, row := range rows {
		found := false
		for id, p := range f.products {
			if strings.EqualFold(p.Name, row.Name) {
				f.apply(&p, row)
				f.products[id] = p
				updated++
				found = true
				break
			}
		}
		if !found {
			f.nextID++
			p := domain.Product{ID: f.nextID}
			f.apply(&p, row)
			f.products[p.ID] = p
			created++
		}
	}
	return created, updated, nil
}

func (f *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Category{}, f.categories...), nil
}

func (f *Store) CreateCategory(ctx context.Context, name string, description *string) (domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Name == name {
			return domain.Category{}, repository.ErrConflict
		}
	}
	c := domain.Category{ID: int64(len(f.categories) + 1), Name: name, Description: description, CreatedAt: time.Now()}
	f.categories = append(f.categories, c)
	return c, nil
}

func (f *Store) DeleteCategory(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.categories {
		if c.ID != id {
			continue
		}
		for _, p := range f.products {
			if p.Category == c.Name {
				return repository.ErrCategoryInUse
			}
		}
		f.categories = append(f.categories[:i], f.categories[i+1:]...)
		return nil
	}
	return repository.ErrNotFound
}

// CreateSale mirrors the transactional contract: either every line is
// applied or nothing changes.
func (f *Store) CreateSale(ctx context.Context, lines []domain.SaleLineInput, discount float64) (domain.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaleErr != nil {
		return domain.Sale{}, f.SaleErr
	}

	stock := make(map[int64]int)
	for id, p := range f.products {
		stock[id] = p.Stock
	}
	items := make([]domain.SaleItem, 0, len(lines))
	moneyLines := make([]money.Line, 0, len(lines))
	for _, line := range lines {
		p, ok := f.products[line.ProductID]
		if !ok {
			return domain.Sale{}, repository.ErrUnknownProduct
		}
		decrement := line.Quantity - line.ReservedQty
		if stock[p.ID] < decrement {
			return domain.Sale{}, repository.ErrInsufficientStock
		}
		stock[p.ID] -= decrement
		id := p.ID
		items = append(items, domain.SaleItem{ProductID: &id, Quantity: line.Quantity, Price: p.Price, Name: p.Name, Unit: p.Unit})
		moneyLines = append(moneyLines, money.Line{Price: p.Price, Quantity: line.Quantity})
	}
	for id, left := range stock {
		p := f.products[id]
		p.Stock = left
		f.products[id] = p
	}

	totals := money.Compute(moneyLines, discount)
	sale := domain.Sale{
		ID:       int64(len(f.sales) + 1),
		Total:    totals.Total,
		Subtotal: totals.Subtotal,
		Discount: totals.Discount,
		Date:     time.Now(),
		Items:    items,
	}
	for i := range sale.Items {
		sale.Items[i].ID = int64(i + 1)
		sale.Items[i].SaleID = sale.ID
	}
	f.sales = append(f.sales, sale)
	return sale, nil
}

func (f *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]domain.Sale, 0, len(f.sales))
	for i := len(f.sales) - 1; i >= 0; i-- {
		list = append(list, f.sales[i])
	}
	return list, nil
}

func (f *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sale := range f.sales {
		if sale.ID == id {
			return &sale, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *Store) SalesCounts(ctx context.Context, from, to, now time.Time) (repository.SalesCounts, error) {
	f.GotCounts = [3]time.Time{from, to, now}
	return f.Counts, nil
}

func (f *Store) DailySales(ctx context.Context, from, to time.Time) ([]domain.DailySales, error) {
	return []domain.DailySales{}, nil
}

func (f *Store) CategoryStock(ctx context.Context) ([]domain.CategoryStock, error) {
	return []domain.CategoryStock{}, nil
}

func (f *Store) TopSellers(ctx context.Context, from, to time.Time, limit int) ([]domain.TopSeller, error) {
	f.GotTopArgs = []any{from, to, limit}
	return []domain.TopSeller{}, nil
}

func (f *Store) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	f.LowStockCalls = append(f.LowStockCalls, threshold)
	return []domain.Product{}, nil
}

func (f *Store) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.Product, error) {
	f.GotExpiry = cutoff
	return f.Expiring, nil
}

func (f *Store) ResetData(ctx context.Context, plan domain.ResetPlan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Resets = append(f.Resets, plan)
	if plan.ClearSales {
		f.sales = nil
	}
	if plan.ClearProducts {
		f.products = make(map[int64]domain.Product)
		f.nextID = 0
	}
	return nil
}

// Event is one recorded Notify call.
type Event struct {
	Type    string
	Payload any
}

// Recorder is a Notifier that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (n *Recorder) Notify(eventType string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, Event{Type: eventType, Payload: payload})
}

func (n *Recorder) Last() Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Events) == 0 {
		return Event{}
	}
	return n.Events[len(n.Events)-1]
}

func (n *Recorder) Count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.Events {
		if ev.Type == eventType {
			c++
		}
	}
	return c
}

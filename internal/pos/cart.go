// Package pos holds the cashier's cart between product lookups and checkout.
package pos

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"pharmapos/internal/client"
	"pharmapos/internal/domain"
	"pharmapos/internal/events"
	"pharmapos/internal/money"
)

var (
	ErrUnknownProduct  = errors.New("product not found")
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrNotInCart       = errors.New("product is not in the cart")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// API is the part of the server the cart needs. *client.Client implements
// it.
type API interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) (domain.Product, error)
	CreateSale(ctx context.Context, input domain.SaleInput) (client.SaleReceipt, error)
}

// Line is one product in the cart. Reserved is the part of Quantity already
// taken off the server's stock.
type Line struct {
	ProductID int64
	Name      string
	Unit      string
	Price     float64
	Quantity  int
	Reserved  int
}

type Cart struct {
	mu        sync.Mutex
	api       API
	catalog   map[int64]domain.Product
	lines     []Line
	discount  float64
	lastOrder int64
}

func NewCart(api API) *Cart {
	return &Cart{api: api, catalog: make(map[int64]domain.Product)}
}

// Load replaces the catalog with the server's product list and drops lines
// whose product no longer exists.
func (c *Cart) Load(ctx context.Context) error {
	products, err := c.api.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = make(map[int64]domain.Product, len(products))
	for _, p := range products {
		c.catalog[p.ID] = p
	}
	kept := c.lines[:0]
	for _, line := range c.lines {
		if _, ok := c.catalog[line.ProductID]; ok {
			kept = append(kept, line)
		}
	}
	c.lines = kept
	return nil
}

func (c *Cart) Products() []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := make([]domain.Product, 0, len(c.catalog))
	for _, p := range c.catalog {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Line(nil), c.lines...)
}

func (c *Cart) LastOrder() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOrder
}

// Available is what can still be put in the cart: server stock minus the
// part of the line not yet reserved on the server.
func (c *Cart) Available(id int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available(id)
}

func (c *Cart) available(id int64) int {
	p, ok := c.catalog[id]
	if !ok {
		return 0
	}
	if i := c.find(id); i >= 0 {
		return p.Stock - (c.lines[i].Quantity - c.lines[i].Reserved)
	}
	return p.Stock
}

// Select picks a product for entry. It fails when nothing is left to sell.
func (c *Cart) Select(id int64) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.catalog[id]
	if !ok {
		return domain.Product{}, ErrUnknownProduct
	}
	if c.available(id) <= 0 {
		return domain.Product{}, fmt.Errorf("%s: %w", p.Name, ErrOutOfStock)
	}
	return p, nil
}

// Add puts qty of a product in the cart, where qty must be between 1 and
// what is available. A new line stays local until its quantity is changed;
// adding to an existing line goes through SetQuantity.
func (c *Cart) Add(ctx context.Context, id int64, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.catalog[id]
	if !ok {
		return ErrUnknownProduct
	}
	available := c.available(id)
	if available <= 0 {
		return fmt.Errorf("%s: %w", p.Name, ErrOutOfStock)
	}
	if qty < 1 || qty > available {
		return fmt.Errorf("%w: %d (available %d)", ErrInvalidQuantity, qty, available)
	}
	if i := c.find(id); i >= 0 {
		_, err := c.setQuantity(ctx, i, c.lines[i].Quantity+qty)
		return err
	}

	c.lines = append(c.lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		Unit:      p.Unit,
		Price:     p.Price,
		Quantity:  qty,
	})
	return nil
}

// SetQuantity changes a line and reserves the change on the server. The
// value is clamped to what the shelf holds. It returns the quantity now in
// the cart.
func (c *Cart) SetQuantity(ctx context.Context, id int64, qty int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.find(id)
	if i < 0 {
		return 0, ErrNotInCart
	}
	return c.setQuantity(ctx, i, qty)
}

func (c *Cart) Increment(ctx context.Context, id int64) (int, error) {
	return c.step(ctx, id, 1)
}

func (c *Cart) Decrement(ctx context.Context, id int64) (int, error) {
	return c.step(ctx, id, -1)
}

func (c *Cart) step(ctx context.Context, id int64, by int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.find(id)
	if i < 0 {
		return 0, ErrNotInCart
	}
	return c.setQuantity(ctx, i, c.lines[i].Quantity+by)
}

func (c *Cart) setQuantity(ctx context.Context, i int, qty int) (int, error) {
	line := c.lines[i]
	upper := line.Quantity + c.available(line.ProductID)
	qty = max(1, min(qty, upper))

	if diff := qty - line.Reserved; diff != 0 {
		p, err := c.api.AdjustStock(ctx, line.ProductID, -diff)
		if err != nil {
			return line.Quantity, fmt.Errorf("reserve %s: %w", line.Name, err)
		}
		c.catalog[p.ID] = p
	}
	c.lines[i].Quantity = qty
	c.lines[i].Reserved = qty
	return qty, nil
}

// Remove drops a line and gives its reservation back to the server.
func (c *Cart) Remove(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.find(id)
	if i < 0 {
		return ErrNotInCart
	}
	if err := c.release(ctx, i); err != nil {
		return err
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

// Cancel empties the cart, releasing every reservation. It stops at the
// first failure and keeps the lines it could not release.
func (c *Cart) Cancel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.lines) > 0 {
		if err := c.release(ctx, 0); err != nil {
			return err
		}
		c.lines = c.lines[1:]
	}
	c.lines = nil
	c.discount = 0
	return nil
}

func (c *Cart) release(ctx context.Context, i int) error {
	line := c.lines[i]
	if line.Reserved == 0 {
		return nil
	}
	p, err := c.api.AdjustStock(ctx, line.ProductID, line.Reserved)
	if err != nil {
		return fmt.Errorf("restore %s: %w", line.Name, err)
	}
	c.catalog[p.ID] = p
	return nil
}

// SetDiscount stores the discount clamped to the subtotal. The message is
// empty unless the value had to be clamped.
func (c *Cart) SetDiscount(v float64) (float64, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	applied, msg := money.ClampDiscount(v, money.Subtotal(c.moneyLines()))
	c.discount = applied
	return applied, msg
}

func (c *Cart) Totals() money.Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return money.Compute(c.moneyLines(), c.discount)
}

// Checkout submits the cart as one sale. On failure the cart is left as it
// was so the cashier can retry.
func (c *Cart) Checkout(ctx context.Context) (client.SaleReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == 0 {
		return client.SaleReceipt{}, ErrEmptyCart
	}

	totals := money.Compute(c.moneyLines(), c.discount)
	input := domain.SaleInput{
		Items:    make([]domain.SaleLineInput, 0, len(c.lines)),
		Subtotal: totals.Subtotal,
		Discount: totals.Discount,
		Total:    totals.Total,
	}
	for _, line := range c.lines {
		input.Items = append(input.Items, domain.SaleLineInput{
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			ReservedQty: line.Reserved,
			Price:       line.Price,
			Name:        line.Name,
			Unit:        line.Unit,
		})
	}

	receipt, err := c.api.CreateSale(ctx, input)
	if err != nil {
		return client.SaleReceipt{}, fmt.Errorf("checkout: %w", err)
	}

	for _, line := range c.lines {
		if p, ok := c.catalog[line.ProductID]; ok {
			p.Stock -= line.Quantity - line.Reserved
			c.catalog[p.ID] = p
		}
	}
	c.lastOrder = receipt.ID
	c.lines = nil
	c.discount = 0
	return receipt, nil
}

// Apply folds a broadcast event into the catalog. It reports whether the
// catalog should be reloaded with Load.
func (c *Cart) Apply(ev events.Event) (bool, error) {
	switch ev.Type {
	case events.TypeProductUpdate:
		update, err := ev.ProductUpdate()
		if err != nil {
			return false, err
		}
		c.mu.Lock()
		c.catalog[update.Product.ID] = update.Product
		c.mu.Unlock()
	case events.TypeProductDeleted:
		deleted, err := ev.ProductDeleted()
		if err != nil {
			return false, err
		}
		c.mu.Lock()
		delete(c.catalog, deleted.ID)
		if i := c.find(deleted.ID); i >= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		}
		c.mu.Unlock()
	case events.TypeDataReset:
		reset, err := ev.DataReset()
		if err != nil {
			return false, err
		}
		return reset.Type == "inventory" || reset.Type == "all", nil
	}
	return false, nil
}

func (c *Cart) find(id int64) int {
	for i, line := range c.lines {
		if line.ProductID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) moneyLines() []money.Line {
	lines := make([]money.Line, 0, len(c.lines))
	for _, line := range c.lines {
		lines = append(lines, money.Line{Price: line.Price, Quantity: line.Quantity})
	}
	return lines
}

package pos

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"pharmapos/internal/client"
	"pharmapos/internal/domain"
	"pharmapos/internal/events"
	"pharmapos/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adjustCall struct {
	ID    int64
	Delta int
}

type fakeAPI struct {
	products  map[int64]domain.Product
	adjusts   []adjustCall
	failOn    map[int64]error
	sales     []domain.SaleInput
	saleErr   error
	nextOrder int64
}

func newFakeAPI(products ...domain.Product) *fakeAPI {
	api := &fakeAPI{products: make(map[int64]domain.Product), failOn: make(map[int64]error), nextOrder: 100}
	for _, p := range products {
		api.products[p.ID] = p
	}
	return api
}

func (f *fakeAPI) ListProducts(context.Context) ([]domain.Product, error) {
	list := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		list = append(list, p)
	}
	return list, nil
}

func (f *fakeAPI) AdjustStock(_ context.Context, id int64, delta int) (domain.Product, error) {
	f.adjusts = append(f.adjusts, adjustCall{id, delta})
	if err := f.failOn[id]; err != nil {
		return domain.Product{}, err
	}
	p := f.products[id]
	if p.Stock+delta < 0 {
		return domain.Product{}, errors.New("insufficient stock")
	}
	p.Stock += delta
	f.products[id] = p
	return p, nil
}

func (f *fakeAPI) CreateSale(_ context.Context, input domain.SaleInput) (client.SaleReceipt, error) {
	if f.saleErr != nil {
		return client.SaleReceipt{}, f.saleErr
	}
	f.sales = append(f.sales, input)
	f.nextOrder++
	return client.SaleReceipt{Success: true, ID: f.nextOrder}, nil
}

var errOffline = errors.New("connection refused")

func paracetamol() domain.Product {
	return domain.Product{ID: 1, Name: "Paracetamol", Price: 10.99, Stock: 100, Unit: "tabs", DefaultQty: 1}
}

func syrup() domain.Product {
	return domain.Product{ID: 2, Name: "Cough Syrup", Price: 12.5, Stock: 3, Unit: "bottle", DefaultQty: 1}
}

func loadedCart(t *testing.T, products ...domain.Product) (*Cart, *fakeAPI) {
	t.Helper()
	api := newFakeAPI(products...)
	cart := NewCart(api)
	require.NoError(t, cart.Load(context.Background()))
	return cart, api
}

func TestSelect(t *testing.T) {
	empty := domain.Product{ID: 3, Name: "Gauze", Price: 1, Stock: 0}
	cart, _ := loadedCart(t, paracetamol(), empty)

	p, err := cart.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol", p.Name)

	_, err = cart.Select(3)
	assert.ErrorIs(t, err, ErrOutOfStock)

	_, err = cart.Select(42)
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestAdd_NewLineIsLocal(t *testing.T) {
	cart, api := loadedCart(t, syrup())
	ctx := context.Background()

	require.NoError(t, cart.Add(ctx, 2, 2))
	assert.Empty(t, api.adjusts)
	assert.Equal(t, 1, cart.Available(2))

	assert.ErrorIs(t, cart.Add(ctx, 2, 5), ErrInvalidQuantity)
	assert.Empty(t, api.adjusts)

	require.NoError(t, cart.Add(ctx, 2, 1))
	assert.Equal(t, []adjustCall{{2, -3}}, api.adjusts)
	line := cart.Lines()[0]
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 3, line.Reserved)
	assert.ErrorIs(t, cart.Add(ctx, 2, 1), ErrOutOfStock)

	other, _ := loadedCart(t, syrup())
	assert.ErrorIs(t, other.Add(ctx, 2, 4), ErrInvalidQuantity)
	assert.ErrorIs(t, other.Add(ctx, 2, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, other.Add(ctx, 9, 1), ErrUnknownProduct)
}

func TestAdd_ExistingLineRejectsBadQuantity(t *testing.T) {
	cart, api := loadedCart(t, paracetamol())
	ctx := context.Background()

	require.NoError(t, cart.Add(ctx, 1, 5))
	for _, qty := range []int{-3, 0, 1000} {
		assert.ErrorIs(t, cart.Add(ctx, 1, qty), ErrInvalidQuantity, "qty %d", qty)
	}
	assert.Empty(t, api.adjusts)
	assert.Equal(t, []Line{{ProductID: 1, Name: "Paracetamol", Unit: "tabs", Price: 10.99, Quantity: 5}}, cart.Lines())

	require.NoError(t, cart.Add(ctx, 1, 95))
	assert.Equal(t, []adjustCall{{1, -100}}, api.adjusts)
	assert.Equal(t, 100, cart.Lines()[0].Quantity)
}

func TestSetQuantity_ReservesDifference(t *testing.T) {
	cart, api := loadedCart(t, paracetamol())
	ctx := context.Background()

	require.NoError(t, cart.Add(ctx, 1, 2))
	qty, err := cart.SetQuantity(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, qty)
	assert.Equal(t, []adjustCall{{1, -5}}, api.adjusts)
	assert.Equal(t, 95, api.products[1].Stock)
	assert.Equal(t, 95, cart.Available(1))

	qty, err = cart.Decrement(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, qty)
	assert.Equal(t, adjustCall{1, 1}, api.adjusts[1])
	assert.Equal(t, 96, api.products[1].Stock)

	line := cart.Lines()[0]
	assert.Equal(t, 4, line.Quantity)
	assert.Equal(t, 4, line.Reserved)
}

func TestSetQuantity_Clamps(t *testing.T) {
	cart, api := loadedCart(t, syrup())
	ctx := context.Background()

	require.NoError(t, cart.Add(ctx, 2, 1))
	qty, err := cart.SetQuantity(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)
	assert.Equal(t, 0, api.products[2].Stock)

	qty, err = cart.Increment(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)
	assert.Len(t, api.adjusts, 1)

	qty, err = cart.SetQuantity(ctx, 2, -4)
	require.NoError(t, err)
	assert.Equal(t, 1, qty)
	assert.Equal(t, 2, api.products[2].Stock)

	_, err = cart.SetQuantity(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotInCart)
}

func TestSetQuantity_FailureKeepsLine(t *testing.T) {
	cart, api := loadedCart(t, paracetamol())
	ctx := context.Background()

	require.NoError(t, cart.Add(ctx, 1, 2))
	api.failOn[1] = errOffline

	qty, err := cart.Increment(ctx, 1)
	require.ErrorIs(t, err, errOffline)
	assert.Equal(t, 2, qty)

	line := cart.Lines()[0]
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 0, line.Reserved)
	assert.Equal(t, 98, cart.Available(1))
}

func TestRemove_RestoresReservation(t *testing.T) {
	cart, api := loadedCart(t, paracetamol())
	ctx := context.Background()

	require.NoError(t, cart.Add(ctx, 1, 1))
	_, err := cart.SetQuantity(ctx, 1, 6)
	require.NoError(t, err)
	require.Equal(t, 94, api.products[1].Stock)

	require.NoError(t, cart.Remove(ctx, 1))
	assert.Equal(t, 100, api.products[1].Stock)
	assert.Empty(t, cart.Lines())
	assert.Equal(t, 100, cart.Available(1))

	assert.ErrorIs(t, cart.Remove(ctx, 1), ErrNotInCart)
}

func TestCancel_StopsAtFirstFailure(t *testing.T) {
	cart, api := loadedCart(t, paracetamol(), syrup())
	ctx := context.Background()

	require.NoError(t, cart.Add(ctx, 1, 1))
	_, err := cart.SetQuantity(ctx, 1, 3)
	require.NoError(t, err)
	require.NoError(t, cart.Add(ctx, 2, 1))
	_, err = cart.SetQuantity(ctx, 2, 2)
	require.NoError(t, err)
	cart.SetDiscount(5)

	api.failOn[2] = errOffline
	err = cart.Cancel(ctx)
	require.ErrorIs(t, err, errOffline)

	lines := cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].ProductID)
	assert.Equal(t, 100, api.products[1].Stock)
	assert.Equal(t, 5.0, cart.Totals().Discount)

	delete(api.failOn, 2)
	require.NoError(t, cart.Cancel(ctx))
	assert.Empty(t, cart.Lines())
	assert.Equal(t, 3, api.products[2].Stock)
	assert.Equal(t, money.Totals{}, cart.Totals())
}

func TestSetDiscount(t *testing.T) {
	cart, _ := loadedCart(t, paracetamol())
	require.NoError(t, cart.Add(context.Background(), 1, 5))

	applied, msg := cart.SetDiscount(-1)
	assert.Equal(t, 0.0, applied)
	assert.Equal(t, money.MsgDiscountNegative, msg)

	applied, msg = cart.SetDiscount(60)
	assert.InDelta(t, 54.95, applied, 1e-9)
	assert.Equal(t, money.MsgDiscountTooLarge, msg)
	assert.Equal(t, 0.0, cart.Totals().Total)

	applied, msg = cart.SetDiscount(4.95)
	assert.InDelta(t, 4.95, applied, 1e-9)
	assert.Empty(t, msg)

	totals := cart.Totals()
	assert.InDelta(t, 54.95, totals.Subtotal, 1e-9)
	assert.InDelta(t, 50.0, totals.Total, 1e-9)
}

func TestCheckout(t *testing.T) {
	cart, api := loadedCart(t, paracetamol(), syrup())
	ctx := context.Background()

	_, err := cart.Checkout(ctx)
	assert.ErrorIs(t, err, ErrEmptyCart)

	require.NoError(t, cart.Add(ctx, 1, 2))
	_, err = cart.Increment(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, cart.Add(ctx, 2, 1))

	api.saleErr = errOffline
	_, err = cart.Checkout(ctx)
	require.ErrorIs(t, err, errOffline)
	assert.Len(t, cart.Lines(), 2)

	api.saleErr = nil
	receipt, err := cart.Checkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(101), receipt.ID)
	assert.Equal(t, int64(101), cart.LastOrder())
	assert.Empty(t, cart.Lines())

	require.Len(t, api.sales, 1)
	sale := api.sales[0]
	require.Len(t, sale.Items, 2)
	assert.Equal(t, domain.SaleLineInput{ProductID: 1, Quantity: 3, ReservedQty: 3, Price: 10.99, Name: "Paracetamol", Unit: "tabs"}, sale.Items[0])
	assert.Equal(t, 0, sale.Items[1].ReservedQty)
	assert.InDelta(t, 45.47, sale.Total, 1e-9)

	assert.Equal(t, 97, cart.Available(1))
	assert.Equal(t, 2, cart.Available(2))
}

func event(t *testing.T, eventType string, payload any) events.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Event{Type: eventType, Data: data}
}

func TestApply(t *testing.T) {
	cart, _ := loadedCart(t, paracetamol(), syrup())
	require.NoError(t, cart.Add(context.Background(), 2, 1))

	updated := paracetamol()
	updated.Stock = 7
	reload, err := cart.Apply(event(t, events.TypeProductUpdate, events.ProductUpdate{Product: updated}))
	require.NoError(t, err)
	assert.False(t, reload)
	assert.Equal(t, 7, cart.Available(1))

	reload, err = cart.Apply(event(t, events.TypeProductDeleted, events.ProductDeleted{ID: 2}))
	require.NoError(t, err)
	assert.False(t, reload)
	assert.Empty(t, cart.Lines())
	_, err = cart.Select(2)
	assert.ErrorIs(t, err, ErrUnknownProduct)

	reload, err = cart.Apply(event(t, events.TypeDataReset, events.DataReset{Message: "Sales data has been cleared", Type: "sales"}))
	require.NoError(t, err)
	assert.False(t, reload)

	reload, err = cart.Apply(event(t, events.TypeDataReset, events.DataReset{Message: "Inventory data has been cleared", Type: "inventory"}))
	require.NoError(t, err)
	assert.True(t, reload)

	_, err = cart.Apply(events.Event{Type: events.TypeProductUpdate, Data: []byte(`"oops"`)})
	assert.Error(t, err)
}

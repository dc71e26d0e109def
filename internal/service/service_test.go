package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharmapos/internal/domain"
	"pharmapos/internal/events"
	"pharmapos/internal/repository"
	"pharmapos/internal/service/servicetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 20, 15, 30, 0, 0, time.UTC)

func paracetamol() domain.Product {
	return domain.Product{ID: 1, Name: "Paracetamol", Category: "Analgesics", Price: 10.99, Stock: 100, Unit: "tabs", DefaultQty: 1}
}

var errBoom = errors.New("boom")

var (
	_ Store    = (*servicetest.Store)(nil)
	_ Store    = (*repository.Repository)(nil)
	_ Notifier = (*servicetest.Recorder)(nil)
	_ Notifier = (*events.Broadcaster)(nil)
)

func newTestService(products ...domain.Product) (*Service, *servicetest.Store, *servicetest.Recorder) {
	store := servicetest.NewStore(products...)
	notifier := &servicetest.Recorder{}
	svc := New(store, notifier, Options{
		LowStockLevel:    5,
		ExpiryWindowDays: 30,
		Now:              func() time.Time { return fixedNow },
	})
	return svc, store, notifier
}

func ptr[T any](v T) *T { return &v }

func TestCreateProduct_ValidatesAndCoerces(t *testing.T) {
	svc, _, notifier := newTestService()

	_, err := svc.CreateProduct(context.Background(), domain.ProductInput{Name: "  ", Price: ptr(1.0)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = svc.CreateProduct(context.Background(), domain.ProductInput{Name: "Aspirin"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "price", verr.Field)

	product, err := svc.CreateProduct(context.Background(), domain.ProductInput{
		Name:       " Aspirin ",
		Price:      ptr(-4.0),
		Stock:      ptr(-3),
		DefaultQty: ptr(0),
		ExpiryDate: ptr("2027-05-01T00:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", product.Name)
	assert.Equal(t, 0.0, product.Price)
	assert.Equal(t, 0, product.Stock)
	assert.Equal(t, 1, product.DefaultQty)
	assert.Equal(t, domain.DefaultUnit, product.Unit)
	assert.Equal(t, domain.UncategorizedLabel, product.Category)
	require.NotNil(t, product.ExpiryDate)
	assert.Equal(t, "2027-05-01", *product.ExpiryDate)

	last := notifier.Last()
	assert.Equal(t, events.TypeProductUpdate, last.Type)
	assert.Equal(t, product, last.Payload.(events.ProductUpdate).Product)
}

func TestCreateProduct_RejectsBadExpiry(t *testing.T) {
	svc, _, notifier := newTestService()
	_, err := svc.CreateProduct(context.Background(), domain.ProductInput{Name: "Aspirin", Price: ptr(2.0), ExpiryDate: ptr("next week")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "expiry_date", verr.Field)
	assert.Empty(t, notifier.Events)
}

func TestUpdateProduct_NotFoundBroadcastsNothing(t *testing.T) {
	svc, _, notifier := newTestService()
	_, err := svc.UpdateProduct(context.Background(), 42, domain.ProductInput{Name: "Aspirin", Price: ptr(2.0)})
	require.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, notifier.Events)
}

func TestUpdateProduct_KeepsStockWhenOmitted(t *testing.T) {
	svc, _, _ := newTestService(paracetamol())
	product, err := svc.UpdateProduct(context.Background(), 1, domain.ProductInput{Name: "Paracetamol 500mg", Price: ptr(11.49), Unit: "tabs"})
	require.NoError(t, err)
	assert.Equal(t, 100, product.Stock)
	assert.Equal(t, 11.49, product.Price)
}

func TestSetStock(t *testing.T) {
	svc, _, notifier := newTestService(paracetamol())

	_, err := svc.SetStock(context.Background(), 1, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	product, err := svc.SetStock(context.Background(), 1, ptr(40))
	require.NoError(t, err)
	assert.Equal(t, 40, product.Stock)

	again, err := svc.SetStock(context.Background(), 1, ptr(40))
	require.NoError(t, err)
	assert.Equal(t, 40, again.Stock)

	clamped, err := svc.SetStock(context.Background(), 1, ptr(-7))
	require.NoError(t, err)
	assert.Equal(t, 0, clamped.Stock)
	assert.Equal(t, 3, notifier.Count(events.TypeProductUpdate))

	_, err = svc.SetStock(context.Background(), 99, ptr(1))
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAdjustStock(t *testing.T) {
	svc, _, notifier := newTestService(paracetamol())

	product, err := svc.AdjustStock(context.Background(), 1, ptr(-5))
	require.NoError(t, err)
	assert.Equal(t, 95, product.Stock)

	_, err = svc.AdjustStock(context.Background(), 1, ptr(-500))
	require.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.Equal(t, 1, notifier.Count(events.TypeProductUpdate))
}

func TestDeleteProduct_BroadcastsID(t *testing.T) {
	svc, _, notifier := newTestService(paracetamol())
	require.NoError(t, svc.DeleteProduct(context.Background(), 1))
	assert.Equal(t, events.ProductDeleted{ID: 1}, notifier.Last().Payload)

	require.ErrorIs(t, svc.DeleteProduct(context.Background(), 1), repository.ErrNotFound)
}

func TestCreateSale_ParacetamolScenario(t *testing.T) {
	svc, store, notifier := newTestService(paracetamol())

	sale, err := svc.CreateSale(context.Background(), domain.SaleInput{
		Items:    []domain.SaleLineInput{{ProductID: 1, Quantity: 5, Price: 10.99}},
		Subtotal: 54.95,
		Total:    54.95,
	})
	require.NoError(t, err)
	assert.Equal(t, 54.95, sale.Total)
	assert.Len(t, sale.Items, 1)

	product, err := store.GetProductByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 95, product.Stock)

	last := notifier.Last()
	require.Equal(t, events.TypeProductUpdate, last.Type)
	assert.Equal(t, 95, last.Payload.(events.ProductUpdate).Product.Stock)
}

func TestCreateSale_ReservedQuantityNotTakenTwice(t *testing.T) {
	svc, store, _ := newTestService(paracetamol())

	_, err := svc.AdjustStock(context.Background(), 1, ptr(-3))
	require.NoError(t, err)

	_, err = svc.CreateSale(context.Background(), domain.SaleInput{
		Items: []domain.SaleLineInput{{ProductID: 1, Quantity: 5, ReservedQty: 3}},
	})
	require.NoError(t, err)

	product, _ := store.GetProductByID(context.Background(), 1)
	assert.Equal(t, 95, product.Stock)
}

func TestCreateSale_TotalIsNeverNegative(t *testing.T) {
	svc, _, _ := newTestService(paracetamol())
	sale, err := svc.CreateSale(context.Background(), domain.SaleInput{
		Items:    []domain.SaleLineInput{{ProductID: 1, Quantity: 1}},
		Discount: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, 10.99, sale.Discount)
	assert.Equal(t, 0.0, sale.Total)
}

func TestCreateSale_Validation(t *testing.T) {
	svc, _, _ := newTestService(paracetamol())
	tests := []struct {
		name  string
		input domain.SaleInput
	}{
		{"empty cart", domain.SaleInput{}},
		{"missing product", domain.SaleInput{Items: []domain.SaleLineInput{{Quantity: 1}}}},
		{"zero quantity", domain.SaleInput{Items: []domain.SaleLineInput{{ProductID: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSale(context.Background(), tt.input)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "items", verr.Field)
		})
	}
}

func TestCreateSale_StoreFailureBroadcastsNothing(t *testing.T) {
	svc, store, notifier := newTestService(paracetamol())
	store.SaleErr = errBoom

	_, err := svc.CreateSale(context.Background(), domain.SaleInput{
		Items: []domain.SaleLineInput{{ProductID: 1, Quantity: 1}},
	})
	require.True(t, errors.Is(err, errBoom))
	assert.Empty(t, notifier.Events)
	sales, _ := svc.ListSales(context.Background())
	assert.Empty(t, sales)
}

func TestResetData(t *testing.T) {
	svc, store, notifier := newTestService()

	plan, err := svc.ResetData(context.Background(), "stock")
	require.NoError(t, err)
	assert.True(t, plan.ClearProducts)
	require.Len(t, store.Resets, 1)
	assert.Equal(t, events.DataReset{Message: "Inventory data has been cleared", Type: "inventory"}, notifier.Last().Payload)

	_, err = svc.ResetData(context.Background(), "everything")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "must be one of")
	assert.Len(t, store.Resets, 1)
}

func TestCreateCategory_RejectsUncategorizedLabel(t *testing.T) {
	svc, _, _ := newTestService()

	for _, name := range []string{"Uncategorized", " uncategorized "} {
		_, err := svc.CreateCategory(context.Background(), name, nil)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, name)
		assert.Equal(t, "name", verr.Field)
	}

	categories, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestImportProducts(t *testing.T) {
	svc, _, notifier := newTestService(paracetamol())

	result, err := svc.ImportProducts(context.Background(), []domain.ProductInput{
		{Name: "paracetamol", Price: ptr(9.99), Stock: ptr(80), Category: "Analgesics"},
		{Name: "Cough Syrup", Price: ptr(15.75), Stock: ptr(30), Unit: "bottle"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ImportResult{TotalRows: 2, Created: 1, Updated: 1}, result)
	assert.Equal(t, events.TypeDataReset, notifier.Last().Type)

	_, err = svc.ImportProducts(context.Background(), []domain.ProductInput{{Name: "No price"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "row 2")
}

func TestSalesSummary(t *testing.T) {
	svc, store, _ := newTestService()
	store.Counts = repository.SalesCounts{Orders: 4, Revenue: 100, TodayOrders: 1, ThisWeek: 6, PreviousWeek: 4}

	rng, err := svc.ParseDateRange("", "")
	require.NoError(t, err)
	summary, err := svc.SalesSummary(context.Background(), rng)
	require.NoError(t, err)

	assert.Equal(t, "2026-02-18", summary.From)
	assert.Equal(t, "2026-03-20", summary.To)
	assert.Equal(t, 25.0, summary.AverageOrderValue)
	assert.Equal(t, 50.0, summary.WeeklyChange)
	assert.Equal(t, time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC), store.GotCounts[1])

	store.Counts = repository.SalesCounts{}
	summary, err = svc.SalesSummary(context.Background(), rng)
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.AverageOrderValue)
	assert.Equal(t, 0.0, summary.WeeklyChange)
}

func TestParseDateRange_Errors(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.ParseDateRange("2026-13-01", "")
	assert.Error(t, err)

	_, err = svc.ParseDateRange("2026-03-10", "2026-03-01")
	assert.Error(t, err)

	rng, err := svc.ParseDateRange("2026-03-01", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), rng.end())
}

func TestTopSellers_DefaultsLimit(t *testing.T) {
	svc, store, _ := newTestService()
	rng, _ := svc.ParseDateRange("", "")

	_, err := svc.TopSellers(context.Background(), rng, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, store.GotTopArgs[2])

	_, err = svc.TopSellers(context.Background(), rng, 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, store.GotTopArgs[2])
}

func TestLowStockAndOutOfStock(t *testing.T) {
	svc, store, _ := newTestService()

	_, err := svc.LowStock(context.Background(), nil)
	require.NoError(t, err)
	_, err = svc.LowStock(context.Background(), ptr(12))
	require.NoError(t, err)
	_, err = svc.OutOfStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{5, 12, 0}, store.LowStockCalls)

	_, err = svc.LowStock(context.Background(), ptr(-1))
	assert.Error(t, err)
}

func TestExpiryReport_SplitsExpiredAndSoon(t *testing.T) {
	svc, store, _ := newTestService()
	store.Expiring = []domain.Product{
		{ID: 1, Name: "Old Syrup", ExpiryDate: ptr("2026-03-01")},
		{ID: 2, Name: "Today", ExpiryDate: ptr("2026-03-20")},
		{ID: 3, Name: "Soon", ExpiryDate: ptr("2026-04-01")},
	}

	report, err := svc.ExpiryReport(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 19, 0, 0, 0, 0, time.UTC), store.GotExpiry)
	assert.Equal(t, 30, report.WindowDays)

	require.Len(t, report.Expired, 2)
	assert.Equal(t, -19, report.Expired[0].DaysUntilExpiry)
	assert.Equal(t, 0, report.Expired[1].DaysUntilExpiry)
	require.Len(t, report.ExpiringSoon, 1)
	assert.Equal(t, 12, report.ExpiringSoon[0].DaysUntilExpiry)
	assert.False(t, report.ExpiringSoon[0].Expired)
}

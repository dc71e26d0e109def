package service

import (
	"context"
	"log"
	"math"

	"pharmapos/internal/domain"
	"pharmapos/internal/events"
)

// CreateSale validates the cart and commits it. Prices and totals come from
// the store; the client's own totals only get compared and logged.
func (s *Service) CreateSale(ctx context.Context, input domain.SaleInput) (domain.Sale, error) {
	if len(input.Items) == 0 {
		return domain.Sale{}, invalid("items", "sale must contain at least one item")
	}

	lines := make([]domain.SaleLineInput, 0, len(input.Items))
	for i, item := range input.Items {
		if item.ProductID <= 0 {
			return domain.Sale{}, invalid("items", "item %d: product_id is required", i+1)
		}
		if item.Quantity < 1 {
			return domain.Sale{}, invalid("items", "item %d: quantity must be at least 1", i+1)
		}
		item.ReservedQty = min(max(item.ReservedQty, 0), item.Quantity)
		lines = append(lines, item)
	}

	sale, err := s.store.CreateSale(ctx, lines, max(input.Discount, 0))
	if err != nil {
		return domain.Sale{}, err
	}

	if input.Total != 0 && math.Abs(input.Total-sale.Total) >= 0.005 {
		log.Printf("sale %d: client total %.2f differs from computed %.2f", sale.ID, input.Total, sale.Total)
	}

	s.broadcastProducts(ctx, saleProductIDs(sale.Items))
	return sale, nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.store.ListSales(ctx)
}

func (s *Service) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	return s.store.GetSale(ctx, id)
}

// ResetData clears the tables behind a dashboard tab and tells subscribers
// what to reload.
func (s *Service) ResetData(ctx context.Context, scope string) (domain.ResetPlan, error) {
	plan, err := domain.ParseResetScope(scope)
	if err != nil {
		return domain.ResetPlan{}, invalid("tabType", "%s", err.Error())
	}
	if err := s.store.ResetData(ctx, plan); err != nil {
		return domain.ResetPlan{}, err
	}
	s.notify.Notify(events.TypeDataReset, events.DataReset{Message: plan.Message, Type: plan.EventType})
	return plan, nil
}

func (s *Service) broadcastProducts(ctx context.Context, ids []int64) {
	if len(ids) == 0 {
		return
	}
	products, err := s.store.ListProductsByIDs(ctx, ids)
	if err != nil {
		log.Printf("reload products after sale: %v", err)
		return
	}
	for _, product := range products {
		s.notify.Notify(events.TypeProductUpdate, events.ProductUpdate{Product: product})
	}
}

func saleProductIDs(items []domain.SaleItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		if _, ok := seen[*item.ProductID]; ok {
			continue
		}
		seen[*item.ProductID] = struct{}{}
		ids = append(ids, *item.ProductID)
	}
	return ids
}

package service

import (
	"context"
	"strings"
	"time"

	"pharmapos/internal/domain"
	"pharmapos/internal/money"
)

const (
	defaultReportDays = 30
	defaultTopSellers = 5
	maxTopSellers     = 100
)

// DateRange is an inclusive span of calendar days in UTC.
type DateRange struct {
	From time.Time
	To   time.Time
}

// end is the first instant after the range.
func (r DateRange) end() time.Time {
	return r.To.AddDate(0, 0, 1)
}

// ParseDateRange reads optional YYYY-MM-DD bounds. Missing bounds default
// to the last thirty days ending today.
func (s *Service) ParseDateRange(from, to string) (DateRange, error) {
	today := truncateDay(s.now())
	rng := DateRange{From: today.AddDate(0, 0, -defaultReportDays), To: today}

	if v := strings.TrimSpace(to); v != "" {
		t, err := time.Parse(domain.DateLayout, v)
		if err != nil {
			return DateRange{}, invalid("to", "to must be a date in YYYY-MM-DD form")
		}
		rng.To = t
		if strings.TrimSpace(from) == "" {
			rng.From = t.AddDate(0, 0, -defaultReportDays)
		}
	}
	if v := strings.TrimSpace(from); v != "" {
		t, err := time.Parse(domain.DateLayout, v)
		if err != nil {
			return DateRange{}, invalid("from", "from must be a date in YYYY-MM-DD form")
		}
		rng.From = t
	}
	if rng.From.After(rng.To) {
		return DateRange{}, invalid("from", "from must not be after to")
	}
	return rng, nil
}

func (s *Service) SalesSummary(ctx context.Context, rng DateRange) (domain.SalesSummary, error) {
	counts, err := s.store.SalesCounts(ctx, rng.From, rng.end(), s.now())
	if err != nil {
		return domain.SalesSummary{}, err
	}

	summary := domain.SalesSummary{
		From:         rng.From.Format(domain.DateLayout),
		To:           rng.To.Format(domain.DateLayout),
		TotalSales:   counts.Orders,
		TotalRevenue: money.Round(counts.Revenue),
		TodaysSales:  counts.TodayOrders,
	}
	if counts.Orders > 0 {
		summary.AverageOrderValue = money.Round(counts.Revenue / float64(counts.Orders))
	}
	if counts.PreviousWeek > 0 {
		change := float64(counts.ThisWeek-counts.PreviousWeek) / float64(counts.PreviousWeek) * 100
		summary.WeeklyChange = money.Round(change)
	}
	return summary, nil
}

func (s *Service) DailySales(ctx context.Context, rng DateRange) ([]domain.DailySales, error) {
	return s.store.DailySales(ctx, rng.From, rng.end())
}

func (s *Service) CategoryStock(ctx context.Context) ([]domain.CategoryStock, error) {
	return s.store.CategoryStock(ctx)
}

func (s *Service) TopSellers(ctx context.Context, rng DateRange, limit int) ([]domain.TopSeller, error) {
	if limit <= 0 {
		limit = defaultTopSellers
	}
	if limit > maxTopSellers {
		limit = maxTopSellers
	}
	return s.store.TopSellers(ctx, rng.From, rng.end(), limit)
}

// LowStock lists products at or below the threshold, the configured level
// when none is given.
func (s *Service) LowStock(ctx context.Context, threshold *int) ([]domain.Product, error) {
	level := s.opts.LowStockLevel
	if threshold != nil {
		if *threshold < 0 {
			return nil, invalid("threshold", "threshold cannot be negative")
		}
		level = *threshold
	}
	return s.store.LowStock(ctx, level)
}

func (s *Service) OutOfStock(ctx context.Context) ([]domain.Product, error) {
	return s.store.LowStock(ctx, 0)
}

// ExpiryReport splits products into those already expired (expiry on or
// before today) and those expiring within the window.
func (s *Service) ExpiryReport(ctx context.Context, days *int) (domain.ExpiryReport, error) {
	window := s.opts.ExpiryWindowDays
	if days != nil {
		if *days < 0 {
			return domain.ExpiryReport{}, invalid("days", "days cannot be negative")
		}
		window = *days
	}

	today := truncateDay(s.now())
	products, err := s.store.ExpiringBefore(ctx, today.AddDate(0, 0, window))
	if err != nil {
		return domain.ExpiryReport{}, err
	}

	report := domain.ExpiryReport{
		Expired:      []domain.ExpiryAlert{},
		ExpiringSoon: []domain.ExpiryAlert{},
		WindowDays:   window,
	}
	for _, p := range products {
		if p.ExpiryDate == nil {
			continue
		}
		expiry, err := time.Parse(domain.DateLayout, *p.ExpiryDate)
		if err != nil {
			continue
		}
		daysLeft := int(expiry.Sub(today).Hours() / 24)
		alert := domain.ExpiryAlert{Product: p, DaysUntilExpiry: daysLeft, Expired: daysLeft <= 0}
		if alert.Expired {
			report.Expired = append(report.Expired, alert)
		} else {
			report.ExpiringSoon = append(report.ExpiringSoon, alert)
		}
	}
	return report, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/malwarebo/invoicer/cache"
	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/utils"
)

const dashboardCacheTTL = 30 * time.Second

type DashboardService struct {
	invoiceStore *stores.InvoiceStore
	cache        cache.Cache
	now          func() time.Time
	logger       *utils.Logger
}

// CreateDashboardService builds the service. metricsCache may be nil.
func CreateDashboardService(invoiceStore *stores.InvoiceStore, metricsCache cache.Cache) *DashboardService {
	return &DashboardService{
		invoiceStore: invoiceStore,
		cache:        metricsCache,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       utils.NewLogger("dashboard"),
	}
}

// MonthStart and YearStart return the first instant of the UTC month and year
// containing t.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func YearStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

func (s *DashboardService) cacheKey(now time.Time) string {
	return "dashboard:" + now.Format(models.DateLayout)
}

func (s *DashboardService) Metrics(ctx context.Context) (*models.DashboardMetrics, error) {
	now := s.now()

	if s.cache != nil {
		var cached models.DashboardMetrics
		err := s.cache.GetJSON(ctx, s.cacheKey(now), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn(ctx, "Dashboard cache read failed", map[string]interface{}{"error": err.Error()})
		}
	}

	metrics, err := s.compute(ctx, now)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, s.cacheKey(now), metrics, dashboardCacheTTL); err != nil {
			s.logger.Warn(ctx, "Dashboard cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return metrics, nil
}

// Invalidate drops cached metrics after a change that moves money figures.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(s.now())); err != nil {
		s.logger.Warn(ctx, "Dashboard cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *DashboardService) compute(ctx context.Context, now time.Time) (*models.DashboardMetrics, error) {
	outstanding, err := s.invoiceStore.Outstanding(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum outstanding invoices: %w", err)
	}
	overdue, err := s.invoiceStore.Overdue(ctx, models.DateOf(now))
	if err != nil {
		return nil, fmt.Errorf("failed to sum overdue invoices: %w", err)
	}
	paidMonth, err := s.invoiceStore.PaidBetween(ctx, MonthStart(now), MonthStart(now).AddDate(0, 1, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to sum paid invoices: %w", err)
	}
	paidYear, err := s.invoiceStore.PaidBetween(ctx, YearStart(now), YearStart(now).AddDate(1, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to sum paid invoices: %w", err)
	}
	drafts, err := s.invoiceStore.CountByStatus(ctx, models.InvoiceStatusDraft)
	if err != nil {
		return nil, fmt.Errorf("failed to count drafts: %w", err)
	}

	return &models.DashboardMetrics{
		TotalOutstanding: outstanding.Amount,
		OutstandingCount: outstanding.Count,
		OverdueAmount:    overdue.Amount,
		OverdueCount:     overdue.Count,
		PaidThisMonth:    paidMonth.Amount,
		PaidYearToDate:   paidYear.Amount,
		DraftCount:       drafts,
	}, nil
}

package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

const (
	defaultSummaryDays = 30
	maxSummaryDays     = 366
)

// ReportService builds dashboard and sales reports.
type ReportService struct {
	products ProductStore
	sales    SaleStore
	cache    DashboardCache
	loc      *time.Location
	now      func() time.Time
}

// NewReportService constructs a ReportService. cache may be nil.
func NewReportService(products ProductStore, sales SaleStore, cache DashboardCache, loc *time.Location) *ReportService {
	if cache == nil {
		cache = noopCache{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{products: products, sales: sales, cache: cache, loc: loc, now: time.Now}
}

// Dashboard returns today's and month-to-date completed sales together with
// product counts. Results are served from the cache while fresh.
func (s *ReportService) Dashboard(ctx context.Context, actor *models.User) (*models.Dashboard, error) {
	owner := actor.OwnerID.Hex()
	if d, ok := s.cache.Get(ctx, owner); ok {
		return d, nil
	}

	now := s.now()
	today := utils.DayWindow(now, s.loc)
	month := utils.MonthToDateWindow(now, s.loc)

	var (
		todayTotals, monthTotals models.SalesTotals
		active, low              int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		todayTotals, err = s.sales.Totals(gctx, actor.OwnerID, today)
		return err
	})
	g.Go(func() (err error) {
		monthTotals, err = s.sales.Totals(gctx, actor.OwnerID, month)
		return err
	})
	g.Go(func() (err error) {
		active, err = s.products.CountActive(gctx, actor.OwnerID)
		return err
	})
	g.Go(func() (err error) {
		low, err = s.products.CountLowStock(gctx, actor.OwnerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &models.Dashboard{
		TodaySales:       todayTotals.Count,
		TodayRevenue:     todayTotals.Revenue.Round(2),
		MonthlySales:     monthTotals.Count,
		MonthlyRevenue:   monthTotals.Revenue.Round(2),
		TotalProducts:    active,
		LowStockProducts: low,
		GeneratedAt:      now.UTC(),
	}
	s.cache.Set(ctx, owner, d)
	return d, nil
}

// SaleReport returns the full sale document.
func (s *ReportService) SaleReport(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Sale, error) {
	return s.sales.GetByID(ctx, actor.OwnerID, id)
}

// SalesSummary returns per-day completed sales between from and to
// (YYYY-MM-DD, inclusive). Without from it covers the last 30 days.
func (s *ReportService) SalesSummary(ctx context.Context, actor *models.User, from, to string) (*models.SalesSummary, error) {
	w, err := dateRange(from, to, s.loc, s.now())
	if err != nil {
		return nil, err
	}
	if w.End.Sub(w.Start) > maxSummaryDays*24*time.Hour+time.Hour {
		return nil, utils.NewValidationError("from", "range must not exceed 366 days")
	}

	summary := &models.SalesSummary{From: w.Start, To: w.End}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary.Totals, err = s.sales.Totals(gctx, actor.OwnerID, w)
		return err
	})
	g.Go(func() (err error) {
		summary.Days, err = s.sales.DailyTotals(gctx, actor.OwnerID, w, s.loc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

// dateRange turns optional YYYY-MM-DD bounds into a window in loc. A missing
// end means today; a missing start means 30 days before the end.
func dateRange(from, to string, loc *time.Location, now time.Time) (utils.Window, error) {
	end := now
	if to != "" {
		t, err := utils.ParseDate(to, loc)
		if err != nil {
			return utils.Window{}, utils.NewValidationError("to", err.Error())
		}
		end = t
	}
	start := utils.StartOfDay(end, loc).AddDate(0, 0, 1-defaultSummaryDays)
	if from != "" {
		t, err := utils.ParseDate(from, loc)
		if err != nil {
			return utils.Window{}, utils.NewValidationError("from", err.Error())
		}
		start = t
	}
	if end.Before(start) {
		return utils.Window{}, utils.NewValidationError("to", "must not be before from")
	}
	return utils.DateRangeWindow(start, end, loc), nil
}

package services

import (
	"context"
	"time"

	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// TopProductsLimit is the size of the best-sellers ranking in Stats.
const TopProductsLimit = 10

// PeriodTotals aggregates completed sales over a time window.
type PeriodTotals struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// TopProduct is a product ranked by units sold.
type TopProduct struct {
	ProductID    uint    `json:"product_id"`
	Name         string  `json:"name"`
	Barcode      *string `json:"barcode,omitempty"`
	QuantitySold int64   `json:"quantity_sold"`
}

// SalesStats is the dashboard summary of sales.
type SalesStats struct {
	Today       PeriodTotals `json:"today"`
	Month       PeriodTotals `json:"month"`
	TopProducts []TopProduct `json:"top_products"`
}

// Dashboard gathers the counters shown on the landing screen.
type Dashboard struct {
	Products     int64      `json:"products"`
	Clients      int64      `json:"clients"`
	LowStock     int64      `json:"low_stock"`
	UnreadAlerts int64      `json:"unread_alerts"`
	Sales        SalesStats `json:"sales"`
}

// ReportService computes read-only aggregates over sales and inventory.
type ReportService struct {
	db       *gorm.DB
	cache    Cache
	statsTTL time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewReportService builds the service. statsTTL <= 0 disables stats caching.
func NewReportService(db *gorm.DB, c Cache, statsTTL time.Duration, log logrus.FieldLogger) *ReportService {
	return &ReportService{db: db, cache: orNoCache(c), statsTTL: statsTTL, log: log.WithField("module", "reports"), now: time.Now}
}

// Totals counts completed sales with from <= sold_at <= to and sums their totals.
func (s *ReportService) Totals(ctx context.Context, from, to time.Time) (PeriodTotals, error) {
	var row PeriodTotals
	err := s.db.WithContext(ctx).Model(&models.Sale{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total), 0) AS total").
		Where("status = ? AND sold_at >= ? AND sold_at <= ?", models.SaleCompleted, from, to).
		Scan(&row).Error
	if err != nil {
		return PeriodTotals{}, wrapStore("sum sales", err)
	}
	row.Total = row.Total.Round(2)
	return row, nil
}

// TopProducts ranks products by total quantity sold across all sale lines.
// Ties are broken by product id.
func (s *ReportService) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = TopProductsLimit
	}
	top := []TopProduct{}
	err := s.db.WithContext(ctx).Table("sale_lines AS sl").
		Select("sl.product_id AS product_id, p.name AS name, p.barcode AS barcode, SUM(sl.quantity) AS quantity_sold").
		Joins("JOIN products p ON p.id = sl.product_id").
		Group("sl.product_id, p.name, p.barcode").
		Order("quantity_sold DESC, sl.product_id").
		Limit(limit).
		Scan(&top).Error
	if err != nil {
		return nil, wrapStore("rank products", err)
	}
	return top, nil
}

// Stats returns today's and this month's totals plus the best sellers.
// Results are cached for statsTTL; registering a sale drops the cache.
func (s *ReportService) Stats(ctx context.Context) (*SalesStats, error) {
	var stats SalesStats
	now := s.now()
	key := statsCacheKey(now)
	if s.statsTTL > 0 {
		hit, err := s.cache.GetObject(ctx, key, &stats)
		if err != nil {
			s.log.WithError(err).Warn("read stats cache")
		}
		if hit {
			return &stats, nil
		}
	}

	dayStart := models.DayOf(now, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.Totals(gctx, dayStart, now)
		stats.Today = t
		return err
	})
	g.Go(func() error {
		t, err := s.Totals(gctx, monthStart, now)
		stats.Month = t
		return err
	})
	g.Go(func() error {
		top, err := s.TopProducts(gctx, TopProductsLimit)
		stats.TopProducts = top
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.statsTTL > 0 {
		if err := s.cache.SetObject(ctx, key, stats, s.statsTTL); err != nil {
			s.log.WithError(err).Warn("write stats cache")
		}
	}
	return &stats, nil
}

// Dashboard collects catalog, alert and sales counters.
func (s *ReportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, model any, where string, args ...any) {
		g.Go(func() error {
			q := s.db.WithContext(gctx).Model(model)
			if where != "" {
				q = q.Where(where, args...)
			}
			return wrapStore("dashboard count", q.Count(dst).Error)
		})
	}
	count(&d.Products, &models.Product{}, "active = ?", true)
	count(&d.Clients, &models.Client{}, "")
	count(&d.LowStock, &models.Product{}, "active = ? AND stock <= min_stock", true)
	count(&d.UnreadAlerts, &models.Alert{}, "is_read = ?", false)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	d.Sales = *stats
	return &d, nil
}

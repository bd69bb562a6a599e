package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExpiryWindowDays is how far ahead the scan looks for expiring products.
const ExpiryWindowDays = 30

const scanLockTTL = time.Minute

// AlertFilter narrows List. Nil Read lists both read and unread alerts.
type AlertFilter struct {
	Read      *bool
	Kind      models.AlertKind
	ProductID uint
}

// AlertService raises and manages inventory alerts.
type AlertService struct {
	db    *gorm.DB
	cache Cache
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewAlertService(db *gorm.DB, c Cache, log logrus.FieldLogger) *AlertService {
	return &AlertService{db: db, cache: orNoCache(c), log: log.WithField("module", "alerts"), now: time.Now}
}

// EvaluateLowStock opens a low-stock alert when the product is active, at or
// below its threshold and has no unread low-stock alert. It reports whether an
// alert was created.
func (s *AlertService) EvaluateLowStock(ctx context.Context, productID uint) (bool, error) {
	return s.evaluate(ctx, productID, models.AlertLowStock, func(p *models.Product) (string, bool) {
		if !p.IsLowStock() {
			return "", false
		}
		return fmt.Sprintf("Product %s is running low: %d units left (minimum %d)", p.Name, p.Stock, p.MinStock), true
	})
}

// EvaluateNearExpiry opens a near-expiry alert when the product expires within
// the next ExpiryWindowDays days and has no unread near-expiry alert.
func (s *AlertService) EvaluateNearExpiry(ctx context.Context, productID uint) (bool, error) {
	now := s.now()
	to := now.AddDate(0, 0, ExpiryWindowDays)
	return s.evaluate(ctx, productID, models.AlertNearExpiry, func(p *models.Product) (string, bool) {
		if !p.ExpiresWithin(now, to) {
			return "", false
		}
		return fmt.Sprintf("Product %s expires on %s", p.Name, p.ExpiresAt.Format("02/01/2006")), true
	})
}

func (s *AlertService) evaluate(ctx context.Context, productID uint, kind models.AlertKind, check func(*models.Product) (string, bool)) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, productID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductNotFoundError(productID)
		}
		if err != nil {
			return err
		}
		if !p.Active {
			return nil
		}
		msg, ok := check(&p)
		if !ok {
			return nil
		}
		var open int64
		if err := tx.Model(&models.Alert{}).
			Where("product_id = ? AND kind = ? AND is_read = ?", p.ID, kind, false).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return nil
		}
		alert := models.Alert{ProductID: p.ID, Kind: kind, Message: msg, CreatedAt: s.now()}
		// A concurrent evaluation may win the race; idx_alerts_open turns ours into a no-op.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&alert)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, wrapStore("evaluate "+string(kind)+" alert", err)
	}
	if created {
		s.log.WithFields(logrus.Fields{"product_id": productID, "kind": kind}).Info("alert raised")
	}
	return created, nil
}

// Scan evaluates every active product for both alert kinds and returns the
// number of alerts created.
func (s *AlertService) Scan(ctx context.Context) (int, error) {
	release, err := s.cache.Lock(ctx, "alerts:scan", scanLockTTL)
	if err != nil {
		// dedup makes overlapping scans harmless
		s.log.WithError(err).Warn("scan lock not obtained; proceeding without it")
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.log.WithError(err).Warn("failed to release scan lock")
		}
	}()

	created := 0
	var low []uint
	if err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("active = ? AND stock <= min_stock", true).
		Order("id").Pluck("id", &low).Error; err != nil {
		return created, wrapStore("scan low stock", err)
	}
	for _, id := range low {
		ok, err := s.EvaluateLowStock(ctx, id)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}

	now := s.now()
	from := models.DayOf(now, now.Location())
	until := models.DayOf(now.AddDate(0, 0, ExpiryWindowDays), now.Location()).AddDate(0, 0, 1)
	var expiring []uint
	if err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at >= ? AND expires_at < ?", true, from, until).
		Order("id").Pluck("id", &expiring).Error; err != nil {
		return created, wrapStore("scan near expiry", err)
	}
	for _, id := range expiring {
		ok, err := s.EvaluateNearExpiry(ctx, id)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	s.log.WithFields(logrus.Fields{"low_stock": len(low), "expiring": len(expiring), "created": created}).Info("alert scan finished")
	return created, nil
}

// List returns alerts newest first with their product.
func (s *AlertService) List(ctx context.Context, f AlertFilter) ([]models.Alert, error) {
	q := s.db.WithContext(ctx).Preload("Product").Order("created_at DESC, id DESC")
	if f.Read != nil {
		q = q.Where("is_read = ?", *f.Read)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.ProductID != 0 {
		q = q.Where("product_id = ?", f.ProductID)
	}
	var alerts []models.Alert
	if err := q.Find(&alerts).Error; err != nil {
		return nil, wrapStore("list alerts", err)
	}
	return alerts, nil
}

// MarkRead flags an alert as read. Marking twice is harmless.
func (s *AlertService) MarkRead(ctx context.Context, id uint) (*models.Alert, error) {
	var a models.Alert
	err := s.db.WithContext(ctx).Preload("Product").First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, AlertNotFoundError(id)
	}
	if err != nil {
		return nil, wrapStore("load alert", err)
	}
	if !a.Read {
		if err := s.db.WithContext(ctx).Model(&models.Alert{}).Where("id = ?", id).Update("is_read", true).Error; err != nil {
			return nil, wrapStore("mark alert read", err)
		}
		a.Read = true
	}
	return &a, nil
}

// Delete removes an alert permanently.
func (s *AlertService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Alert{}, id)
	if res.Error != nil {
		return wrapStore("delete alert", res.Error)
	}
	if res.RowsAffected == 0 {
		return AlertNotFoundError(id)
	}
	return nil
}

// UnreadCount counts alerts not yet read.
func (s *AlertService) UnreadCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Alert{}).Where("is_read = ?", false).Count(&n).Error; err != nil {
		return 0, wrapStore("count unread alerts", err)
	}
	return n, nil
}

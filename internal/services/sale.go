package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/diewo77/pharmacy-pos/validation"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaxRate is the flat sales tax applied to every subtotal.
var TaxRate = decimal.RequireFromString("0.18")

// SaleItem is one requested basket line.
type SaleItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// RegisterSaleInput is a basket submitted at the counter. UserID is the
// authenticated seller; an empty PaymentMethod means cash.
type RegisterSaleInput struct {
	ClientID      *uint
	UserID        uint
	Items         []SaleItem
	PaymentMethod models.PaymentMethod
}

// SaleFilter narrows List. Zero values are ignored.
type SaleFilter struct {
	From     *time.Time
	To       *time.Time
	Status   models.SaleStatus
	ClientID uint
	UserID   uint
}

// SaleService registers and reads sales.
type SaleService struct {
	db     *gorm.DB
	alerts *AlertService
	cache  Cache
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewSaleService(db *gorm.DB, alerts *AlertService, c Cache, log logrus.FieldLogger) *SaleService {
	return &SaleService{db: db, alerts: alerts, cache: orNoCache(c), log: log.WithField("module", "sales"), now: time.Now}
}

func (in RegisterSaleInput) validate() error {
	if len(in.Items) == 0 {
		return ErrEmptyBasket
	}
	v := validation.Violations{}
	if in.UserID == 0 {
		v["user_id"] = "required"
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		v["payment_method"] = "invalid_choice"
	}
	for i, it := range in.Items {
		if it.ProductID == 0 {
			v[fmt.Sprintf("items[%d].product_id", i)] = "required"
		}
		validation.PositiveInt(fmt.Sprintf("items[%d].quantity", i), it.Quantity, v)
	}
	if !v.Empty() {
		return NewValidationError(v)
	}
	return nil
}

// Register records a sale atomically: every line is priced at the current
// sale price, stock is decremented and the sale is stored, or nothing changes.
// Low-stock evaluation runs after commit and never fails the sale.
func (s *SaleService) Register(ctx context.Context, in RegisterSaleInput) (*models.Sale, error) {
	if in.ClientID != nil && *in.ClientID == 0 {
		in.ClientID = nil // walk-in customer
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	method := in.PaymentMethod
	if method == "" {
		method = models.PaymentCash
	}

	sale := models.Sale{
		ClientID:      in.ClientID,
		UserID:        in.UserID,
		SoldAt:        s.now(),
		PaymentMethod: method,
		Status:        models.SaleCompleted,
	}
	// products touched by the basket, in first-seen order, with their running stock
	var touched []*models.Product

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ClientID != nil {
			var n int64
			if err := tx.Model(&models.Client{}).Where("id = ?", *in.ClientID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return &NotFoundError{Entity: "client", ID: *in.ClientID}
			}
		}

		byID := make(map[uint]*models.Product, len(in.Items))
		subtotal := decimal.Zero
		lines := make([]models.SaleLine, 0, len(in.Items))
		for _, it := range in.Items {
			p, seen := byID[it.ProductID]
			if !seen {
				p = &models.Product{}
				err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
					Where("id = ? AND active = ?", it.ProductID, true).
					First(p).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ProductNotFoundError(it.ProductID)
				}
				if err != nil {
					return err
				}
				byID[p.ID] = p
				touched = append(touched, p)
			}
			// repeated products are checked against what earlier lines left
			if p.Stock < it.Quantity {
				return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: p.Stock, Requested: it.Quantity}
			}
			p.Stock -= it.Quantity

			line := models.SaleLine{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.SalePrice}
			line.Subtotal = line.LineTotal()
			subtotal = subtotal.Add(line.Subtotal)
			lines = append(lines, line)
		}

		for _, l := range lines {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", l.ProductID, l.Quantity).
				Update("stock", gorm.Expr("stock - ?", l.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var available int
				tx.Model(&models.Product{}).Where("id = ?", l.ProductID).Pluck("stock", &available)
				p := byID[l.ProductID]
				return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: available, Requested: l.Quantity}
			}
		}

		sale.Subtotal = subtotal.Round(2)
		sale.Tax = subtotal.Mul(TaxRate).Round(2)
		sale.Total = sale.Subtotal.Add(sale.Tax)
		sale.Lines = lines
		return tx.Create(&sale).Error
	})
	if err != nil {
		return nil, wrapStore("register sale", err)
	}

	s.log.WithFields(logrus.Fields{
		"sale_id": sale.ID, "user_id": sale.UserID, "lines": len(sale.Lines), "total": sale.Total.StringFixed(2),
	}).Info("sale registered")
	s.afterCommit(ctx, touched)

	full, err := s.Get(ctx, sale.ID)
	if err != nil {
		s.log.WithError(err).WithField("sale_id", sale.ID).Warn("reload registered sale")
		return &sale, nil
	}
	return full, nil
}

// afterCommit raises low-stock alerts and drops cached stats. Failures are logged only.
func (s *SaleService) afterCommit(ctx context.Context, touched []*models.Product) {
	for _, p := range touched {
		if !p.IsLowStock() {
			continue
		}
		if _, err := s.alerts.EvaluateLowStock(ctx, p.ID); err != nil {
			s.log.WithError(err).WithField("product_id", p.ID).Warn("low stock evaluation failed")
		}
	}
	if err := s.cache.Delete(ctx, statsCacheKey(s.now())); err != nil {
		s.log.WithError(err).Warn("invalidate stats cache")
	}
}

// Get returns a sale with client, seller and lines with their products.
func (s *SaleService) Get(ctx context.Context, id uint) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("User").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Product").
		First(&sale, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Entity: "sale", ID: id}
	}
	if err != nil {
		return nil, wrapStore("load sale", err)
	}
	return &sale, nil
}

// List returns sales newest first with client and seller.
func (s *SaleService) List(ctx context.Context, f SaleFilter) ([]models.Sale, error) {
	var sales []models.Sale
	if err := applySaleFilter(s.db.WithContext(ctx), f).Preload("Client").Preload("User").Order("sold_at DESC, id DESC").Find(&sales).Error; err != nil {
		return nil, wrapStore("list sales", err)
	}
	return sales, nil
}

func applySaleFilter(q *gorm.DB, f SaleFilter) *gorm.DB {
	q = q.Model(&models.Sale{})
	if f.From != nil {
		q = q.Where("sold_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("sold_at <= ?", *f.To)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	return q
}

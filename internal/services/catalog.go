package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/diewo77/pharmacy-pos/validation"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DateLayout is the wire format of calendar dates such as expiry dates.
const DateLayout = "2006-01-02"

// ProductFilter narrows List. Active nil means active products only.
type ProductFilter struct {
	Category string
	Search   string
	Active   *bool
	All      bool // include inactive products
}

// ProductInput creates a product.
type ProductInput struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description"`
	Barcode       *string         `json:"barcode" validate:"omitempty,max=50"`
	Category      string          `json:"category" validate:"required,max=100"`
	Laboratory    string          `json:"laboratory" validate:"max=100"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         int             `json:"stock" validate:"gte=0"`
	MinStock      *int            `json:"min_stock" validate:"omitempty,gte=0"`
	ExpiresAt     *string         `json:"expires_at"`
}

// ProductPatch updates the non-nil fields of a product.
type ProductPatch struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string          `json:"description"`
	Barcode       *string          `json:"barcode" validate:"omitempty,max=50"`
	Category      *string          `json:"category" validate:"omitempty,min=1,max=100"`
	Laboratory    *string          `json:"laboratory" validate:"omitempty,max=100"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SalePrice     *decimal.Decimal `json:"sale_price"`
	Stock         *int             `json:"stock" validate:"omitempty,gte=0"`
	MinStock      *int             `json:"min_stock" validate:"omitempty,gte=0"`
	ExpiresAt     *string          `json:"expires_at"` // "" clears the date
	Active        *bool            `json:"active"`
}

// CatalogService manages products. Creating or updating a product
// re-evaluates its low-stock alert.
type CatalogService struct {
	db     *gorm.DB
	alerts *AlertService
	log    logrus.FieldLogger
}

func NewCatalogService(db *gorm.DB, alerts *AlertService, log logrus.FieldLogger) *CatalogService {
	return &CatalogService{db: db, alerts: alerts, log: log.WithField("module", "catalog")}
}

// List returns products ordered by name.
func (s *CatalogService) List(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Model(&models.Product{})
	switch {
	case f.Active != nil:
		q = q.Where("active = ?", *f.Active)
	case !f.All:
		q = q.Where("active = ?", true)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(laboratory) LIKE ? OR barcode = ?", like, like, term)
	}
	var products []models.Product
	if err := q.Order("name, id").Find(&products).Error; err != nil {
		return nil, wrapStore("list products", err)
	}
	return products, nil
}

// LowStock lists active products at or below their threshold, scarcest first.
func (s *CatalogService) LowStock(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("active = ? AND stock <= min_stock", true).
		Order("stock, name").
		Find(&products).Error
	if err != nil {
		return nil, wrapStore("list low stock", err)
	}
	return products, nil
}

// Categories lists the distinct categories of active products.
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	cats := []string{}
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("active = ?", true).
		Distinct("category").Order("category").
		Pluck("category", &cats).Error
	if err != nil {
		return nil, wrapStore("list categories", err)
	}
	return cats, nil
}

// Get returns a product, active or not.
func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ProductNotFoundError(id)
	}
	if err != nil {
		return nil, wrapStore("load product", err)
	}
	return &p, nil
}

// Create validates and stores a new active product.
func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	v := validation.Struct(in)
	validation.NonNegativeDecimal("purchase_price", in.PurchasePrice, v)
	validation.NonNegativeDecimal("sale_price", in.SalePrice, v)
	expires, err := parseDate(in.ExpiresAt)
	if err != nil {
		v.Add("expires_at", "invalid_date")
	}
	if !v.Empty() {
		return nil, NewValidationError(v)
	}

	p := models.Product{
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Barcode:       blankToNil(in.Barcode),
		Category:      strings.TrimSpace(in.Category),
		Laboratory:    in.Laboratory,
		PurchasePrice: in.PurchasePrice,
		SalePrice:     in.SalePrice,
		Stock:         in.Stock,
		MinStock:      models.DefaultMinStock,
		ExpiresAt:     expires,
		Active:        true,
	}
	if in.MinStock != nil {
		p.MinStock = *in.MinStock
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		if isDuplicate(err) {
			return nil, &ConflictError{Field: "barcode", Value: deref(p.Barcode)}
		}
		return nil, wrapStore("create product", err)
	}
	s.checkStock(ctx, &p)
	return &p, nil
}

// Update applies patch to product id.
func (s *CatalogService) Update(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error) {
	v := validation.Struct(patch)
	if patch.PurchasePrice != nil {
		validation.NonNegativeDecimal("purchase_price", *patch.PurchasePrice, v)
	}
	if patch.SalePrice != nil {
		validation.NonNegativeDecimal("sale_price", *patch.SalePrice, v)
	}
	expires, err := parseDate(patch.ExpiresAt)
	if err != nil {
		v.Add("expires_at", "invalid_date")
	}
	if !v.Empty() {
		return nil, NewValidationError(v)
	}

	cols := patch.columns(expires)
	var p models.Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductNotFoundError(id)
		}
		if err != nil {
			return wrapStore("load product", err)
		}
		if len(cols) > 0 {
			if err := tx.Model(&p).Updates(cols).Error; err != nil {
				if isDuplicate(err) {
					return &ConflictError{Field: "barcode", Value: deref(blankToNil(patch.Barcode))}
				}
				return wrapStore("update product", err)
			}
		}
		return wrapStore("reload product", tx.First(&p, id).Error)
	})
	if err != nil {
		return nil, err
	}
	s.checkStock(ctx, &p)
	return &p, nil
}

// columns maps the set fields of the patch to product columns. Only these
// are written, so a concurrent stock decrement is never overwritten.
func (patch ProductPatch) columns(expires *time.Time) map[string]any {
	cols := map[string]any{}
	if patch.Name != nil {
		cols["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		cols["description"] = *patch.Description
	}
	if patch.Barcode != nil {
		cols["barcode"] = blankToNil(patch.Barcode)
	}
	if patch.Category != nil {
		cols["category"] = strings.TrimSpace(*patch.Category)
	}
	if patch.Laboratory != nil {
		cols["laboratory"] = *patch.Laboratory
	}
	if patch.PurchasePrice != nil {
		cols["purchase_price"] = *patch.PurchasePrice
	}
	if patch.SalePrice != nil {
		cols["sale_price"] = *patch.SalePrice
	}
	if patch.Stock != nil {
		cols["stock"] = *patch.Stock
	}
	if patch.MinStock != nil {
		cols["min_stock"] = *patch.MinStock
	}
	if patch.ExpiresAt != nil {
		cols["expires_at"] = expires
	}
	if patch.Active != nil {
		cols["active"] = *patch.Active
	}
	return cols
}

// Deactivate soft-deletes a product. Sale history keeps referencing it.
func (s *CatalogService) Deactivate(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return wrapStore("deactivate product", res.Error)
	}
	if res.RowsAffected == 0 {
		return ProductNotFoundError(id)
	}
	return nil
}

func (s *CatalogService) checkStock(ctx context.Context, p *models.Product) {
	if s.alerts == nil || !p.Active || !p.IsLowStock() {
		return
	}
	if _, err := s.alerts.EvaluateLowStock(ctx, p.ID); err != nil {
		s.log.WithError(err).WithField("product_id", p.ID).Warn("low stock evaluation failed")
	}
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(*raw), time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

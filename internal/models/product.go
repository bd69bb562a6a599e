package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMinStock is the reorder threshold applied when none is given.
const DefaultMinStock = 10

// Product is a catalog item sold over the counter.
type Product struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Name          string          `gorm:"size:200;not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description,omitempty"`
	Barcode       *string         `gorm:"size:50;uniqueIndex" json:"barcode,omitempty"`
	Category      string          `gorm:"size:100;not null;index" json:"category"`
	Laboratory    string          `gorm:"size:100" json:"laboratory,omitempty"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"purchase_price"`
	SalePrice     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"sale_price"`
	Stock         int             `gorm:"not null;check:stock >= 0" json:"stock"`
	MinStock      int             `gorm:"not null" json:"min_stock"`
	ExpiresAt     *time.Time      `gorm:"type:date;index" json:"expires_at,omitempty"`
	Active        bool            `gorm:"not null;index" json:"active"`
}

// IsLowStock reports whether the product sits at or below its threshold.
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// ExpiresWithin reports whether the expiry day falls in [from, to].
// Only calendar days are compared, in the location of from.
func (p *Product) ExpiresWithin(from, to time.Time) bool {
	if p.ExpiresAt == nil {
		return false
	}
	loc := from.Location()
	day := DayOf(*p.ExpiresAt, loc)
	return !day.Before(DayOf(from, loc)) && !day.After(DayOf(to, loc))
}

// DayOf returns midnight, in loc, of the calendar day t falls on in its own location.
func DayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Margin is the unit profit at current prices.
func (p *Product) Margin() decimal.Decimal {
	return p.SalePrice.Sub(p.PurchasePrice)
}

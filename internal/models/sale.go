package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

// SaleStatus tracks the lifecycle of a sale.
type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
)

// Sale is an immutable receipt. Totals are fixed at registration time.
type Sale struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ClientID      *uint           `gorm:"index" json:"client_id,omitempty"`
	Client        *Client         `gorm:"foreignKey:ClientID;constraint:OnDelete:SET NULL" json:"client,omitempty"`
	UserID        uint            `gorm:"index;not null" json:"user_id"`
	User          *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SoldAt        time.Time       `gorm:"not null;index" json:"sold_at"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Tax           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"tax"`
	Total         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	PaymentMethod PaymentMethod   `gorm:"size:20;not null" json:"payment_method"`
	Status        SaleStatus      `gorm:"size:20;not null;index" json:"status"`
	Lines         []SaleLine      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// SaleLine is one product entry of a sale with the price in effect at sale time.
type SaleLine struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	SaleID    uint            `gorm:"index;not null" json:"sale_id"`
	ProductID uint            `gorm:"index;not null" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
}

// LineTotal is quantity times unit price.
func (l *SaleLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesSubtotal sums the line subtotals.
func (s *Sale) LinesSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for i := range s.Lines {
		sum = sum.Add(s.Lines[i].Subtotal)
	}
	return sum
}

// ItemCount is the total number of units sold.
func (s *Sale) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

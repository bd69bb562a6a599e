package models

import "time"

// AlertKind distinguishes the inventory conditions that raise alerts.
type AlertKind string

const (
	AlertLowStock   AlertKind = "low_stock"
	AlertNearExpiry AlertKind = "near_expiry"
)

// Alert is a notice about a product. At most one unread alert exists per
// (product, kind); the partial unique index idx_alerts_open enforces it.
type Alert struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
	Kind      AlertKind `gorm:"size:20;not null" json:"kind"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"column:is_read;not null;default:false" json:"read"`
}

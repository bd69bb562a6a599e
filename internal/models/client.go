package models

import (
	"strings"
	"time"
)

// Client is an optional party attached to a sale.
type Client struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	FirstName  string    `gorm:"size:100;not null" json:"first_name"`
	LastName   string    `gorm:"size:100;not null" json:"last_name"`
	NationalID *string   `gorm:"size:20;uniqueIndex" json:"national_id,omitempty"`
	Phone      string    `gorm:"size:20" json:"phone,omitempty"`
	Email      string    `gorm:"size:100" json:"email,omitempty"`
	Address    string    `gorm:"type:text" json:"address,omitempty"`
}

// FullName joins first and last name, skipping blanks.
func (c *Client) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Package models holds the GORM models persisted by the pharmacy backend.
package models

// All returns every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Client{},
		&Sale{},
		&SaleLine{},
		&Alert{},
	}
}

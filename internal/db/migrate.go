package db

import (
	"errors"
	"fmt"

	"github.com/diewo77/pharmacy-pos/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"
)

// openAlertIndex keeps at most one unread alert per product and kind.
const openAlertIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open ON alerts (product_id, kind) WHERE NOT is_read`

// Migrate applies the schema with AutoMigrate. Used for sqlite and dev setups.
func Migrate(conn *gorm.DB) error {
	for _, m := range models.All() {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	if err := conn.Exec(openAlertIndex).Error; err != nil {
		return fmt.Errorf("create open alert index: %w", err)
	}
	// sanity check: ensure required core tables exist
	for _, table := range []string{"users", "products", "sales", "sale_lines", "alerts"} {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// MigrateSQL runs the versioned postgres migrations found in dir.
func MigrateSQL(dir, databaseURL string) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

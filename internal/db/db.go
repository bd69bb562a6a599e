// Package db opens the database, applies the schema and seeds bootstrap data.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/pharmacy-pos/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectAttempts = 5

// GormConfig is the gorm configuration shared by the server and the tests.
func GormConfig(debug bool) *gorm.Config {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}
}

// Connect opens the configured database, retrying while postgres starts.
func Connect(cfg config.DatabaseConfig, tracing bool, log logrus.FieldLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
		log.WithFields(logrus.Fields{
			"host": cfg.Host, "port": cfg.Port, "dbname": cfg.DBName, "user": cfg.User,
		}).Info("connecting to postgres")
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
		log.WithField("path", cfg.Path).Info("opening sqlite database")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	var conn *gorm.DB
	var err error
	for i := 0; i < connectAttempts; i++ {
		conn, err = gorm.Open(dialector, GormConfig(cfg.Debug))
		if err == nil {
			break
		}
		log.WithError(err).Warnf("database connection attempt %d/%d failed", i+1, connectAttempts)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after retries: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// one writer at a time
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}

	if tracing {
		if err := conn.Use(otelgorm.NewPlugin()); err != nil {
			log.WithError(err).Warn("db connected but failed to install otelgorm plugin")
		}
	}
	return conn, nil
}

// Ping checks the connection is alive.
func Ping(ctx context.Context, conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/pharmacy-pos/auth"
	"github.com/diewo77/pharmacy-pos/internal/cache"
	"github.com/diewo77/pharmacy-pos/internal/config"
	"github.com/diewo77/pharmacy-pos/internal/db"
	"github.com/diewo77/pharmacy-pos/internal/handlers"
	"github.com/diewo77/pharmacy-pos/internal/logging"
	"github.com/diewo77/pharmacy-pos/internal/policy"
	"github.com/diewo77/pharmacy-pos/internal/services"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	auth.Configure(auth.Options{
		SessionSecret: cfg.Auth.SessionSecret,
		TokenSecret:   cfg.Auth.TokenSecret,
		TokenTTL:      cfg.Auth.TokenTTL,
	})
	if !cfg.App.Dev && (cfg.Auth.SessionSecret == "devsessionsecret" || cfg.Auth.TokenSecret == "devtokensecret") {
		log.Warn("running outside dev with default auth secrets")
	}

	dbConn, err := db.Connect(cfg.Database, cfg.App.Tracing, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if *migrateOnlyFlag {
		if err := migrate(cfg, dbConn); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("migrations completed successfully")
		return
	}

	if *seedOnlyFlag {
		if err := seed(cfg, dbConn, log); err != nil {
			log.WithError(err).Fatal("seeding failed")
		}
		return
	}

	if cfg.App.Migrations || cfg.Database.Driver == "sqlite" {
		if err := migrate(cfg, dbConn); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("migrations completed")
	}

	if cfg.App.Seed {
		if err := seed(cfg, dbConn, log); err != nil {
			log.WithError(err).Fatal("seeding failed")
		}
	}

	checks := map[string]handlers.Check{
		"database": func(ctx context.Context) error { return db.Ping(ctx, dbConn) },
	}
	var statsCache services.Cache
	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.New(ctx, cfg.Redis.URL)
		cancel()
		if err != nil {
			log.WithError(err).Warn("redis unavailable, running without cache")
		} else {
			defer rc.Close()
			statsCache = rc
			checks["redis"] = rc.Ping
			log.Info("redis cache enabled")
		}
	}

	routerCfg := policy.NewRouterConfig(dbConn, log, policy.Options{
		Cache:       statsCache,
		StatsTTL:    cfg.Redis.StatsTTL,
		ProfileTTL:  cfg.Auth.ProfileTTL,
		PhoneRegion: cfg.Locale.PhoneRegion,
		Checks:      checks,
	})

	// Reject sessions and tokens of deactivated users
	auth.SetUserVerifier(routerCfg.Users.IsActive)

	appHandler := NewApp(routerCfg, log, cfg.Server.CORSOrigin)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      appHandler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Server.Port, "dev": cfg.App.Dev, "driver": cfg.Database.Driver}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	log.Info("server stopped gracefully")
}

// migrate applies versioned SQL migrations on postgres when MIGRATIONS=1 and
// AutoMigrate otherwise.
func migrate(cfg *config.Config, conn *gorm.DB) error {
	if cfg.App.Migrations && cfg.Database.Driver == "postgres" {
		return db.MigrateSQL(cfg.App.MigrationsDir, cfg.Database.URL())
	}
	return db.Migrate(conn)
}

func seed(cfg *config.Config, conn *gorm.DB, log logrus.FieldLogger) error {
	created, err := db.SeedAdmin(conn, cfg.Admin)
	if errors.Is(err, db.ErrNoAdminPassword) {
		log.Warn("no users yet; set ADMIN_PASSWORD to create the bootstrap admin")
		return nil
	}
	if err != nil {
		return err
	}
	if created {
		log.WithField("email", cfg.Admin.Email).Info("bootstrap admin created")
	}
	return nil
}

package policy

import (
	"time"

	"github.com/diewo77/pharmacy-pos/internal/handlers"
	"github.com/diewo77/pharmacy-pos/internal/services"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options tunes NewRouterConfig. The zero value works without a cache.
type Options struct {
	Cache       services.Cache // nil disables stats caching and the scan lock
	StatsTTL    time.Duration
	ProfileTTL  time.Duration
	PhoneRegion string
	Checks      map[string]handlers.Check
}

// RouterConfig holds the services, handlers and authorization gate the
// router is assembled from.
type RouterConfig struct {
	AuthGate *AuthGate

	Users   *services.UserService
	Alerts  *services.AlertService
	Reports *services.ReportService

	AuthHandler      *handlers.AuthHandler
	ProductHandler   *handlers.ProductHandler
	ClientHandler    *handlers.ClientHandler
	SaleHandler      *handlers.SaleHandler
	AlertHandler     *handlers.AlertHandler
	UserHandler      *handlers.UserHandler
	DashboardHandler *handlers.DashboardHandler
	HealthHandler    *handlers.HealthHandler
}

// NewRouterConfig wires services and handlers around db.
func NewRouterConfig(db *gorm.DB, log logrus.FieldLogger, opts Options) *RouterConfig {
	if opts.ProfileTTL <= 0 {
		opts.ProfileTTL = 5 * time.Minute
	}
	authGate := NewAuthGate(db, opts.ProfileTTL, log)

	alerts := services.NewAlertService(db, opts.Cache, log)
	sales := services.NewSaleService(db, alerts, opts.Cache, log)
	reports := services.NewReportService(db, opts.Cache, opts.StatsTTL, log)
	catalog := services.NewCatalogService(db, alerts, log)
	clients := services.NewClientService(db, opts.PhoneRegion, log)
	users := services.NewUserService(db, log)

	reqLog := log.WithField("module", "http")
	return &RouterConfig{
		AuthGate: authGate,
		Users:    users,
		Alerts:   alerts,
		Reports:  reports,

		AuthHandler:      handlers.NewAuthHandler(users, authGate, reqLog),
		ProductHandler:   handlers.NewProductHandler(catalog, reqLog),
		ClientHandler:    handlers.NewClientHandler(clients, reqLog),
		SaleHandler:      handlers.NewSaleHandler(sales, reports, reqLog),
		AlertHandler:     handlers.NewAlertHandler(alerts, reqLog),
		UserHandler:      handlers.NewUserHandler(users, authGate, reqLog),
		DashboardHandler: handlers.NewDashboardHandler(reports, reqLog),
		HealthHandler:    handlers.NewHealthHandler(opts.Checks, reqLog),
	}
}

package main

import (
	"net/http"
	"runtime/debug"

	"github.com/diewo77/pharmacy-pos/auth"
	"github.com/diewo77/pharmacy-pos/httpx"
	"github.com/diewo77/pharmacy-pos/internal/logging"
	"github.com/diewo77/pharmacy-pos/internal/policy"
	"github.com/sirupsen/logrus"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	routerCfg *policy.RouterConfig
	handler   http.Handler
}

// NewApp creates the application with all routes and middleware configured.
// corsOrigin is the single browser origin allowed to call the API.
func NewApp(routerCfg *policy.RouterConfig, log logrus.FieldLogger, corsOrigin string) *App {
	app := &App{
		mux:       http.NewServeMux(),
		routerCfg: routerCfg,
	}
	app.setupRoutes()
	// outermost first: request id + access log, recover, CORS, auth context
	app.handler = logging.Middleware(log)(
		withRecover(log)(
			withCORS(corsOrigin)(
				auth.Middleware(app.mux))))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes
	// ─────────────────────────────────────────────────────────────────────────
	ah := a.routerCfg.AuthHandler
	hh := a.routerCfg.HealthHandler

	a.mux.HandleFunc("GET /health", hh.Live)
	a.mux.HandleFunc("GET /healthz", hh.Ready)
	a.mux.HandleFunc("POST /auth/login", ah.Login)
	a.mux.HandleFunc("POST /auth/logout", ah.Logout)
	a.mux.Handle("GET /auth/profile", auth.RequireAuth(http.HandlerFunc(ah.Profile)))

	// ─────────────────────────────────────────────────────────────────────────
	// Counter routes (auth + role permission)
	// ─────────────────────────────────────────────────────────────────────────
	ph := a.routerCfg.ProductHandler
	a.mux.Handle("GET /products", a.protect(policy.ResourceProduct, policy.ActionList, ph.List))
	a.mux.Handle("GET /products/low-stock", a.protect(policy.ResourceProduct, policy.ActionList, ph.LowStock))
	a.mux.Handle("GET /products/categories", a.protect(policy.ResourceProduct, policy.ActionList, ph.Categories))
	a.mux.Handle("POST /products", a.protect(policy.ResourceProduct, policy.ActionCreate, ph.Create))
	a.mux.Handle("GET /products/{id}", a.protect(policy.ResourceProduct, policy.ActionView, ph.Get))
	a.mux.Handle("PUT /products/{id}", a.protect(policy.ResourceProduct, policy.ActionUpdate, ph.Update))
	a.mux.Handle("DELETE /products/{id}", a.protect(policy.ResourceProduct, policy.ActionDelete, ph.Delete))

	ch := a.routerCfg.ClientHandler
	a.mux.Handle("GET /clients", a.protect(policy.ResourceClient, policy.ActionList, ch.List))
	a.mux.Handle("POST /clients", a.protect(policy.ResourceClient, policy.ActionCreate, ch.Create))
	a.mux.Handle("GET /clients/{id}", a.protect(policy.ResourceClient, policy.ActionView, ch.Get))
	a.mux.Handle("PUT /clients/{id}", a.protect(policy.ResourceClient, policy.ActionUpdate, ch.Update))
	a.mux.Handle("DELETE /clients/{id}", a.protect(policy.ResourceClient, policy.ActionDelete, ch.Delete))

	sh := a.routerCfg.SaleHandler
	a.mux.Handle("POST /sales", a.protect(policy.ResourceSale, policy.ActionCreate, sh.Create))
	a.mux.Handle("GET /sales", a.protect(policy.ResourceSale, policy.ActionList, sh.List))
	a.mux.Handle("GET /sales/stats", a.protect(policy.ResourceReport, policy.ActionView, sh.Stats))
	a.mux.Handle("GET /sales/export", a.protect(policy.ResourceSale, policy.ActionExport, sh.Export))
	a.mux.Handle("GET /sales/{id}", a.protect(policy.ResourceSale, policy.ActionView, sh.Get))

	alh := a.routerCfg.AlertHandler
	a.mux.Handle("GET /alerts", a.protect(policy.ResourceAlert, policy.ActionList, alh.List))
	a.mux.Handle("POST /alerts/scan", a.protect(policy.ResourceAlert, policy.ActionCreate, alh.Scan))
	a.mux.Handle("PUT /alerts/{id}/read", a.protect(policy.ResourceAlert, policy.ActionUpdate, alh.MarkRead))
	a.mux.Handle("DELETE /alerts/{id}", a.protect(policy.ResourceAlert, policy.ActionDelete, alh.Delete))

	a.mux.Handle("GET /dashboard", a.protect(policy.ResourceReport, policy.ActionView, a.routerCfg.DashboardHandler.Show))

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes
	// ─────────────────────────────────────────────────────────────────────────
	uh := a.routerCfg.UserHandler
	a.mux.Handle("GET /users", a.requireAdmin(uh.List))
	a.mux.Handle("POST /users", a.requireAdmin(uh.Create))
	a.mux.Handle("GET /users/{id}", a.requireAdmin(uh.Get))
	a.mux.Handle("PUT /users/{id}", a.requireAdmin(uh.Update))
	a.mux.Handle("DELETE /users/{id}", a.requireAdmin(uh.Delete))
}

// protect requires an active user holding resource:action.
func (a *App) protect(resource string, action policy.Action, h http.HandlerFunc) http.Handler {
	return auth.RequireAuth(a.routerCfg.AuthGate.RequirePermission(resource, action)(h))
}

func (a *App) requireAdmin(h http.HandlerFunc) http.Handler {
	return auth.RequireAuth(a.routerCfg.AuthGate.RequireAdmin()(h))
}

// withRecover turns a panic into a 500 envelope.
func withRecover(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithFields(logrus.Fields{
						"panic": rec,
						"path":  r.URL.Path,
						"stack": string(debug.Stack()),
					}).Error("handler panicked")
					httpx.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// withCORS allows one browser origin and answers preflight requests.
func withCORS(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin != "" && r.Header.Get("Origin") == origin {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

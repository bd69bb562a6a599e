package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/pharmacy-pos/auth"
	appdb "github.com/diewo77/pharmacy-pos/internal/db"
	"github.com/diewo77/pharmacy-pos/internal/handlers"
	"github.com/diewo77/pharmacy-pos/internal/logging"
	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/diewo77/pharmacy-pos/internal/policy"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testOrigin = "http://localhost:3000"

func setupApp(t *testing.T) (*App, *gorm.DB) {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), appdb.GormConfig(false))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := appdb.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := logging.Discard()
	cfg := policy.NewRouterConfig(conn, log, policy.Options{
		ProfileTTL: time.Minute,
		Checks: map[string]handlers.Check{
			"database": func(ctx context.Context) error { return appdb.Ping(ctx, conn) },
		},
	})
	return NewApp(cfg, log, testOrigin), conn
}

func createUser(t *testing.T, conn *gorm.DB, email string, role models.Role) models.User {
	t.Helper()
	u := models.User{Name: email, Email: email, Password: "x", Role: role, Active: true}
	if err := conn.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func bearer(t *testing.T, u models.User) string {
	t.Helper()
	tok, _, err := auth.IssueToken(u.ID, string(u.Role))
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok
}

func TestHealthRoutes(t *testing.T) {
	app, _ := setupApp(t)

	for _, path := range []string{"/health", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		app.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing request id", path)
		}
	}
}

func TestRouteProtection(t *testing.T) {
	app, conn := setupApp(t)
	admin := createUser(t, conn, "admin@pharmacy.test", models.RoleAdmin)
	seller := createUser(t, conn, "seller@pharmacy.test", models.RoleSeller)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		status int
	}{
		{"anonymous products", http.MethodGet, "/products", "", http.StatusUnauthorized},
		{"forged token", http.MethodGet, "/products", "Bearer not.a.token", http.StatusUnauthorized},
		{"seller products", http.MethodGet, "/products", bearer(t, seller), http.StatusOK},
		{"seller dashboard", http.MethodGet, "/dashboard", bearer(t, seller), http.StatusOK},
		{"seller low stock", http.MethodGet, "/products/low-stock", bearer(t, seller), http.StatusOK},
		{"seller stats", http.MethodGet, "/sales/stats", bearer(t, seller), http.StatusOK},
		{"seller users", http.MethodGet, "/users", bearer(t, seller), http.StatusForbidden},
		{"admin users", http.MethodGet, "/users", bearer(t, admin), http.StatusOK},
		{"admin self delete", http.MethodDelete, "/users/" + itoa(admin.ID), bearer(t, admin), http.StatusForbidden},
		{"profile", http.MethodGet, "/auth/profile", bearer(t, seller), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rr := httptest.NewRecorder()
			app.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestSaleThroughRouter(t *testing.T) {
	app, conn := setupApp(t)
	seller := createUser(t, conn, "seller@pharmacy.test", models.RoleSeller)
	p := models.Product{Name: "Paracetamol", Category: "analgesic", SalePrice: decimal.RequireFromString("2.50"), Stock: 5, MinStock: 4, Active: true}
	if err := conn.Create(&p).Error; err != nil {
		t.Fatal(err)
	}

	body := `{"items":[{"product_id":` + itoa(p.ID) + `,"quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, seller))
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	var env struct {
		Data struct {
			UserID uint `json:"user_id"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &env)
	if env.Data.UserID != seller.ID {
		t.Errorf("sale recorded for user %d", env.Data.UserID)
	}

	// stock 3 <= min 4 raised a low stock alert after commit
	var n int64
	conn.Model(&models.Alert{}).Where("product_id = ?", p.ID).Count(&n)
	if n != 1 {
		t.Errorf("alerts = %d, want 1", n)
	}
}

func TestCORS(t *testing.T) {
	app, _ := setupApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/products", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != testOrigin {
		t.Errorf("allow origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	rr = httptest.NewRecorder()
	app.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origin must not be allowed")
	}
}

func TestWithRecover(t *testing.T) {
	h := withRecover(logging.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"error":"internal_error"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

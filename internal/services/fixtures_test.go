package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	appdb "github.com/diewo77/pharmacy-pos/internal/db"
	"github.com/diewo77/pharmacy-pos/internal/logging"
	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid cross-test collisions.
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), appdb.GormConfig(false))
	require.NoError(t, err)
	require.NoError(t, appdb.Migrate(conn))
	return conn
}

type fixture struct {
	db      *gorm.DB
	cache   *memCache
	alerts  *AlertService
	sales   *SaleService
	reports *ReportService
	catalog *CatalogService
	clients *ClientService
	users   *UserService
	seller  models.User
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := setupTestDB(t)
	log := logging.Discard()
	f := &fixture{
		db:    conn,
		cache: newMemCache(),
		now:   time.Date(2026, 3, 18, 15, 0, 0, 0, time.Local),
	}
	clock := func() time.Time { return f.now }

	f.alerts = NewAlertService(conn, f.cache, log)
	f.alerts.now = clock
	f.sales = NewSaleService(conn, f.alerts, f.cache, log)
	f.sales.now = clock
	f.reports = NewReportService(conn, f.cache, time.Minute, log)
	f.reports.now = clock
	f.catalog = NewCatalogService(conn, f.alerts, log)
	f.clients = NewClientService(conn, "PE", log)
	f.users = NewUserService(conn, log)
	f.users.cost = bcrypt.MinCost

	f.seller = models.User{Name: "Sofia", Email: "sofia@pharmacy.test", Password: "x", Role: models.RoleSeller, Active: true}
	require.NoError(t, conn.Create(&f.seller).Error)
	return f
}

func (f *fixture) product(t *testing.T, name, price string, stock, minStock int) models.Product {
	t.Helper()
	p := models.Product{
		Name:          name,
		Category:      "general",
		PurchasePrice: decimal.Zero,
		SalePrice:     decimal.RequireFromString(price),
		Stock:         stock,
		MinStock:      minStock,
		Active:        true,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) stockOf(t *testing.T, id uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.First(&p, id).Error)
	return p.Stock
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) basket(items ...SaleItem) RegisterSaleInput {
	return RegisterSaleInput{UserID: f.seller.ID, Items: items}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// memCache is an in-process Cache that records invalidations.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes []string
	lockErr error
	locks   int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetObject(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *memCache) SetObject(_ context.Context, key string, obj any, _ time.Duration) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deletes = append(c.deletes, k)
	}
	return nil
}

func (c *memCache) Lock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	c.mu.Lock()
	c.locks++
	c.mu.Unlock()
	return func(context.Context) error { return nil }, c.lockErr
}

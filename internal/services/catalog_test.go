package services

import (
	"context"
	"testing"

	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCatalogCreate_Defaults(t *testing.T) {
	f := newFixture(t)
	p, err := f.catalog.Create(context.Background(), ProductInput{
		Name:      " Paracetamol 500mg ",
		Category:  "analgesic",
		SalePrice: dec("2.50"),
		Stock:     40,
		Barcode:   strPtr(""),
		ExpiresAt: strPtr("2027-01-31"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 500mg", p.Name)
	assert.True(t, p.Active)
	assert.Equal(t, models.DefaultMinStock, p.MinStock)
	assert.Nil(t, p.Barcode)
	require.NotNil(t, p.ExpiresAt)
	assert.Equal(t, "2027-01-31", p.ExpiresAt.Format(DateLayout))
	assert.Zero(t, f.count(t, &models.Alert{}))
}

func TestCatalogCreate_LowStockRaisesAlert(t *testing.T) {
	f := newFixture(t)
	p, err := f.catalog.Create(context.Background(), ProductInput{
		Name: "Insulin", Category: "hormone", SalePrice: dec("30"), Stock: 4, MinStock: intPtr(5),
	})
	require.NoError(t, err)

	alerts, err := f.alerts.List(context.Background(), AlertFilter{ProductID: p.ID})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertLowStock, alerts[0].Kind)
}

func TestCatalogCreate_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.catalog.Create(context.Background(), ProductInput{
		SalePrice: dec("-1"),
		Stock:     -3,
		ExpiresAt: strPtr("31/01/2027"),
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "required", ve.Violations["name"])
	assert.Equal(t, "required", ve.Violations["category"])
	assert.Equal(t, "out_of_range", ve.Violations["sale_price"])
	assert.Equal(t, "out_of_range", ve.Violations["stock"])
	assert.Equal(t, "invalid_date", ve.Violations["expires_at"])
}

func TestCatalogCreate_DuplicateBarcode(t *testing.T) {
	f := newFixture(t)
	in := ProductInput{Name: "A", Category: "x", SalePrice: dec("1"), Stock: 20, Barcode: strPtr("7750001")}
	_, err := f.catalog.Create(context.Background(), in)
	require.NoError(t, err)

	in.Name = "B"
	_, err = f.catalog.Create(context.Background(), in)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "barcode", ce.Field)
	assert.Equal(t, "barcode_already_exists", CodeOf(err))
}

func TestCatalogUpdate_Patch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Syrup", "8.00", 30, 10)

	price := dec("9.90")
	updated, err := f.catalog.Update(ctx, p.ID, ProductPatch{SalePrice: &price, Stock: intPtr(6)})
	require.NoError(t, err)
	assert.Equal(t, "Syrup", updated.Name)
	assert.True(t, updated.SalePrice.Equal(price))
	assert.Equal(t, 6, updated.Stock)

	// stock dropped under the threshold
	assert.Equal(t, int64(1), f.count(t, &models.Alert{}))

	reloaded, err := f.catalog.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, reloaded.Stock)

	_, err = f.catalog.Update(ctx, 999, ProductPatch{Name: strPtr("x")})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.catalog.Update(ctx, p.ID, ProductPatch{Name: strPtr("")})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCatalogUpdate_ClearsExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.catalog.Create(ctx, ProductInput{Name: "Drops", Category: "eye", SalePrice: dec("3"), Stock: 50, ExpiresAt: strPtr("2027-05-01")})
	require.NoError(t, err)

	updated, err := f.catalog.Update(ctx, p.ID, ProductPatch{ExpiresAt: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, updated.ExpiresAt)
}

func TestCatalogUpdate_KeepsConcurrentStockChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Ibuprofen 400mg", "3.00", 10, 2)

	// a sale committing between the edit's read and its write
	sold := false
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:sale_in_between", func(db *gorm.DB) {
		if sold || db.Statement.Table != "products" {
			return
		}
		sold = true
		require.NoError(t, db.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE products SET stock = stock - 4 WHERE id = ?", p.ID).Error)
	}))

	updated, err := f.catalog.Update(ctx, p.ID, ProductPatch{Name: strPtr("Ibuprofen 400mg tabs")})
	require.NoError(t, err)
	assert.True(t, sold)
	assert.Equal(t, "Ibuprofen 400mg tabs", updated.Name)
	assert.Equal(t, 6, updated.Stock)
	assert.Equal(t, 6, f.stockOf(t, p.ID))
}

func TestCatalogUpdate_InvalidExpiry(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Drops", "3.00", 50, 5)

	_, err := f.catalog.Update(context.Background(), p.ID, ProductPatch{ExpiresAt: strPtr("2027-13-40")})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid_date", ve.Violations["expires_at"])
}

func TestCatalogDeactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Old", "1.00", 5, 0)
	keep := f.product(t, "Kept", "1.00", 5, 0)

	require.NoError(t, f.catalog.Deactivate(ctx, p.ID))
	assert.Equal(t, KindNotFound, KindOf(f.catalog.Deactivate(ctx, 31337)))

	active, err := f.catalog.List(ctx, ProductFilter{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, keep.ID, active[0].ID)

	all, err := f.catalog.List(ctx, ProductFilter{All: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	inactive := false
	retired, err := f.catalog.List(ctx, ProductFilter{Active: &inactive})
	require.NoError(t, err)
	require.Len(t, retired, 1)
	assert.Equal(t, p.ID, retired[0].ID)

	// still readable for sale history
	got, err := f.catalog.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestCatalogList_SearchAndCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.catalog.Create(ctx, ProductInput{Name: "Amoxicillin", Category: "antibiotic", Laboratory: "Genfar", SalePrice: dec("1"), Stock: 50, Barcode: strPtr("111")})
	require.NoError(t, err)
	_, err = f.catalog.Create(ctx, ProductInput{Name: "Ibuprofen", Category: "analgesic", SalePrice: dec("1"), Stock: 50})
	require.NoError(t, err)

	byName, err := f.catalog.List(ctx, ProductFilter{Search: "amox"})
	require.NoError(t, err)
	require.Len(t, byName, 1)

	byLab, err := f.catalog.List(ctx, ProductFilter{Search: "genfar"})
	require.NoError(t, err)
	assert.Len(t, byLab, 1)

	byBarcode, err := f.catalog.List(ctx, ProductFilter{Search: "111"})
	require.NoError(t, err)
	assert.Len(t, byBarcode, 1)

	byCategory, err := f.catalog.List(ctx, ProductFilter{Category: "analgesic"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Ibuprofen", byCategory[0].Name)

	cats, err := f.catalog.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"analgesic", "antibiotic"}, cats)
}

func TestCatalogLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "Plenty", "1.00", 50, 10)
	b := f.product(t, "Scarce", "1.00", 1, 10)
	c := f.product(t, "Edge", "1.00", 10, 10)
	gone := f.product(t, "Gone", "1.00", 0, 10)
	require.NoError(t, f.catalog.Deactivate(ctx, gone.ID))

	low, err := f.catalog.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, b.ID, low[0].ID)
	assert.Equal(t, c.ID, low[1].ID)
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) expiringProduct(t *testing.T, name string, days int) models.Product {
	t.Helper()
	p := f.product(t, name, "1.00", 100, 10)
	exp := f.now.AddDate(0, 0, days)
	require.NoError(t, f.db.Model(&p).Update("expires_at", exp).Error)
	p.ExpiresAt = &exp
	return p
}

func TestEvaluateLowStock_Dedup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Aspirin", "1.00", 3, 10)

	created, err := f.alerts.EvaluateLowStock(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.alerts.EvaluateLowStock(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), f.count(t, &models.Alert{}))
}

func TestEvaluateLowStock_RetriggersAfterRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Aspirin", "1.00", 3, 10)

	_, err := f.alerts.EvaluateLowStock(ctx, p.ID)
	require.NoError(t, err)
	alerts, err := f.alerts.List(ctx, AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	read, err := f.alerts.MarkRead(ctx, alerts[0].ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	created, err := f.alerts.EvaluateLowStock(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, created)

	unread := false
	open, err := f.alerts.List(ctx, AlertFilter{Read: &unread})
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, int64(2), f.count(t, &models.Alert{}))
}

func TestEvaluateLowStock_Skips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	healthy := f.product(t, "Plenty", "1.00", 11, 10)
	inactive := f.product(t, "Retired", "1.00", 0, 10)
	require.NoError(t, f.catalog.Deactivate(ctx, inactive.ID))

	for _, id := range []uint{healthy.ID, inactive.ID} {
		created, err := f.alerts.EvaluateLowStock(ctx, id)
		require.NoError(t, err)
		assert.False(t, created)
	}
	assert.Zero(t, f.count(t, &models.Alert{}))

	_, err := f.alerts.EvaluateLowStock(ctx, 4242)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestEvaluateLowStock_ThresholdInclusive(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Edge", "1.00", 10, 10)
	created, err := f.alerts.EvaluateLowStock(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestEvaluateNearExpiry_Window(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		days int
		want bool
	}{
		{29, true},
		{30, true},
		{31, false},
		{-1, false},
	}
	for _, tc := range cases {
		p := f.expiringProduct(t, "Drops", tc.days)
		created, err := f.alerts.EvaluateNearExpiry(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, created, "expiring in %d days", tc.days)
	}
}

func TestScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	low := f.product(t, "Low", "1.00", 2, 10)
	soon := f.expiringProduct(t, "Soon", 29)
	f.expiringProduct(t, "Later", 31)
	f.expiringProduct(t, "Expired", -1)
	retired := f.product(t, "Retired", "1.00", 0, 10)
	require.NoError(t, f.catalog.Deactivate(ctx, retired.ID))

	created, err := f.alerts.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 1, f.cache.locks)

	alerts, err := f.alerts.List(ctx, AlertFilter{})
	require.NoError(t, err)
	kinds := map[uint]models.AlertKind{}
	for _, a := range alerts {
		kinds[a.ProductID] = a.Kind
	}
	assert.Equal(t, map[uint]models.AlertKind{
		low.ID:  models.AlertLowStock,
		soon.ID: models.AlertNearExpiry,
	}, kinds)

	var nearExpiry models.Alert
	require.NoError(t, f.db.Where("product_id = ?", soon.ID).First(&nearExpiry).Error)
	assert.Contains(t, nearExpiry.Message, soon.ExpiresAt.Format("02/01/2006"))

	again, err := f.alerts.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestScan_ProceedsWhenLockBusy(t *testing.T) {
	f := newFixture(t)
	f.cache.lockErr = errors.New("lock held elsewhere")
	f.product(t, "Low", "1.00", 2, 10)

	created, err := f.alerts.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestAlertList_NewestFirstAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", "1.00", 1, 10)
	b := f.product(t, "B", "1.00", 1, 10)

	_, err := f.alerts.EvaluateLowStock(ctx, a.ID)
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.alerts.EvaluateLowStock(ctx, b.ID)
	require.NoError(t, err)

	alerts, err := f.alerts.List(ctx, AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, b.ID, alerts[0].ProductID)
	require.NotNil(t, alerts[0].Product)
	assert.Equal(t, "B", alerts[0].Product.Name)

	_, err = f.alerts.MarkRead(ctx, alerts[1].ID)
	require.NoError(t, err)
	read := true
	readOnly, err := f.alerts.List(ctx, AlertFilter{Read: &read})
	require.NoError(t, err)
	require.Len(t, readOnly, 1)
	assert.Equal(t, a.ID, readOnly[0].ProductID)

	n, err := f.alerts.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	byProduct, err := f.alerts.List(ctx, AlertFilter{ProductID: a.ID, Kind: models.AlertLowStock})
	require.NoError(t, err)
	assert.Len(t, byProduct, 1)
}

func TestAlertMarkReadIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "A", "1.00", 1, 10)
	_, err := f.alerts.EvaluateLowStock(ctx, p.ID)
	require.NoError(t, err)
	alerts, err := f.alerts.List(ctx, AlertFilter{})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		a, err := f.alerts.MarkRead(ctx, alerts[0].ID)
		require.NoError(t, err)
		assert.True(t, a.Read)
	}

	_, err = f.alerts.MarkRead(ctx, 999)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "alert_not_found", nf.Code())
}

func TestAlertDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "A", "1.00", 1, 10)
	_, err := f.alerts.EvaluateLowStock(ctx, p.ID)
	require.NoError(t, err)
	alerts, err := f.alerts.List(ctx, AlertFilter{})
	require.NoError(t, err)

	require.NoError(t, f.alerts.Delete(ctx, alerts[0].ID))
	assert.Zero(t, f.count(t, &models.Alert{}))
	assert.Equal(t, KindNotFound, KindOf(f.alerts.Delete(ctx, alerts[0].ID)))

	// deleting the unread alert lets the condition raise a new one
	created, err := f.alerts.EvaluateLowStock(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, created)
}

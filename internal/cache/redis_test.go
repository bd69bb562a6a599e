package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRedisIsNoop(t *testing.T) {
	var r *Redis
	ctx := context.Background()

	var dest map[string]int
	hit, err := r.GetObject(ctx, "k", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	assert.NoError(t, r.SetObject(ctx, "k", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, r.Delete(ctx, "k"))
	assert.NoError(t, r.Ping(ctx))
	assert.NoError(t, r.Close())

	release, err := r.Lock(ctx, "scan", time.Second)
	require.NoError(t, err)
	assert.NoError(t, release(ctx))
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), "not a url")
	assert.Error(t, err)
}

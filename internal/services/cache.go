package services

import (
	"context"
	"time"
)

// Cache is the optional shared cache used for stats and the scan lock.
// *cache.Redis satisfies it.
type Cache interface {
	GetObject(ctx context.Context, key string, dest any) (bool, error)
	SetObject(ctx context.Context, key string, obj any, exp time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// statsCacheKey is scoped to the calendar day so cached totals never outlive
// the day or month they describe.
func statsCacheKey(now time.Time) string {
	return "sales:stats:" + now.Format(DateLayout)
}

type noCache struct{}

func (noCache) GetObject(context.Context, string, any) (bool, error)       { return false, nil }
func (noCache) SetObject(context.Context, string, any, time.Duration) error { return nil }
func (noCache) Delete(context.Context, ...string) error                     { return nil }
func (noCache) Lock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func orNoCache(c Cache) Cache {
	if c == nil {
		return noCache{}
	}
	return c
}

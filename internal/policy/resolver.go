package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/diewo77/pharmacy-pos/internal/models"
	"gorm.io/gorm"
)

// ProfileResolver resolves a user id to its profile. A nil profile with a
// nil error means the user has no access.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID uint) (*Profile, error)
}

// DBResolver reads the user's role from the database.
type DBResolver struct {
	db *gorm.DB
}

func NewDBResolver(db *gorm.DB) *DBResolver {
	return &DBResolver{db: db}
}

func (r *DBResolver) Resolve(ctx context.Context, userID uint) (*Profile, error) {
	var u models.User
	err := r.db.WithContext(ctx).Select("id", "role", "active").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, nil
	}
	return ProfileFor(u.Role), nil
}

// CachedResolver wraps a ProfileResolver with TTL-based caching.
// This avoids hitting the database on every authorization check.
type CachedResolver struct {
	inner ProfileResolver
	cache map[uint]cacheEntry
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	profile   *Profile
	expiresAt time.Time
}

func NewCachedResolver(inner ProfileResolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: make(map[uint]cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Resolve returns the profile for userID, using the cache if fresh.
// Users without access are cached too.
func (r *CachedResolver) Resolve(ctx context.Context, userID uint) (*Profile, error) {
	r.mu.RLock()
	entry, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && r.now().Before(entry.expiresAt) {
		return entry.profile, nil
	}

	profile, err := r.inner.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[userID] = cacheEntry{profile: profile, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()
	}
	return profile, nil
}

// Invalidate drops userID from the cache. Call it when the user's role or
// active flag changes.
func (r *CachedResolver) Invalidate(userID uint) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

func (r *CachedResolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[uint]cacheEntry)
	r.mu.Unlock()
}

package redis

import (
	"context"
	"errors"
	"time"

	"github.com/habitquest/habit-quest-hub/internal/application/query"
	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION SNAPSHOT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionCache implements query.SnapshotCache on top of Redis.
// A miss or a Redis failure reads as "no snapshot": the caller falls back
// to Postgres, so cache availability never gates the query path.
type ProgressionCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewProgressionCache creates a new ProgressionCache.
func NewProgressionCache(cache *Cache, ttl time.Duration) *ProgressionCache {
	if ttl <= 0 {
		ttl = TTLProgressionSnapshot
	}
	return &ProgressionCache{cache: cache, ttl: ttl}
}

// Get returns the cached snapshot for a user, or (nil, nil) on a miss.
func (c *ProgressionCache) Get(ctx context.Context, userID shared.UserID) (*query.ProgressionSnapshot, error) {
	var snapshot query.ProgressionSnapshot
	err := c.cache.Get(ctx, ProgressionKey(userID.String()), &snapshot)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// Set stores a snapshot with the configured TTL.
func (c *ProgressionCache) Set(ctx context.Context, snapshot *query.ProgressionSnapshot) error {
	if snapshot == nil {
		return ErrCacheNilValue
	}
	return c.cache.Set(ctx, ProgressionKey(snapshot.UserID), snapshot, c.ttl)
}

// Delete removes a user's snapshot. Event handlers call this on every
// progression change.
func (c *ProgressionCache) Delete(ctx context.Context, userID shared.UserID) error {
	return c.cache.Delete(ctx, ProgressionKey(userID.String()))
}

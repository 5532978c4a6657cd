package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewCache stores marshaled view responses in Redis, keyed by the full
// query signature. A nil *ViewCache is valid and disables caching, so
// callers never branch on configuration.
type ViewCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewViewCache creates a view cache on an existing Redis client.
func NewViewCache(redisClient *redis.Client, ttl time.Duration) *ViewCache {
	return &ViewCache{redis: redisClient, ttl: ttl}
}

// Key builds the cache key for one view request. datasetID pins entries to
// the loaded dataset so a restart with a different source misses.
func Key(datasetID, view, signature string) string {
	return fmt.Sprintf("view:%s:%s:%s", datasetID, view, signature)
}

// Get returns the cached payload for key, or false on a miss. Redis errors
// degrade to a miss; the view is simply recomputed.
func (vc *ViewCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if vc == nil {
		return nil, false
	}
	data, err := vc.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		fmt.Printf("View cache get failed: %v\n", err)
		return nil, false
	}
	return data, true
}

// Set stores a payload with the configured TTL. Errors are logged and
// dropped; caching is advisory.
func (vc *ViewCache) Set(ctx context.Context, key string, payload []byte) {
	if vc == nil {
		return
	}
	if err := vc.redis.Set(ctx, key, payload, vc.ttl).Err(); err != nil {
		fmt.Printf("View cache set failed: %v\n", err)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/apparel_tracker/internal/models"
)

const dashboardKeyPrefix = "dashboard:"

// DashboardCache stores computed dashboards per store owner in Redis.
// Redis failures are logged and treated as misses, so a cache outage only
// costs the aggregation queries.
type DashboardCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewDashboardCache creates a DashboardCache. A non-positive ttl defaults to 30s.
func NewDashboardCache(redis *RedisClient, ttl time.Duration) *DashboardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DashboardCache{redis: redis, ttl: ttl}
}

func dashboardKey(ownerID string) string {
	return dashboardKeyPrefix + ownerID
}

// Get returns the cached dashboard of ownerID, if any.
func (c *DashboardCache) Get(ctx context.Context, ownerID string) (*models.Dashboard, bool) {
	raw, err := c.redis.Get(ctx, dashboardKey(ownerID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("owner_id", ownerID).Msg("dashboard cache read failed")
		}
		return nil, false
	}

	var d models.Dashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("dashboard cache entry unreadable")
		return nil, false
	}
	return &d, true
}

// Set caches d for the configured TTL.
func (c *DashboardCache) Set(ctx context.Context, ownerID string, d *models.Dashboard) {
	raw, err := json.Marshal(d)
	if err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("failed to marshal dashboard")
		return
	}
	if err := c.redis.Set(ctx, dashboardKey(ownerID), raw, c.ttl); err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("dashboard cache write failed")
	}
}

// Invalidate drops the cached dashboard of ownerID.
func (c *DashboardCache) Invalidate(ctx context.Context, ownerID string) {
	if err := c.redis.Delete(ctx, dashboardKey(ownerID)); err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("dashboard cache invalidation failed")
	}
}

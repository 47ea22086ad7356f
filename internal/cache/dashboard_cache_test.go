package cache

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/apparel_tracker/internal/config"
	"github.com/GTDGit/apparel_tracker/internal/models"
)

// testRedis connects to REDIS_TEST_ADDR (host:port) or skips.
func testRedis(t *testing.T) *RedisClient {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	client, err := NewRedisClient(&config.RedisConfig{Host: host, Port: port, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDashboardKey(t *testing.T) {
	assert.Equal(t, "dashboard:65a000000000000000000001", dashboardKey("65a000000000000000000001"))
}

func TestNewDashboardCacheDefaultsTTL(t *testing.T) {
	c := NewDashboardCache(nil, 0)
	assert.Equal(t, 30*time.Second, c.ttl)
}

func TestDashboardCacheRoundTrip(t *testing.T) {
	client := testRedis(t)
	c := NewDashboardCache(client, time.Minute)
	ctx := context.Background()
	owner := "test-owner-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { c.Invalidate(ctx, owner) })

	_, ok := c.Get(ctx, owner)
	assert.False(t, ok)

	d := &models.Dashboard{
		TodaySales:       3,
		TodayRevenue:     decimal.RequireFromString("120.50"),
		MonthlySales:     40,
		MonthlyRevenue:   decimal.RequireFromString("1999.99"),
		TotalProducts:    12,
		LowStockProducts: 2,
		GeneratedAt:      time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	c.Set(ctx, owner, d)

	got, ok := c.Get(ctx, owner)
	require.True(t, ok)
	assert.Equal(t, d.TodaySales, got.TodaySales)
	assert.True(t, d.MonthlyRevenue.Equal(got.MonthlyRevenue))
	assert.True(t, d.GeneratedAt.Equal(got.GeneratedAt))

	c.Invalidate(ctx, owner)
	_, ok = c.Get(ctx, owner)
	assert.False(t, ok)
}

func TestDashboardCacheExpires(t *testing.T) {
	client := testRedis(t)
	c := NewDashboardCache(client, 50*time.Millisecond)
	ctx := context.Background()
	owner := "test-expiry-" + time.Now().Format("150405.000000")

	c.Set(ctx, owner, &models.Dashboard{TodaySales: 1})
	time.Sleep(150 * time.Millisecond)
	_, ok := c.Get(ctx, owner)
	assert.False(t, ok)
}

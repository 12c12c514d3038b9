package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/TenantCMS/internal/adapter/redis"
	"github.com/Strob0t/TenantCMS/internal/config"
	"github.com/Strob0t/TenantCMS/internal/port/cache/cachetest"
)

func newCache(t *testing.T) (*redis.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := redis.New(context.Background(), config.Redis{Addr: mr.Addr(), Prefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCompliance(t *testing.T) {
	c, _ := newCache(t)
	cachetest.RunComplianceTests(t, c, nil)
}

func TestRedisPrefixAndTTL(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "tenant:slug:acme", []byte(`{"id":"t1"}`), time.Minute))
	assert.True(t, mr.Exists("test:tenant:slug:acme"))

	mr.FastForward(2 * time.Minute)
	_, found, err := c.Get(ctx, "tenant:slug:acme")
	require.NoError(t, err)
	assert.False(t, found, "entry should expire")
}

func TestRedisUnavailable(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewFailsWithoutServer(t *testing.T) {
	_, err := redis.New(context.Background(), config.Redis{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

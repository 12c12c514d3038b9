// Package tiered implements a two-level (L1 + L2) cache adapter.
package tiered

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Strob0t/TenantCMS/internal/port/cache"
	"github.com/Strob0t/TenantCMS/internal/resilience"
)

// Cache combines an L1 (in-process) and L2 (remote) cache.
//
// Get checks L1 first, then L2, backfilling L1 on an L2 hit. L2 is treated
// as best effort: its errors are logged and reported as misses so an outage
// of the remote cache only costs a store round trip. With a breaker set, L2
// is skipped entirely while it is open.
type Cache struct {
	l1      cache.Cache
	l2      cache.Cache
	l1Max   time.Duration
	breaker *resilience.Breaker
}

// New creates a tiered cache. l1Max caps how long any entry lives in L1 so
// that invalidations made by other replicas through L2 are picked up.
func New(l1, l2 cache.Cache, l1Max time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Max: l1Max}
}

// WithBreaker routes L2 calls through b.
func (c *Cache) WithBreaker(b *resilience.Breaker) *Cache {
	c.breaker = b
	return c
}

func (c *Cache) remote(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

func (c *Cache) l1TTL(ttl time.Duration) time.Duration {
	if c.l1Max > 0 && (ttl <= 0 || ttl > c.l1Max) {
		return c.l1Max
	}
	return ttl
}

// Get checks L1, then L2.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	err = c.remote(func() error {
		var getErr error
		val, found, getErr = c.l2.Get(ctx, key)
		return getErr
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			slog.WarnContext(ctx, "l2 cache get failed", "key", key, "error", err)
		}
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	_ = c.l1.Set(ctx, key, val, c.l1Max)
	return val, true, nil
}

// Set writes to both levels.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.l1TTL(ttl)); err != nil {
		return err
	}
	if err := c.remote(func() error { return c.l2.Set(ctx, key, value, ttl) }); err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		slog.WarnContext(ctx, "l2 cache set failed", "key", key, "error", err)
	}
	return nil
}

// Delete removes from both levels. An L2 failure is returned because a stale
// remote entry would outlive the invalidation.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.remote(func() error { return c.l2.Delete(ctx, key) })
}

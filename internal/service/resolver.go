package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/TenantCMS/internal/adapter/metrics"
	cfotel "github.com/Strob0t/TenantCMS/internal/adapter/otel"
	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/domain/tenant"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/port/cache"
	"github.com/Strob0t/TenantCMS/internal/port/database"
)

// Resolution outcomes recorded by the resolver.
const (
	resolveOK       = "resolved"
	resolveEmpty    = "empty"
	resolveNotFound = "not_found"
	resolveClosed   = "closed"
	resolveError    = "error"
)

// TenantResolver determines which tenant a request addresses.
type TenantResolver struct {
	store   database.Store
	cache   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
}

// NewTenantResolver creates a resolver. c may be nil to disable caching.
func NewTenantResolver(store database.Store, c cache.Cache, ttl time.Duration, m *metrics.Metrics) *TenantResolver {
	return &TenantResolver{store: store, cache: c, ttl: ttl, metrics: m}
}

// ResolveAdmin returns the tenants an authenticated user's reads are scoped
// to. The selected tenant narrows the scope only when the user belongs to it.
func (r *TenantResolver) ResolveAdmin(u *user.User, selectedTenantID string) []string {
	return access.Scope(u, selectedTenantID)
}

// ResolvePublic maps the tenant header value to a tenant open to public
// reads. Any failure yields false; there is no fallback tenant.
func (r *TenantResolver) ResolvePublic(ctx context.Context, slug string) (*tenant.Tenant, bool) {
	slug = NormalizeSlug(slug)
	if slug == "" {
		r.metrics.Resolution(resolveEmpty)
		return nil, false
	}

	ctx, span := cfotel.StartResolveSpan(ctx, slug)
	t, err := r.lookup(ctx, slug)
	cfotel.EndSpan(span, err)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		r.metrics.Resolution(resolveNotFound)
		slog.DebugContext(ctx, "tenant header did not match a tenant", "slug", slug)
		return nil, false
	case err != nil:
		r.metrics.Resolution(resolveError)
		slog.WarnContext(ctx, "tenant lookup failed", "slug", slug, "error", fmt.Errorf("%w: %w", domain.ErrLookup, err))
		return nil, false
	case !t.AllowPublicRead:
		r.metrics.Resolution(resolveClosed)
		return nil, false
	}
	r.metrics.Resolution(resolveOK)
	return t, true
}

func slugKey(slug string) string {
	return cache.Key("tenant", "slug", slug)
}

func (r *TenantResolver) lookup(ctx context.Context, slug string) (*tenant.Tenant, error) {
	key := slugKey(slug)
	if r.cache != nil {
		data, ok, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "tenant cache get failed", "key", key, "error", err)
		case ok:
			var t tenant.Tenant
			if err := json.Unmarshal(data, &t); err == nil {
				return &t, nil
			}
		}
	}

	v, err, _ := r.group.Do(slug, func() (any, error) {
		t, err := r.store.GetTenantBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			if data, err := json.Marshal(t); err == nil {
				if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
					slog.WarnContext(ctx, "tenant cache set failed", "key", key, "error", err)
				}
			}
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	t := *v.(*tenant.Tenant)
	return &t, nil
}

// Invalidate drops the cached entry for slug.
func (r *TenantResolver) Invalidate(ctx context.Context, slug string) {
	if r.cache == nil || slug == "" {
		return
	}
	if err := r.cache.Delete(ctx, slugKey(slug)); err != nil {
		slog.WarnContext(ctx, "tenant cache invalidate failed", "slug", slug, "error", err)
	}
}

// NormalizeSlug trims and lowercases a tenant header value.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/TenantCMS/internal/adapter/memory"
	"github.com/Strob0t/TenantCMS/internal/adapter/metrics"
	cfnats "github.com/Strob0t/TenantCMS/internal/adapter/nats"
	"github.com/Strob0t/TenantCMS/internal/adapter/natskv"
	cfotel "github.com/Strob0t/TenantCMS/internal/adapter/otel"
	"github.com/Strob0t/TenantCMS/internal/adapter/postgres"
	"github.com/Strob0t/TenantCMS/internal/adapter/redis"
	"github.com/Strob0t/TenantCMS/internal/adapter/ristretto"
	"github.com/Strob0t/TenantCMS/internal/adapter/templates"
	"github.com/Strob0t/TenantCMS/internal/adapter/tiered"
	"github.com/Strob0t/TenantCMS/internal/config"
	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/logger"
	"github.com/Strob0t/TenantCMS/internal/port/cache"
	"github.com/Strob0t/TenantCMS/internal/port/database"
	"github.com/Strob0t/TenantCMS/internal/port/messagequeue"
	"github.com/Strob0t/TenantCMS/internal/resilience"
	"github.com/Strob0t/TenantCMS/internal/service"
)

// l1MaxTTL bounds how long a tenant stays in the in-process cache so
// invalidations from other replicas arrive through L2.
const l1MaxTTL = 15 * time.Second

// An L2 cache failing l2MaxFailures times in a row is bypassed for
// l2Cooldown.
const (
	l2MaxFailures = 5
	l2Cooldown    = 30 * time.Second
)

// tenantKVBucket is the JetStream bucket used as L2 when Redis is not set.
const tenantKVBucket = "tenantcms-tenants"

// appOptions select the infrastructure a command needs.
type appOptions struct {
	// memory replaces PostgreSQL with the in-memory store.
	memory bool
	// events connects NATS and caches; admin commands run without them.
	events bool
}

// app holds the wired infrastructure and services shared by all commands.
type app struct {
	cfg *config.Config

	pool    *pgxpool.Pool
	store   database.Store
	pg      *postgres.Store
	redis   *redis.Cache
	queue   *cfnats.Queue
	metrics *metrics.Metrics

	templates *templates.Registry
	resolver  *service.TenantResolver
	access    *service.AccessService
	content   *service.ContentService
	tenants   *service.TenantService
	users     *service.UserService
	auth      *service.AuthService
	seeder    *service.Seeder

	closers []func()
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig(path string) (*config.Config, logger.Closer, error) {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, closer := logger.New(cfg.Logging)
	slog.SetDefault(log)
	return cfg, closer, nil
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if opts.memory {
		a.store = memory.New()
		slog.Warn("using in-memory store, data is lost on exit")
	} else {
		a.pool, err = postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, a.pool.Close)
		a.pg = postgres.NewStore(a.pool)
		a.store = a.pg
		slog.Info("postgres connected")
	}

	var queue messagequeue.Queue
	var tenantCache cache.Cache
	if opts.events {
		if cfg.NATS.URL != "" {
			a.queue, err = cfnats.Connect(ctx, cfg.NATS.URL)
			if err != nil {
				return nil, fmt.Errorf("nats: %w", err)
			}
			a.closers = append(a.closers, func() { _ = a.queue.Close() })
			queue = a.queue
		}
		tenantCache, err = a.buildCache(ctx)
		if err != nil {
			return nil, err
		}
	}

	a.templates, err = templates.Load(cfg.Tenancy.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	otelMetrics, err := cfotel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}

	a.resolver = service.NewTenantResolver(a.store, tenantCache, cfg.Tenancy.CacheTTL, a.metrics)
	a.access = service.NewAccessService(a.resolver, a.metrics)
	a.content = service.NewContentService(a.store, a.access,
		service.NewConsistencyValidator(a.store, cfg.Tenancy.MultiTenantDefault),
		service.NewSlugValidator(a.store), queue, otelMetrics)
	a.auth = service.NewAuthService(a.store, &cfg.Auth)
	a.users = service.NewUserService(a.store, a.access, a.auth)
	a.tenants = service.NewTenantService(a.store, a.access, a.resolver, queue, cfg.Tenancy.SeedTemplate)
	a.seeder = service.NewSeeder(a.store, a.content, a.templates, otelMetrics)
	a.tenants.SetSeeder(a.seeder)
	return a, nil
}

// buildCache assembles the tenant cache: ristretto in process, backed by
// Redis or, failing that, a NATS KV bucket.
func (a *app) buildCache(ctx context.Context) (cache.Cache, error) {
	l1, err := ristretto.New(a.cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	a.closers = append(a.closers, l1.Close)

	switch {
	case a.cfg.Redis.Addr != "":
		a.redis, err = redis.New(ctx, a.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
		slog.Info("tenant cache", "l1", "ristretto", "l2", "redis")
		return tiered.New(l1, a.redis, l1MaxTTL).WithBreaker(resilience.NewBreaker("redis", l2MaxFailures, l2Cooldown)), nil
	case a.queue != nil:
		kv, err := a.queue.KeyValue(ctx, tenantKVBucket, a.cfg.Tenancy.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("nats kv: %w", err)
		}
		slog.Info("tenant cache", "l1", "ristretto", "l2", "nats-kv")
		return tiered.New(l1, natskv.New(kv), l1MaxTTL).WithBreaker(resilience.NewBreaker("nats-kv", l2MaxFailures, l2Cooldown)), nil
	default:
		slog.Info("tenant cache", "l1", "ristretto")
		return l1, nil
	}
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// systemPrincipal acts for the operator running an admin command.
func systemPrincipal() access.Principal {
	return access.As(&user.User{ID: "system", Name: "tenantcms cli", Roles: []user.Role{user.RoleSuperAdmin}})
}

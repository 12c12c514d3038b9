package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cfhttp "github.com/Strob0t/TenantCMS/internal/adapter/http"
	cfotel "github.com/Strob0t/TenantCMS/internal/adapter/otel"
	"github.com/Strob0t/TenantCMS/internal/adapter/postgres"
	"github.com/Strob0t/TenantCMS/internal/middleware"
	"github.com/Strob0t/TenantCMS/internal/port/messagequeue"
)

// Idle login limiter entries are swept every limiterCleanupInterval once
// unused for limiterMaxIdle.
const (
	limiterCleanupInterval = 5 * time.Minute
	limiterMaxIdle         = 15 * time.Minute
)

func serveCmd(configPath *string) *cobra.Command {
	var (
		inMemory bool
		migrate  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long:  "Run the TenantCMS HTTP API with tenant resolution, access control and seeding",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logCloser, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logCloser.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("config loaded",
				"port", cfg.Server.Port,
				"log_level", cfg.Logging.Level,
				"memory", inMemory,
				"nats", cfg.NATS.URL != "",
				"redis", cfg.Redis.Addr != "",
			)

			shutdownOTEL, err := cfotel.Init(ctx, cfg.OTEL)
			if err != nil {
				return fmt.Errorf("otel: %w", err)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := shutdownOTEL(sctx); err != nil {
					slog.Error("otel shutdown failed", "error", err)
				}
			}()

			if !inMemory && migrate {
				if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
					return fmt.Errorf("migrations: %w", err)
				}
				slog.Info("migrations applied")
			}

			a, err := newApp(ctx, cfg, appOptions{memory: inMemory, events: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.auth.SeedSuperAdmin(ctx); err != nil {
				return err
			}

			if a.queue != nil {
				cancelSeed, err := a.queue.Subscribe(ctx, messagequeue.SubjectTenantCreated, a.seeder.HandleTenantCreated)
				if err != nil {
					return fmt.Errorf("seed subscriber: %w", err)
				}
				defer cancelSeed()
			}

			var loginLimit *middleware.RateLimiter
			if cfg.Auth.LoginRate > 0 {
				loginLimit = middleware.NewRateLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst)
				stopCleanup := loginLimit.StartCleanup(limiterCleanupInterval, limiterMaxIdle)
				defer stopCleanup()
			}

			handlers := &cfhttp.Handlers{
				Content:              a.content,
				Tenants:              a.tenants,
				Users:                a.users,
				Auth:                 a.auth,
				Metrics:              a.metrics.Handler(),
				Probes:               a.readiness(),
				SelectedTenantCookie: cfg.Tenancy.SelectedTenantCookie,
				SecureCookies:        !inMemory,
			}
			traceService := ""
			if cfg.OTEL.Enabled {
				traceService = cfg.OTEL.ServiceName
			}
			router := cfhttp.NewRouter(handlers, cfhttp.RouterConfig{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				TenantHeaders:  cfg.Tenancy.HeaderNames,
				TenantCookie:   cfg.Tenancy.SelectedTenantCookie,
				RequestTimeout: cfg.Server.RequestTimeout,
				TraceService:   traceService,
				Metrics:        a.metrics,
				LoginLimiter:   loginLimit,
			})

			addr := ":" + cfg.Server.Port
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       cfg.Server.ReadTimeout,
				WriteTimeout:      cfg.Server.WriteTimeout,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("starting server", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server: %w", err)
			case <-ctx.Done():
			}
			slog.Info("shutting down server")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&inMemory, "memory", false, "use the in-memory store instead of PostgreSQL")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations on startup")
	return cmd
}

// readiness lists the dependencies probed by /health/ready.
func (a *app) readiness() map[string]cfhttp.Pinger {
	checks := map[string]cfhttp.Pinger{}
	if a.pg != nil {
		checks["postgres"] = a.pg
	}
	if a.redis != nil {
		checks["redis"] = a.redis
	}
	if a.queue != nil {
		checks["nats"] = cfhttp.PingFunc(func(context.Context) error {
			if !a.queue.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		})
	}
	return checks
}

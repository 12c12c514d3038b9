package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/TenantCMS/internal/adapter/metrics"
	cfotel "github.com/Strob0t/TenantCMS/internal/adapter/otel"
	"github.com/Strob0t/TenantCMS/internal/middleware"
)

// RouterConfig configures the middleware stack built by NewRouter.
type RouterConfig struct {
	AllowedOrigins []string
	TenantHeaders  []string
	TenantCookie   string
	RequestTimeout time.Duration
	// TraceService names HTTP spans; empty disables the tracing middleware.
	TraceService string
	Metrics      *metrics.Metrics
	LoginLimiter *middleware.RateLimiter
}

// NewRouter assembles the middleware chain and mounts every route.
func NewRouter(h *Handlers, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	if cfg.TraceService != "" {
		r.Use(cfotel.HTTPMiddleware(cfg.TraceService))
	}
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.AllowedOrigins, cfg.TenantHeaders))
	r.Use(middleware.Tenant(cfg.TenantHeaders, cfg.TenantCookie))
	r.Use(Logger)
	r.Use(cfg.Metrics.Middleware)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.Auth(h.Auth))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	MountRoutes(r, h, cfg.LoginLimiter)
	return r
}

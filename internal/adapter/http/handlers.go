package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/TenantCMS/internal/service"
)

// Pinger is a dependency probed by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Handlers holds the services the HTTP API delegates to.
type Handlers struct {
	Content *service.ContentService
	Tenants *service.TenantService
	Users   *service.UserService
	Auth    *service.AuthService

	// Metrics serves /metrics; nil disables the endpoint.
	Metrics http.Handler
	// Probes maps dependency names to readiness probes.
	Probes map[string]Pinger

	// SelectedTenantCookie is the cookie the admin UI uses to narrow the
	// working tenant.
	SelectedTenantCookie string
	// SecureCookies marks cookies Secure; off for plain-HTTP development.
	SecureCookies bool
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TenantCMS/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router. loginLimit
// may be nil to leave the login endpoint unthrottled.
func MountRoutes(r chi.Router, h *Handlers, loginLimit *middleware.RateLimiter) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// Auth
		r.Route("/auth", func(r chi.Router) {
			var login http.Handler = http.HandlerFunc(h.Login)
			if loginLimit != nil {
				login = loginLimit.Handler(login)
			}
			r.Method(http.MethodPost, "/login", login)
			r.With(middleware.RequireUser).Get("/me", h.Me)
			r.With(middleware.RequireUser).Post("/tenant", h.SelectTenant)
		})

		// Tenants (anonymous callers see tenants open for public reads)
		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", handleFind(h.Tenants.Find))
			r.Post("/", handleCreate(h.Tenants.Create))
			r.Get("/{id}", handleGet(h.Tenants.Get, "tenant not found"))
			r.Patch("/{id}", handleUpdate(h.Tenants.Update, "tenant not found"))
			r.Delete("/{id}", handleDelete(h.Tenants.Delete, "tenant not found"))
			r.Post("/{id}/seed", h.SeedTenant)
		})

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Get("/", handleFind(h.Users.Find))
			r.Post("/", handleCreate(h.Users.Create))
			r.Get("/{id}", handleGet(h.Users.Get, "user not found"))
			r.Patch("/{id}", handleUpdate(h.Users.Update, "user not found"))
			r.Delete("/{id}", handleDelete(h.Users.Delete, "user not found"))
		})

		// Tenant-scoped content: pages, posts, page-types, media
		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", h.FindDocuments)
			r.Post("/", h.CreateDocument)
			r.Get("/{id}", h.GetDocument)
			r.Patch("/{id}", h.UpdateDocument)
			r.Delete("/{id}", h.DeleteDocument)
		})
	})
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/logger"
)

// DefaultTenantHeader is the public tenant header when none is configured.
const DefaultTenantHeader = "X-Tenant-Slug"

type tenantSlugCtxKey struct{}
type selectedTenantCtxKey struct{}

// Tenant captures the addressed tenant of a request. The slug comes from the
// first non-empty header among headerNames (matched case-insensitively) and
// is trimmed and lowercased. The admin UI's selected tenant ID comes from the
// named cookie. Neither value grants anything; the access policy decides.
func Tenant(headerNames []string, cookieName string) func(http.Handler) http.Handler {
	if len(headerNames) == 0 {
		headerNames = []string{DefaultTenantHeader}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if slug := headerSlug(r.Header, headerNames); slug != "" {
				ctx = context.WithValue(ctx, tenantSlugCtxKey{}, slug)
				ctx = logger.WithTenant(ctx, slug)
			}
			if cookieName != "" {
				if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
					ctx = context.WithValue(ctx, selectedTenantCtxKey{}, strings.TrimSpace(c.Value))
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func headerSlug(h http.Header, names []string) string {
	for _, name := range names {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

// TenantSlugFromContext returns the tenant slug from the request header, or "".
func TenantSlugFromContext(ctx context.Context) string {
	slug, _ := ctx.Value(tenantSlugCtxKey{}).(string)
	return slug
}

// SelectedTenantFromContext returns the tenant ID from the selected-tenant
// cookie, or "".
func SelectedTenantFromContext(ctx context.Context) string {
	id, _ := ctx.Value(selectedTenantCtxKey{}).(string)
	return id
}

// PrincipalFromContext assembles the caller identity the services decide on.
func PrincipalFromContext(ctx context.Context) access.Principal {
	return access.Principal{
		User:             UserFromContext(ctx),
		TenantSlug:       TenantSlugFromContext(ctx),
		SelectedTenantID: SelectedTenantFromContext(ctx),
	}
}

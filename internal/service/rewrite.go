package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
)

// FilterRewriter removes caller filter clauses that public requests may not
// use to select tenants. Filtering through the tenant relation would let an
// anonymous caller address a tenant other than the one in its header.
type FilterRewriter struct{}

// Rewrite returns w without any "tenant.<field>" clause when p is anonymous.
// Authenticated filters are returned unchanged.
func (FilterRewriter) Rewrite(ctx context.Context, p access.Principal, w query.Where) query.Where {
	if !p.IsAnonymous() {
		return w
	}
	out, removed := w.Without(func(path string) bool {
		return strings.HasPrefix(path, access.FieldTenant+".")
	})
	for _, path := range removed {
		slog.WarnContext(ctx, "removed tenant relation filter from public query", "path", path)
	}
	return out
}

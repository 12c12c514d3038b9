package service

import (
	"context"
	"log/slog"

	"github.com/Strob0t/TenantCMS/internal/adapter/metrics"
	cfotel "github.com/Strob0t/TenantCMS/internal/adapter/otel"
	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/domain/content"
)

// Collections governed by the policy besides the content collections.
const (
	CollectionTenants = "tenants"
	CollectionUsers   = "users"
)

// AccessRequest describes the operation under evaluation.
type AccessRequest struct {
	Collection string
	Op         access.Operation
	// TargetID is the record ID for by-ID operations.
	TargetID string
	// DeclaredTenant is the tenant named in a write payload, empty if omitted.
	DeclaredTenant string
}

// AccessService evaluates the access policy. It resolves the public tenant
// for anonymous reads and records every decision.
type AccessService struct {
	resolver *TenantResolver
	metrics  *metrics.Metrics
}

// NewAccessService creates an AccessService.
func NewAccessService(resolver *TenantResolver, m *metrics.Metrics) *AccessService {
	return &AccessService{resolver: resolver, metrics: m}
}

// Decide returns the policy decision for req.
func (s *AccessService) Decide(ctx context.Context, p access.Principal, req AccessRequest) access.Decision {
	ctx, span := cfotel.StartDecisionSpan(ctx, req.Collection, string(req.Op))
	defer span.End()

	d := s.decide(ctx, p, req)
	s.metrics.Decision(req.Collection, string(req.Op), d.String())
	slog.DebugContext(ctx, "access decision",
		"collection", req.Collection,
		"operation", req.Op,
		"target", req.TargetID,
		"outcome", d.String(),
	)
	return d
}

func (s *AccessService) decide(ctx context.Context, p access.Principal, req AccessRequest) access.Decision {
	switch req.Collection {
	case CollectionTenants:
		if req.Op == access.OpRead {
			return access.ReadTenants(p)
		}
		return access.MutateTenants(req.Op, p)
	case CollectionUsers:
		if req.Op == access.OpRead {
			return access.ReadUsers(p, req.TargetID)
		}
		return access.MutateUsers(req.Op, p, req.TargetID)
	}

	c, ok := content.ParseCollection(req.Collection)
	if !ok {
		return access.Deny()
	}
	if req.Op != access.OpRead {
		return access.MutateScoped(req.Op, p, req.DeclaredTenant, req.TargetID)
	}
	if c == content.CollectionPageTypes {
		return access.ReadPageTypes(p)
	}
	var publicID string
	if p.IsAnonymous() {
		if t, ok := s.resolver.ResolvePublic(ctx, p.TenantSlug); ok {
			publicID = t.ID
		}
	}
	return access.ReadScoped(p, publicID)
}

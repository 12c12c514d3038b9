package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/domain/tenant"
	"github.com/Strob0t/TenantCMS/internal/port/database"
	"github.com/Strob0t/TenantCMS/internal/port/messagequeue"
)

// TenantList is one page of tenants.
type TenantList struct {
	Docs      []tenant.Tenant `json:"docs"`
	TotalDocs int             `json:"total_docs"`
	Limit     int             `json:"limit"`
	Page      int             `json:"page"`
}

// TenantService manages the tenant lifecycle under the tenants policy.
type TenantService struct {
	store    database.Store
	access   *AccessService
	resolver *TenantResolver
	queue    messagequeue.Queue
	seeder   *Seeder
	// defaultTemplate is applied when a create request names none.
	defaultTemplate string
}

// NewTenantService creates a TenantService. queue may be nil, in which case
// seeding requested at creation runs inline.
func NewTenantService(store database.Store, accessSvc *AccessService, resolver *TenantResolver, queue messagequeue.Queue, defaultTemplate string) *TenantService {
	return &TenantService{
		store:           store,
		access:          accessSvc,
		resolver:        resolver,
		queue:           queue,
		defaultTemplate: defaultTemplate,
	}
}

// SetSeeder wires the seeder used for inline seeding. The seeder depends on
// the content service, which is built after the tenant service.
func (s *TenantService) SetSeeder(seeder *Seeder) {
	s.seeder = seeder
}

// Create validates and stores a new tenant. Only super-admins may create
// tenants.
func (s *TenantService) Create(ctx context.Context, p access.Principal, req *tenant.CreateRequest) (*tenant.Tenant, error) {
	if s.access.Decide(ctx, p, AccessRequest{Collection: CollectionTenants, Op: access.OpCreate}).Denied() {
		return nil, fmt.Errorf("create tenant: %w", domain.ErrForbidden)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t := req.Tenant()
	if err := s.store.CreateTenant(ctx, t); err != nil {
		return nil, fmt.Errorf("create tenant %s: %w", t.Slug, err)
	}
	slog.InfoContext(ctx, "tenant created", "tenant_id", t.ID, "slug", t.Slug)

	tmpl := req.Template
	if tmpl == "" {
		tmpl = s.defaultTemplate
	}
	s.created(ctx, p, t, tmpl)
	return t, nil
}

// created announces a new tenant. Without a queue the template is seeded in
// the request; seeding failures never undo the tenant.
func (s *TenantService) created(ctx context.Context, p access.Principal, t *tenant.Tenant, tmpl string) {
	if s.queue != nil {
		s.publish(ctx, messagequeue.SubjectTenantCreated, messagequeue.TenantEventPayload{
			TenantID: t.ID, Slug: t.Slug, Template: tmpl, ActorID: p.ActorID(),
		})
		return
	}
	if tmpl == "" || s.seeder == nil {
		return
	}
	if _, err := s.seeder.Seed(ctx, p, t.ID, tmpl); err != nil {
		slog.ErrorContext(ctx, "inline tenant seeding failed", "tenant_id", t.ID, "template", tmpl, "error", err)
	}
}

// Seed re-runs a seed template on the tenant id. The caller must be allowed
// to update the tenant; the seeded documents then pass the content policy as
// p. An empty name selects the configured default template.
func (s *TenantService) Seed(ctx context.Context, p access.Principal, id, name string) (*SeedReport, error) {
	if s.seeder == nil {
		return nil, errors.New("seeding is not configured")
	}
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: CollectionTenants, Op: access.OpUpdate, TargetID: id})
	t, err := s.scoped(ctx, dec, access.OpUpdate, id)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = s.defaultTemplate
	}
	if name == "" {
		return nil, domain.NewValidationError("template", "template is required")
	}
	return s.seeder.Seed(ctx, p, t.ID, name)
}

// Find lists the tenants visible to p.
func (s *TenantService) Find(ctx context.Context, p access.Principal, params FindParams) (*TenantList, error) {
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: CollectionTenants, Op: access.OpRead})
	w, ok := dec.Constrain(params.Where)
	if !ok {
		return nil, fmt.Errorf("read tenants: %w", domain.ErrForbidden)
	}
	params.normalize()
	docs, total, err := s.store.FindTenants(ctx, database.Query{
		Where:  w,
		Limit:  params.Limit,
		Offset: (params.Page - 1) * params.Limit,
		Sort:   params.Sort,
	})
	if err != nil {
		return nil, fmt.Errorf("find tenants: %w", err)
	}
	return &TenantList{Docs: docs, TotalDocs: total, Limit: params.Limit, Page: params.Page}, nil
}

// Get returns the tenant id if p may read it.
func (s *TenantService) Get(ctx context.Context, p access.Principal, id string) (*tenant.Tenant, error) {
	return s.scoped(ctx, s.access.Decide(ctx, p, AccessRequest{Collection: CollectionTenants, Op: access.OpRead, TargetID: id}), access.OpRead, id)
}

func (s *TenantService) scoped(ctx context.Context, dec access.Decision, op access.Operation, id string) (*tenant.Tenant, error) {
	if dec.Denied() {
		return nil, fmt.Errorf("%s tenant: %w", op, domain.ErrForbidden)
	}
	if !dec.IsFilter() {
		return s.store.GetTenant(ctx, id)
	}
	w, _ := dec.Constrain(query.Equals(access.FieldID, id))
	found, _, err := s.store.FindTenants(ctx, database.Query{Where: w, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
	}
	return &found[0], nil
}

// Update applies req to the tenant id.
func (s *TenantService) Update(ctx context.Context, p access.Principal, id string, req *tenant.UpdateRequest) (*tenant.Tenant, error) {
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: CollectionTenants, Op: access.OpUpdate, TargetID: id})
	t, err := s.scoped(ctx, dec, access.OpUpdate, id)
	if err != nil {
		return nil, err
	}
	oldSlug := t.Slug
	if err := req.Apply(t); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return nil, fmt.Errorf("update tenant %s: %w", id, err)
	}

	s.resolver.Invalidate(ctx, oldSlug)
	if t.Slug != oldSlug {
		s.resolver.Invalidate(ctx, t.Slug)
	}
	s.publish(ctx, messagequeue.SubjectTenantUpdated, messagequeue.TenantEventPayload{
		TenantID: t.ID, Slug: t.Slug, ActorID: p.ActorID(),
	})
	return t, nil
}

// Delete removes the tenant id together with everything it owns.
func (s *TenantService) Delete(ctx context.Context, p access.Principal, id string) error {
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: CollectionTenants, Op: access.OpDelete, TargetID: id})
	t, err := s.scoped(ctx, dec, access.OpDelete, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTenant(ctx, id); err != nil {
		return fmt.Errorf("delete tenant %s: %w", id, err)
	}
	s.resolver.Invalidate(ctx, t.Slug)
	slog.InfoContext(ctx, "tenant deleted", "tenant_id", id, "slug", t.Slug)
	s.publish(ctx, messagequeue.SubjectTenantDeleted, messagequeue.TenantEventPayload{
		TenantID: t.ID, Slug: t.Slug, ActorID: p.ActorID(),
	})
	return nil
}

func (s *TenantService) publish(ctx context.Context, subject string, payload messagequeue.TenantEventPayload) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal tenant event", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.ErrorContext(ctx, "publish tenant event", "subject", subject, "tenant_id", payload.TenantID, "error", err)
	}
}

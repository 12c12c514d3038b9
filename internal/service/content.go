package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	cfotel "github.com/Strob0t/TenantCMS/internal/adapter/otel"
	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/domain/content"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/port/database"
	"github.com/Strob0t/TenantCMS/internal/port/messagequeue"
)

// Paging limits for list queries.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Document events.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// FindParams are the caller-controlled parts of a list query.
type FindParams struct {
	Where query.Where
	Limit int
	Page  int
	Sort  string
	// Depth > 0 populates the tenant and page type relations.
	Depth int
}

func (p *FindParams) normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	p.Limit = min(p.Limit, MaxLimit)
	p.Page = max(p.Page, 1)
}

// FindResult is one page of documents.
type FindResult struct {
	Docs        []content.Document `json:"docs"`
	TotalDocs   int                `json:"total_docs"`
	Limit       int                `json:"limit"`
	Page        int                `json:"page"`
	TotalPages  int                `json:"total_pages"`
	HasNextPage bool               `json:"has_next_page"`
}

// ContentService runs reads and writes on the tenant-scoped collections with
// the access policy and the write validators applied.
type ContentService struct {
	store       database.Store
	access      *AccessService
	consistency *ConsistencyValidator
	slugs       *SlugValidator
	rewriter    FilterRewriter
	queue       messagequeue.Queue
	metrics     *cfotel.Metrics
}

// NewContentService creates a ContentService. queue and m may be nil.
func NewContentService(
	store database.Store,
	accessSvc *AccessService,
	consistency *ConsistencyValidator,
	slugs *SlugValidator,
	queue messagequeue.Queue,
	m *cfotel.Metrics,
) *ContentService {
	return &ContentService{
		store:       store,
		access:      accessSvc,
		consistency: consistency,
		slugs:       slugs,
		queue:       queue,
		metrics:     m,
	}
}

func forbidden(op access.Operation, c content.Collection) error {
	return fmt.Errorf("%s %s: %w", op, c, domain.ErrForbidden)
}

// Find lists the documents of c visible to p.
func (s *ContentService) Find(ctx context.Context, p access.Principal, c content.Collection, params FindParams) (*FindResult, error) {
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: string(c), Op: access.OpRead})
	w, ok := dec.Constrain(s.rewriter.Rewrite(ctx, p, params.Where))
	if !ok {
		return nil, forbidden(access.OpRead, c)
	}
	params.normalize()

	docs, total, err := s.store.FindDocuments(ctx, c, database.Query{
		Where:  w,
		Limit:  params.Limit,
		Offset: (params.Page - 1) * params.Limit,
		Sort:   params.Sort,
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c, err)
	}
	if params.Depth > 0 {
		if err := s.populate(ctx, p, docs); err != nil {
			return nil, err
		}
	}

	pages := (total + params.Limit - 1) / params.Limit
	return &FindResult{
		Docs:        docs,
		TotalDocs:   total,
		Limit:       params.Limit,
		Page:        params.Page,
		TotalPages:  pages,
		HasNextPage: params.Page < pages,
	}, nil
}

// FindByID returns one document of c if p may read it.
func (s *ContentService) FindByID(ctx context.Context, p access.Principal, c content.Collection, id string, depth int) (*content.Document, error) {
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: string(c), Op: access.OpRead, TargetID: id})
	if dec.Denied() {
		return nil, forbidden(access.OpRead, c)
	}
	d, err := s.scoped(ctx, c, id, dec)
	if err != nil {
		return nil, err
	}
	if depth > 0 {
		docs := []content.Document{*d}
		if err := s.populate(ctx, p, docs); err != nil {
			return nil, err
		}
		d = &docs[0]
	}
	return d, nil
}

// scoped loads id from c, reporting not found when a filter decision
// excludes it.
func (s *ContentService) scoped(ctx context.Context, c content.Collection, id string, dec access.Decision) (*content.Document, error) {
	if !dec.IsFilter() {
		return s.store.GetDocument(ctx, c, id)
	}
	w, _ := dec.Constrain(query.Equals(access.FieldID, id))
	docs, _, err := s.store.FindDocuments(ctx, c, database.Query{Where: w, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.Noun(), id, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("get %s %s: %w", c.Noun(), id, domain.ErrNotFound)
	}
	return &docs[0], nil
}

// Create validates and stores a new document in c.
func (s *ContentService) Create(ctx context.Context, p access.Principal, c content.Collection, in *content.Input) (*content.Document, error) {
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: string(c), Op: access.OpCreate, DeclaredTenant: in.Tenant.ID()})
	if dec.Denied() {
		return nil, forbidden(access.OpCreate, c)
	}

	d := &content.Document{Collection: c}
	in.Apply(d)
	content.Prepare(d)
	if err := s.validate(ctx, p, d, in.Tenant, nil); err != nil {
		return nil, err
	}

	if err := s.store.CreateDocument(ctx, d); err != nil {
		return nil, s.commitErr(d, err)
	}
	s.publish(ctx, p, d, EventCreated)
	return d, nil
}

// Update applies in to the document id of c.
func (s *ContentService) Update(ctx context.Context, p access.Principal, c content.Collection, id string, in *content.Input) (*content.Document, error) {
	dec := s.access.Decide(ctx, p, AccessRequest{
		Collection: string(c), Op: access.OpUpdate, TargetID: id, DeclaredTenant: in.Tenant.ID(),
	})
	if dec.Denied() {
		return nil, forbidden(access.OpUpdate, c)
	}
	existing, err := s.scoped(ctx, c, id, dec)
	if err != nil {
		return nil, err
	}

	d := *existing
	in.Apply(&d)
	if err := s.validate(ctx, p, &d, in.Tenant, existing); err != nil {
		return nil, err
	}

	if err := s.store.UpdateDocument(ctx, &d); err != nil {
		return nil, s.commitErr(&d, err)
	}
	s.publish(ctx, p, &d, EventUpdated)
	return &d, nil
}

// Delete removes the document id of c.
func (s *ContentService) Delete(ctx context.Context, p access.Principal, c content.Collection, id string) error {
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: string(c), Op: access.OpDelete, TargetID: id})
	if dec.Denied() {
		return forbidden(access.OpDelete, c)
	}
	d, err := s.scoped(ctx, c, id, dec)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, c, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", c.Noun(), id, err)
	}
	s.publish(ctx, p, d, EventDeleted)
	return nil
}

// validate runs the pre-commit checks. The owning tenant is settled first and
// the caller must be allowed to write to it.
func (s *ContentService) validate(ctx context.Context, p access.Principal, d *content.Document, declared domain.Ref, existing *content.Document) (err error) {
	ctx, span := cfotel.StartValidateSpan(ctx, string(d.Collection), d.ID)
	defer func() {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			s.metrics.ValidationFailed(ctx, string(d.Collection), ve.Field)
		}
		cfotel.EndSpan(span, err)
	}()

	if err := s.consistency.Check(ctx, p, d, declared, existing); err != nil {
		return err
	}
	if !p.IsSuperAdmin() && !p.User.Administers(d.TenantID()) {
		return fmt.Errorf("write %s to tenant %s: %w", d.Collection, d.TenantID(), domain.ErrForbidden)
	}
	if err := content.Validate(d); err != nil {
		return err
	}
	return s.slugs.Check(ctx, p, d, existing)
}

func (s *ContentService) commitErr(d *content.Document, err error) error {
	if errors.Is(err, domain.ErrDuplicate) && d.Collection.HasSlug() {
		slog.Warn("unique index rejected write after validation", "collection", d.Collection, "tenant", d.TenantID(), "slug", d.Slug)
		return ConflictError(d)
	}
	return fmt.Errorf("save %s: %w", d.Collection.Noun(), err)
}

// populate expands the tenant and page type relations of docs. Each relation
// is expanded only where p may read the related record; others stay bare IDs.
func (s *ContentService) populate(ctx context.Context, p access.Principal, docs []content.Document) error {
	tenantIDs := make([]string, 0, len(docs))
	pageTypeIDs := make([]string, 0, len(docs))
	for i := range docs {
		if id := docs[i].TenantID(); id != "" {
			tenantIDs = append(tenantIDs, id)
		}
		if id := docs[i].PageType.ID(); id != "" {
			pageTypeIDs = append(pageTypeIDs, id)
		}
	}

	tenants := map[string]map[string]any{}
	if len(tenantIDs) > 0 {
		dec := s.access.Decide(ctx, p, AccessRequest{Collection: CollectionTenants, Op: access.OpRead})
		if w, ok := dec.Constrain(query.In(access.FieldID, tenantIDs...)); ok {
			found, _, err := s.store.FindTenants(ctx, database.Query{Where: w})
			if err != nil {
				return fmt.Errorf("populate tenants: %w", err)
			}
			for i := range found {
				tenants[found[i].ID] = found[i].Summary()
			}
		}
	}

	pageTypes := map[string]map[string]any{}
	if len(pageTypeIDs) > 0 {
		dec := s.access.Decide(ctx, p, AccessRequest{Collection: string(content.CollectionPageTypes), Op: access.OpRead})
		if w, ok := dec.Constrain(query.In(access.FieldID, pageTypeIDs...)); ok {
			found, _, err := s.store.FindDocuments(ctx, content.CollectionPageTypes, database.Query{Where: w})
			if err != nil {
				return fmt.Errorf("populate page types: %w", err)
			}
			for i := range found {
				pageTypes[found[i].ID] = pageTypeSummary(&found[i])
			}
		}
	}

	for i := range docs {
		if doc, ok := tenants[docs[i].TenantID()]; ok {
			docs[i].Tenant = domain.Expanded(docs[i].TenantID(), doc)
		}
		if doc, ok := pageTypes[docs[i].PageType.ID()]; ok {
			docs[i].PageType = domain.Expanded(docs[i].PageType.ID(), doc)
		}
	}
	return nil
}

func pageTypeSummary(d *content.Document) map[string]any {
	m := map[string]any{"name": d.Name, "slug": d.Slug, "is_default": d.IsDefault}
	if len(d.Fields) > 0 {
		m["fields"] = json.RawMessage(d.Fields)
	}
	return m
}

func (s *ContentService) publish(ctx context.Context, p access.Principal, d *content.Document, event string) {
	if s.queue == nil {
		return
	}
	subject := messagequeue.ContentSubject(string(d.Collection), event)
	data, err := json.Marshal(messagequeue.ContentEventPayload{
		Collection: string(d.Collection),
		ID:         d.ID,
		TenantID:   d.TenantID(),
		Slug:       d.Slug,
		Event:      event,
		ActorID:    p.ActorID(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal content event", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.ErrorContext(ctx, "publish content event", "subject", subject, "error", err)
		return
	}
	s.metrics.Published(ctx, subject)
}

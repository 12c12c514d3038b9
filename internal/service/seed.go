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
	"github.com/Strob0t/TenantCMS/internal/domain/template"
	"github.com/Strob0t/TenantCMS/internal/port/database"
	"github.com/Strob0t/TenantCMS/internal/port/messagequeue"
)

// TemplateSource looks up seed templates by name.
type TemplateSource interface {
	Get(name string) (template.Definition, error)
}

// SeedReport summarizes one seeding run.
type SeedReport struct {
	TenantID  string   `json:"tenant_id"`
	Template  string   `json:"template"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Failed    int      `json:"failed"`
	Failures  []string `json:"failures,omitempty"`
	pageTypes map[string]string
}

func (r *SeedReport) fail(err error) error {
	r.Failed++
	r.Failures = append(r.Failures, err.Error())
	return err
}

// Seeder fills a tenant with the page types and pages of a template. All
// writes go through the content service and its validators.
type Seeder struct {
	store     database.Store
	content   *ContentService
	templates TemplateSource
	metrics   *cfotel.Metrics
}

// NewSeeder creates a Seeder. m may be nil.
func NewSeeder(store database.Store, contentSvc *ContentService, templates TemplateSource, m *cfotel.Metrics) *Seeder {
	return &Seeder{store: store, content: contentSvc, templates: templates, metrics: m}
}

// Seed upserts the template's page types, then its pages, into tenantID as
// p. Existing documents are matched by slug and updated. A failing document
// does not stop the run; the failures are joined into the returned error.
func (s *Seeder) Seed(ctx context.Context, p access.Principal, tenantID, name string) (report *SeedReport, err error) {
	ctx, span := cfotel.StartSeedSpan(ctx, tenantID, name)
	defer func() { cfotel.EndSpan(span, err) }()

	def, err := s.templates.Get(name)
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("seed tenant %s: %w", tenantID, err)
	}
	def = def.Render(template.Vars{TenantName: t.Name, TenantSlug: t.Slug})

	report = &SeedReport{TenantID: t.ID, Template: def.Name, pageTypes: map[string]string{}}
	var errs []error
	for _, pt := range def.PageTypes {
		if err := s.seedPageType(ctx, p, report, pt); err != nil {
			errs = append(errs, report.fail(fmt.Errorf("page type %s: %w", pt.Slug, err)))
		}
	}
	for _, pg := range def.Pages {
		if err := s.seedPage(ctx, p, report, pg); err != nil {
			errs = append(errs, report.fail(fmt.Errorf("page %s: %w", pg.Slug, err)))
		}
	}

	s.metrics.Seeded(ctx, def.Name, report.Created+report.Updated)
	slog.InfoContext(ctx, "tenant seeded",
		"tenant_id", t.ID,
		"template", def.Name,
		"created", report.Created,
		"updated", report.Updated,
		"failed", report.Failed,
	)
	return report, errors.Join(errs...)
}

func (s *Seeder) seedPageType(ctx context.Context, p access.Principal, r *SeedReport, pt template.PageType) error {
	fields, err := marshalOptional(pt.Fields)
	if err != nil {
		return err
	}
	in := &content.Input{
		Tenant:    domain.RefTo(r.TenantID),
		Name:      &pt.Name,
		Slug:      &pt.Slug,
		IsDefault: &pt.IsDefault,
		Fields:    fields,
	}
	d, err := s.upsert(ctx, p, r, content.CollectionPageTypes, pt.Slug, in)
	if err != nil {
		return err
	}
	r.pageTypes[pt.Slug] = d.ID
	return nil
}

func (s *Seeder) seedPage(ctx context.Context, p access.Principal, r *SeedReport, pg template.Page) error {
	ptID, ok := r.pageTypes[pg.PageType]
	if !ok {
		return fmt.Errorf("page type %q was not seeded", pg.PageType)
	}
	body, err := marshalOptional(pg.Content)
	if err != nil {
		return err
	}
	in := &content.Input{
		Tenant:      domain.RefTo(r.TenantID),
		PageType:    domain.RefTo(ptID),
		Title:       &pg.Title,
		Slug:        &pg.Slug,
		Description: &pg.Description,
		Content:     body,
	}
	if pg.Status != "" {
		status := content.Status(pg.Status)
		in.Status = &status
	}
	_, err = s.upsert(ctx, p, r, content.CollectionPages, pg.Slug, in)
	return err
}

func (s *Seeder) upsert(ctx context.Context, p access.Principal, r *SeedReport, c content.Collection, slug string, in *content.Input) (*content.Document, error) {
	existing, err := s.content.Find(ctx, p, c, FindParams{
		Where: query.And(query.Equals("slug", content.Slugify(slug)), query.Equals(access.FieldTenant, r.TenantID)),
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(existing.Docs) > 0 {
		d, err := s.content.Update(ctx, p, c, existing.Docs[0].ID, in)
		if err != nil {
			return nil, err
		}
		r.Updated++
		return d, nil
	}
	d, err := s.content.Create(ctx, p, c, in)
	if err != nil {
		return nil, err
	}
	r.Created++
	return d, nil
}

func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode template value: %w", err)
	}
	return b, nil
}

// HandleTenantCreated is the queue handler for tenants.created. It seeds the
// requested template as the user who created the tenant.
func (s *Seeder) HandleTenantCreated(ctx context.Context, subject string, data []byte) error {
	var ev messagequeue.TenantEventPayload
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode %s: %w", subject, err)
	}
	if ev.Template == "" {
		return nil
	}
	actor, err := s.store.GetUser(ctx, ev.ActorID)
	if err != nil {
		return fmt.Errorf("load seeding actor %s: %w", ev.ActorID, err)
	}
	_, err = s.Seed(ctx, access.As(actor), ev.TenantID, ev.Template)
	return err
}

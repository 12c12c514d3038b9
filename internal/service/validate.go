package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/TenantCMS/internal/config"
	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/domain/content"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/port/database"
)

// Page type coherence messages.
const (
	msgPageTypeNotFound    = "Selected page type could not be found"
	msgPageTypeNoTenant    = "Selected page type is missing tenant information"
	msgPageTypeOtherTenant = "Selected page type belongs to a different tenant"
	msgTenantRequired      = "tenant is required"
	msgTenantImmutable     = "tenant cannot be changed"
	msgTenantDoesNotExist  = "tenant does not exist"

	fieldTenant   = "tenant"
	fieldPageType = "page_type"
)

// ConsistencyValidator assigns and checks the owning tenant of a document
// before it is written.
type ConsistencyValidator struct {
	store        database.Store
	multiDefault string
}

// NewConsistencyValidator creates a validator. multiDefault governs creates
// by admins of several tenants that name none (config.MultiTenantReject or
// config.MultiTenantFirst).
func NewConsistencyValidator(store database.Store, multiDefault string) *ConsistencyValidator {
	return &ConsistencyValidator{store: store, multiDefault: multiDefault}
}

// Check settles d.Tenant. declared is the tenant from the payload; existing is
// the stored record on update and nil on create.
func (v *ConsistencyValidator) Check(ctx context.Context, p access.Principal, d *content.Document, declared domain.Ref, existing *content.Document) error {
	if existing != nil {
		if !declared.IsZero() && declared.ID() != existing.TenantID() {
			return domain.NewValidationError(fieldTenant, msgTenantImmutable)
		}
		d.Tenant = domain.RefTo(existing.TenantID())
	} else {
		d.Tenant = domain.RefTo(declared.ID())
		if d.Tenant.IsZero() {
			d.Tenant = domain.RefTo(v.defaultTenant(p))
		}
	}

	if d.Collection == content.CollectionPages && !d.PageType.IsZero() {
		if err := v.checkPageType(ctx, d); err != nil {
			return err
		}
	}

	if d.Tenant.IsZero() {
		return domain.NewValidationError(fieldTenant, msgTenantRequired)
	}
	if _, err := v.store.GetTenant(ctx, d.TenantID()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewValidationError(fieldTenant, msgTenantDoesNotExist)
		}
		return fmt.Errorf("check tenant %s: %w", d.TenantID(), err)
	}
	return nil
}

// defaultTenant picks the tenant for a create that names none: the selected
// tenant when the caller may write to it, else the caller's only
// administered tenant. Empty when no single tenant applies.
func (v *ConsistencyValidator) defaultTenant(p access.Principal) string {
	if ctxTenant := p.ContextTenant(); ctxTenant != "" {
		if p.IsSuperAdmin() || p.User.Administers(ctxTenant) {
			return ctxTenant
		}
	}
	admin := user.TenantIDs(p.User, user.TenantRoleAdmin)
	switch {
	case len(admin) == 1:
		return admin[0]
	case len(admin) > 1 && v.multiDefault == config.MultiTenantFirst:
		return admin[0]
	default:
		return ""
	}
}

func (v *ConsistencyValidator) checkPageType(ctx context.Context, d *content.Document) error {
	pt, err := v.store.GetDocument(ctx, content.CollectionPageTypes, d.PageType.ID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewValidationError(fieldPageType, msgPageTypeNotFound)
		}
		return fmt.Errorf("check page type %s: %w", d.PageType.ID(), err)
	}
	switch {
	case pt.TenantID() == "":
		return domain.NewValidationError(fieldPageType, msgPageTypeNoTenant)
	case d.Tenant.IsZero():
		d.Tenant = domain.RefTo(pt.TenantID())
	case pt.TenantID() != d.TenantID():
		return domain.NewValidationError(fieldPageType, msgPageTypeOtherTenant)
	}
	return nil
}

// SlugValidator enforces that slugs are unique within a tenant.
type SlugValidator struct {
	store database.Store
}

// NewSlugValidator creates a SlugValidator.
func NewSlugValidator(store database.Store) *SlugValidator {
	return &SlugValidator{store: store}
}

// Check verifies d.Slug is free in d's tenant. existing is the stored record
// on update and nil on create.
func (v *SlugValidator) Check(ctx context.Context, p access.Principal, d *content.Document, existing *content.Document) error {
	if !d.Collection.HasSlug() {
		return nil
	}
	d.Slug = content.Slugify(d.Slug)
	if d.Slug == "" {
		return domain.NewValidationError("slug", "slug is required")
	}
	if existing != nil && existing.Slug == d.Slug && existing.TenantID() == d.TenantID() {
		return nil
	}

	w := query.And(query.Equals("slug", d.Slug), query.Equals(access.FieldTenant, d.TenantID()))
	if d.ID != "" {
		w = query.And(w, query.NotEquals(access.FieldID, d.ID))
	}
	dups, _, err := v.store.FindDocuments(ctx, d.Collection, database.Query{Where: w, Limit: 1})
	if err != nil {
		return fmt.Errorf("check slug %q: %w", d.Slug, err)
	}
	if len(dups) == 0 {
		return nil
	}
	return v.duplicate(ctx, p, d)
}

// duplicate builds the error reported for a taken slug. Callers who work
// across tenants are told which tenant holds it.
func (v *SlugValidator) duplicate(ctx context.Context, p access.Principal, d *content.Document) error {
	if d.Collection != content.CollectionPageTypes && (p.IsSuperAdmin() || len(user.TenantIDs(p.User, "")) > 1) {
		name := d.TenantID()
		if t, err := v.store.GetTenant(ctx, d.TenantID()); err == nil {
			name = t.Name
		}
		return domain.NewValidationError("slug", fmt.Sprintf(
			"The tenant %q already has a %s with the slug %q. Slugs must be unique per tenant.",
			name, d.Collection.Noun(), d.Slug))
	}
	return ConflictError(d)
}

// ConflictError is the generic slug error, also used when the store's unique
// index rejects a write the validator let through.
func ConflictError(d *content.Document) error {
	if d.Collection == content.CollectionPageTypes {
		return domain.NewValidationError("slug", fmt.Sprintf("Page type slug %q already exists for this tenant", d.Slug))
	}
	return domain.NewValidationError("slug", fmt.Sprintf(
		"A %s with the slug %q already exists for this tenant.", d.Collection.Noun(), d.Slug))
}

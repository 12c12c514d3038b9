package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/tenant"
	"github.com/Strob0t/TenantCMS/internal/port/database"
)

const tenantColumns = `x.id, x.name, x.slug, x.domain, x.allow_public_read, x.default_locale, x.theme, x.settings, x.created_at, x.updated_at`

var tenantSorts = map[string]string{
	"name":       "x.name",
	"slug":       "x.slug",
	"created_at": "x.created_at",
}

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	var theme, settings []byte
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Domain, &t.AllowPublicRead, &t.DefaultLocale,
		&theme, &settings, &t.CreatedAt, &t.UpdatedAt)
	if len(theme) > 0 {
		t.Theme = theme
	}
	if len(settings) > 0 {
		t.Settings = settings
	}
	return t, err
}

// --- Tenant CRUD ---

func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (id, name, slug, domain, allow_public_read, default_locale, theme, settings)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Slug, t.Domain, t.AllowPublicRead, t.DefaultLocale, nullJSON(t.Theme), nullJSON(t.Settings),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create tenant %s", t.Slug)
	}
	return nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	if !validID(id) {
		return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
	}
	t, err := scanTenant(s.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants x WHERE x.id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "get tenant %s", id)
	}
	return &t, nil
}

func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants x WHERE x.slug = $1`, slug))
	if err != nil {
		return nil, wrapErr(err, "get tenant by slug %s", slug)
	}
	return &t, nil
}

func (s *Store) FindTenants(ctx context.Context, q database.Query) ([]tenant.Tenant, int, error) {
	comp := newCompiler(tenantFields)
	cond, err := comp.compile(q.Where)
	if err != nil {
		return nil, 0, err
	}
	order, err := orderBy(tenantSorts, q.Sort)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tenants x WHERE `+cond, comp.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	page := comp.limitOffset(q.Limit, q.Offset)
	rows, err := s.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants x WHERE `+cond+` ORDER BY `+order+page, comp.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("find tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return orEmpty(tenants), total, rows.Err()
}

func (s *Store) UpdateTenant(ctx context.Context, t *tenant.Tenant) error {
	if !validID(t.ID) {
		return fmt.Errorf("update tenant %s: %w", t.ID, domain.ErrNotFound)
	}
	err := s.pool.QueryRow(ctx,
		`UPDATE tenants
		 SET name = $2, slug = $3, domain = $4, allow_public_read = $5, default_locale = $6,
		     theme = $7, settings = $8, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Slug, t.Domain, t.AllowPublicRead, t.DefaultLocale, nullJSON(t.Theme), nullJSON(t.Settings),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return wrapErr(err, "update tenant %s", t.ID)
	}
	return nil
}

// DeleteTenant removes the tenant; documents and memberships cascade.
func (s *Store) DeleteTenant(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("delete tenant %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete tenant %s", id)
}

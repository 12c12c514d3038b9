// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/TenantCMS/internal/domain/content"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/domain/tenant"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
)

// Query selects records of one collection.
type Query struct {
	Where  query.Where
	Limit  int
	Offset int
	// Sort is a field name, prefixed with "-" for descending order.
	Sort string
}

// Store is the port interface for database operations. Implementations
// return domain.ErrNotFound for missing records, domain.ErrDuplicate when a
// unique constraint rejects a write, domain.ErrConflict when a foreign-key
// constraint does, and a
// domain.ValidationError for filters on unknown fields.
type Store interface {
	// Tenants
	CreateTenant(ctx context.Context, t *tenant.Tenant) error
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
	FindTenants(ctx context.Context, q Query) ([]tenant.Tenant, int, error)
	UpdateTenant(ctx context.Context, t *tenant.Tenant) error
	DeleteTenant(ctx context.Context, id string) error

	// Users
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	FindUsers(ctx context.Context, q Query) ([]user.User, int, error)
	UpdateUser(ctx context.Context, u *user.User) error
	DeleteUser(ctx context.Context, id string) error

	// Documents (pages, posts, page types, media)
	FindDocuments(ctx context.Context, c content.Collection, q Query) ([]content.Document, int, error)
	GetDocument(ctx context.Context, c content.Collection, id string) (*content.Document, error)
	CreateDocument(ctx context.Context, d *content.Document) error
	UpdateDocument(ctx context.Context, d *content.Document) error
	DeleteDocument(ctx context.Context, c content.Collection, id string) error
}

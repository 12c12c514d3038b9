package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/TenantCMS/internal/adapter/memory"
	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/content"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/domain/tenant"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/port/database"
)

func seedTenant(t *testing.T, s *memory.Store, slug string) *tenant.Tenant {
	t.Helper()
	tn := &tenant.Tenant{Name: slug, Slug: slug, AllowPublicRead: true}
	require.NoError(t, s.CreateTenant(context.Background(), tn))
	return tn
}

func TestTenantSlugUnique(t *testing.T) {
	s := memory.New()
	seedTenant(t, s, "acme")
	err := s.CreateTenant(context.Background(), &tenant.Tenant{Name: "x", Slug: "acme"})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	got, err := s.GetTenantBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Slug)

	_, err = s.GetTenantBySlug(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDocumentSlugUniquePerTenant(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	t1, t2 := seedTenant(t, s, "one"), seedTenant(t, s, "two")

	post := func(tenantID string) *content.Document {
		return &content.Document{Collection: content.CollectionPosts, Tenant: domain.RefTo(tenantID), Title: "About", Slug: "about", Status: content.StatusDraft}
	}
	require.NoError(t, s.CreateDocument(ctx, post(t1.ID)))
	require.NoError(t, s.CreateDocument(ctx, post(t2.ID)))
	err := s.CreateDocument(ctx, post(t1.ID))
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = s.CreateDocument(ctx, post("missing-tenant"))
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NotErrorIs(t, err, domain.ErrDuplicate, "foreign-key failures are not duplicates")

	// same slug in another collection is fine
	require.NoError(t, s.CreateDocument(ctx, &content.Document{Collection: content.CollectionPageTypes, Tenant: domain.RefTo(t1.ID), Name: "About", Slug: "about"}))
}

func TestFindDocumentsFilterSortPage(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	t1, t2 := seedTenant(t, s, "one"), seedTenant(t, s, "two")
	for _, slug := range []string{"c", "a", "b"} {
		require.NoError(t, s.CreateDocument(ctx, &content.Document{Collection: content.CollectionPosts, Tenant: domain.RefTo(t1.ID), Title: slug, Slug: slug}))
	}
	require.NoError(t, s.CreateDocument(ctx, &content.Document{Collection: content.CollectionPosts, Tenant: domain.RefTo(t2.ID), Title: "z", Slug: "z"}))

	docs, total, err := s.FindDocuments(ctx, content.CollectionPosts, database.Query{
		Where: query.Equals("tenant", t1.ID), Sort: "slug", Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Slug)
	assert.Equal(t, "b", docs[1].Slug)

	docs, _, err = s.FindDocuments(ctx, content.CollectionPosts, database.Query{Where: query.Equals("tenant.slug", "two")})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "z", docs[0].Slug)

	_, _, err = s.FindDocuments(ctx, content.CollectionPosts, database.Query{Sort: "password"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestDeleteTenantCascades(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	t1 := seedTenant(t, s, "one")
	doc := &content.Document{Collection: content.CollectionMedia, Tenant: domain.RefTo(t1.ID), Filename: "a.png", URL: "/a.png"}
	require.NoError(t, s.CreateDocument(ctx, doc))
	u := &user.User{Email: "a@b.c", Tenants: []user.Membership{{Tenant: domain.RefTo(t1.ID), Roles: []user.TenantRole{user.TenantRoleAdmin}}}}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.DeleteTenant(ctx, t1.ID))

	_, err := s.GetDocument(ctx, content.CollectionMedia, doc.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tenants)
}

func TestPageTypeInUseCannotBeDeleted(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	t1 := seedTenant(t, s, "one")
	pt := &content.Document{Collection: content.CollectionPageTypes, Tenant: domain.RefTo(t1.ID), Name: "Landing", Slug: "landing"}
	require.NoError(t, s.CreateDocument(ctx, pt))
	page := &content.Document{Collection: content.CollectionPages, Tenant: domain.RefTo(t1.ID), PageType: domain.RefTo(pt.ID), Title: "Home", Slug: "home"}
	require.NoError(t, s.CreateDocument(ctx, page))

	assert.True(t, errors.Is(s.DeleteDocument(ctx, content.CollectionPageTypes, pt.ID), domain.ErrConflict))
	require.NoError(t, s.DeleteDocument(ctx, content.CollectionPages, page.ID))
	require.NoError(t, s.DeleteDocument(ctx, content.CollectionPageTypes, pt.ID))
}

func TestFindUsersByMembership(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	t1, t2 := seedTenant(t, s, "one"), seedTenant(t, s, "two")
	require.NoError(t, s.CreateUser(ctx, &user.User{Email: "a@x.io", Tenants: []user.Membership{{Tenant: domain.RefTo(t1.ID)}}}))
	require.NoError(t, s.CreateUser(ctx, &user.User{Email: "b@x.io", Tenants: []user.Membership{{Tenant: domain.RefTo(t2.ID)}}}))

	users, total, err := s.FindUsers(ctx, database.Query{Where: query.In("tenants.tenant", t2.ID)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "b@x.io", users[0].Email)

	err = s.CreateUser(ctx, &user.User{Email: "A@x.io"})
	assert.True(t, errors.Is(err, domain.ErrConflict), "email uniqueness is case-insensitive")
}

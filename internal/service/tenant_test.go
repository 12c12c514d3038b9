package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/domain/content"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/domain/tenant"
	"github.com/Strob0t/TenantCMS/internal/port/database"
	"github.com/Strob0t/TenantCMS/internal/port/messagequeue"
)

func TestTenantCreateRequiresSuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &tenant.CreateRequest{Name: "Acme", Slug: "acme"}

	_, err := f.tenants.Create(ctx, access.As(f.admin12), req)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.tenants.Create(ctx, access.Anonymous("acme"), req)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.tenants.Create(ctx, access.As(f.super), req)
	require.NoError(t, err)
	assert.True(t, got.AllowPublicRead, "public reads default to on")
	assert.Equal(t, tenant.LocaleEnglish, got.DefaultLocale)

	_, err = f.tenants.Create(ctx, access.As(f.super), &tenant.CreateRequest{Name: "Again", Slug: "acme"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.tenants.Create(ctx, access.As(f.super), &tenant.CreateRequest{Name: "Bad", Slug: "Not A Slug!"})
	requireValidation(t, err, "slug")
}

func TestTenantCreatePublishesSeedRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.tenants.Create(ctx, access.As(f.super), &tenant.CreateRequest{Name: "Acme", Slug: "acme", Template: "landing"})
	require.NoError(t, err)

	msg := f.queue.last(t)
	assert.Equal(t, messagequeue.SubjectTenantCreated, msg.subject)
	var ev messagequeue.TenantEventPayload
	require.NoError(t, json.Unmarshal(msg.data, &ev))
	assert.Equal(t, got.ID, ev.TenantID)
	assert.Equal(t, "landing", ev.Template)
	assert.Equal(t, f.super.ID, ev.ActorID)

	docs, _, err := f.store.FindDocuments(ctx, content.CollectionPages, database.Query{Where: query.Equals(access.FieldTenant, got.ID)})
	require.NoError(t, err)
	assert.Empty(t, docs, "seeding is left to the subscriber")

	require.NoError(t, f.seeder.HandleTenantCreated(ctx, msg.subject, msg.data))
	docs, _, err = f.store.FindDocuments(ctx, content.CollectionPages, database.Query{Where: query.Equals(access.FieldTenant, got.ID)})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "home", docs[0].Slug)
}

func TestTenantCreateSeedsInlineWithoutQueue(t *testing.T) {
	f := newFixture(t, withoutQueue())
	ctx := context.Background()

	got, err := f.tenants.Create(ctx, access.As(f.super), &tenant.CreateRequest{Name: "Acme", Slug: "acme", Template: "blog"})
	require.NoError(t, err)

	pts, _, err := f.store.FindDocuments(ctx, content.CollectionPageTypes, database.Query{Where: query.Equals(access.FieldTenant, got.ID)})
	require.NoError(t, err)
	assert.Len(t, pts, 2)
	pages, _, err := f.store.FindDocuments(ctx, content.CollectionPages, database.Query{Where: query.Equals(access.FieldTenant, got.ID)})
	require.NoError(t, err)
	assert.Len(t, pages, 3)
}

func TestTenantCreateSurvivesUnknownTemplate(t *testing.T) {
	f := newFixture(t, withoutQueue())

	got, err := f.tenants.Create(context.Background(), access.As(f.super), &tenant.CreateRequest{Name: "Acme", Slug: "acme", Template: "nope"})
	require.NoError(t, err, "seeding failures never undo the tenant")
	_, err = f.store.GetTenant(context.Background(), got.ID)
	require.NoError(t, err)
}

func TestTenantReadScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.tenants.Find(ctx, access.Anonymous(""), FindParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.TotalDocs, "closed tenants are hidden from the public")

	list, err = f.tenants.Find(ctx, access.As(f.viewer1), FindParams{})
	require.NoError(t, err)
	require.Len(t, list.Docs, 1)
	assert.Equal(t, f.t1.ID, list.Docs[0].ID)

	list, err = f.tenants.Find(ctx, access.As(f.super), FindParams{Sort: "slug"})
	require.NoError(t, err)
	assert.Equal(t, 3, list.TotalDocs)
	assert.Equal(t, "closed", list.Docs[0].Slug)

	_, err = f.tenants.Get(ctx, access.As(f.viewer1), f.t2.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.tenants.Get(ctx, access.Anonymous(""), f.closed.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, err := f.tenants.Get(ctx, access.Anonymous(""), f.t1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tenant One", got.Name)
}

func TestTenantUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, ok := f.resolver.ResolvePublic(ctx, f.t1.Slug)
	require.True(t, ok)

	closed := false
	got, err := f.tenants.Update(ctx, access.As(f.admin1), f.t1.ID, &tenant.UpdateRequest{AllowPublicRead: &closed})
	require.NoError(t, err)
	assert.False(t, got.AllowPublicRead)

	_, ok = f.resolver.ResolvePublic(ctx, f.t1.Slug)
	assert.False(t, ok, "the cached entry was invalidated")
	assert.Equal(t, messagequeue.SubjectTenantUpdated, f.queue.last(t).subject)

	_, err = f.tenants.Update(ctx, access.As(f.admin1), f.t2.ID, &tenant.UpdateRequest{Name: strp("Mine")})
	assert.ErrorIs(t, err, domain.ErrNotFound, "viewer membership does not allow updates")
	_, err = f.tenants.Update(ctx, access.As(f.viewer1), f.t1.ID, &tenant.UpdateRequest{Name: strp("Mine")})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.tenants.Update(ctx, access.As(f.super), f.t2.ID, &tenant.UpdateRequest{Slug: strp(f.t1.Slug)})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestTenantRenameInvalidatesBothSlugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, ok := f.resolver.ResolvePublic(ctx, f.t2.Slug)
	require.True(t, ok)
	_, err := f.tenants.Update(ctx, access.As(f.super), f.t2.ID, &tenant.UpdateRequest{Slug: strp("renamed")})
	require.NoError(t, err)

	_, ok = f.resolver.ResolvePublic(ctx, "tenant-two")
	assert.False(t, ok)
	got, ok := f.resolver.ResolvePublic(ctx, "renamed")
	require.True(t, ok)
	assert.Equal(t, f.t2.ID, got.ID)
}

func TestTenantDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPage(t, f.t1, f.pt1, "home")

	err := f.tenants.Delete(ctx, access.As(f.admin1), f.t2.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.tenants.Delete(ctx, access.As(f.admin1), f.t1.ID))
	assert.Equal(t, messagequeue.SubjectTenantDeleted, f.queue.last(t).subject)

	_, ok := f.resolver.ResolvePublic(ctx, f.t1.Slug)
	assert.False(t, ok)
	docs, _, err := f.store.FindDocuments(ctx, content.CollectionPages, database.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)

	u, err := f.store.GetUser(ctx, f.admin1.ID)
	require.NoError(t, err)
	require.Len(t, u.Tenants, 1)
	assert.Equal(t, f.t2.ID, u.Tenants[0].Tenant.ID())
}

func TestTenantSeedOnDemand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.tenants.Seed(ctx, access.As(f.admin1), f.t1.ID, "landing")
	require.NoError(t, err)
	assert.Zero(t, report.Failed)
	assert.Positive(t, report.Created)
	assert.Equal(t, f.t1.ID, report.TenantID)

	_, err = f.tenants.Seed(ctx, access.As(f.admin1), f.t2.ID, "landing")
	require.ErrorIs(t, err, domain.ErrNotFound, "viewer membership does not allow seeding")

	_, err = f.tenants.Seed(ctx, access.As(f.viewer1), f.t1.ID, "landing")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.tenants.Seed(ctx, access.Anonymous(f.t1.Slug), f.t1.ID, "landing")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.tenants.Seed(ctx, access.As(f.super), f.t1.ID, "")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "template", ve.Field)
}

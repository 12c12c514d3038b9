package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/TenantCMS/internal/adapter/memory"
	"github.com/Strob0t/TenantCMS/internal/adapter/metrics"
	"github.com/Strob0t/TenantCMS/internal/adapter/templates"
	"github.com/Strob0t/TenantCMS/internal/config"
	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/content"
	"github.com/Strob0t/TenantCMS/internal/domain/tenant"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/port/messagequeue"
)

const testPassword = "Password123"

// recordingQueue is a messagequeue.Queue that keeps every published message.
type recordingQueue struct {
	mu       sync.Mutex
	messages []published
}

type published struct {
	subject string
	data    []byte
}

func (q *recordingQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, published{subject: subject, data: data})
	return nil
}

func (q *recordingQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *recordingQueue) Drain() error      { return nil }
func (q *recordingQueue) Close() error      { return nil }
func (q *recordingQueue) IsConnected() bool { return true }

func (q *recordingQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.messages))
	for i, m := range q.messages {
		out[i] = m.subject
	}
	return out
}

func (q *recordingQueue) last(t *testing.T) published {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	require.NotEmpty(t, q.messages, "no message published")
	return q.messages[len(q.messages)-1]
}

// mapCache is a cache.Cache backed by a map.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// countingStore counts slug lookups to observe the resolver cache. A non-nil
// slugErr fails every slug lookup and a non-nil createErr every document insert.
type countingStore struct {
	*memory.Store
	bySlug    atomic.Int32
	slugErr   error
	createErr error
}

func (s *countingStore) GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	s.bySlug.Add(1)
	if s.slugErr != nil {
		return nil, s.slugErr
	}
	return s.Store.GetTenantBySlug(ctx, slug)
}

func (s *countingStore) CreateDocument(ctx context.Context, d *content.Document) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.Store.CreateDocument(ctx, d)
}

type fixture struct {
	store    *countingStore
	cache    *mapCache
	queue    *recordingQueue
	resolver *TenantResolver
	access   *AccessService
	content  *ContentService
	tenants  *TenantService
	users    *UserService
	auth     *AuthService
	seeder   *Seeder

	t1, t2, closed *tenant.Tenant
	pt1, pt2       *content.Document

	super   *user.User
	admin1  *user.User // tenant-admin of t1, viewer of t2
	admin12 *user.User // tenant-admin of t1 and t2
	viewer1 *user.User // tenant-viewer of t1
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	noQueue      bool
	multiDefault string
}

func withoutQueue() fixtureOption { return func(c *fixtureConfig) { c.noQueue = true } }

func withMultiDefault(v string) fixtureOption {
	return func(c *fixtureConfig) { c.multiDefault = v }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{multiDefault: config.MultiTenantReject}
	for _, o := range opts {
		o(&cfg)
	}

	f := &fixture{store: &countingStore{Store: memory.New()}, cache: newMapCache()}
	var q messagequeue.Queue
	if !cfg.noQueue {
		f.queue = &recordingQueue{}
		q = f.queue
	}

	m := metrics.New()
	f.resolver = NewTenantResolver(f.store, f.cache, time.Minute, m)
	f.access = NewAccessService(f.resolver, m)
	f.content = NewContentService(f.store, f.access,
		NewConsistencyValidator(f.store, cfg.multiDefault), NewSlugValidator(f.store), q, nil)
	f.auth = NewAuthService(f.store, &config.Auth{
		JWTSecret:         "test-secret-key-must-be-long-enough",
		Issuer:            "tenantcms-test",
		AccessTokenExpiry: 15 * time.Minute,
		BcryptCost:        bcrypt.MinCost,
	})
	f.users = NewUserService(f.store, f.access, f.auth)
	f.tenants = NewTenantService(f.store, f.access, f.resolver, q, "")

	registry, err := templates.Load("")
	require.NoError(t, err)
	f.seeder = NewSeeder(f.store, f.content, registry, nil)
	f.tenants.SetSeeder(f.seeder)

	f.t1 = f.addTenant(t, "Tenant One", "tenant-one", true)
	f.t2 = f.addTenant(t, "Tenant Two", "tenant-two", true)
	f.closed = f.addTenant(t, "Closed", "closed", false)
	f.pt1 = f.addPageType(t, f.t1, "content")
	f.pt2 = f.addPageType(t, f.t2, "content")

	f.super = f.addUser(t, "root@example.com", []user.Role{user.RoleSuperAdmin})
	f.admin1 = f.addUser(t, "admin1@example.com", nil,
		membership(f.t1, user.TenantRoleAdmin), membership(f.t2, user.TenantRoleViewer))
	f.admin12 = f.addUser(t, "admin12@example.com", nil,
		membership(f.t1, user.TenantRoleAdmin), membership(f.t2, user.TenantRoleAdmin))
	f.viewer1 = f.addUser(t, "viewer1@example.com", nil, membership(f.t1, user.TenantRoleViewer))
	return f
}

func membership(t *tenant.Tenant, roles ...user.TenantRole) user.Membership {
	return user.Membership{Tenant: domain.RefTo(t.ID), Roles: roles}
}

func (f *fixture) addTenant(t *testing.T, name, slug string, public bool) *tenant.Tenant {
	t.Helper()
	tn := &tenant.Tenant{Name: name, Slug: slug, AllowPublicRead: public, DefaultLocale: tenant.LocaleEnglish}
	require.NoError(t, f.store.CreateTenant(context.Background(), tn))
	return tn
}

func (f *fixture) addPageType(t *testing.T, owner *tenant.Tenant, slug string) *content.Document {
	t.Helper()
	d := &content.Document{
		Collection: content.CollectionPageTypes,
		Tenant:     domain.RefTo(owner.ID),
		Name:       "Content",
		Slug:       slug,
	}
	require.NoError(t, f.store.CreateDocument(context.Background(), d))
	return d
}

func (f *fixture) addUser(t *testing.T, email string, roles []user.Role, tenants ...user.Membership) *user.User {
	t.Helper()
	if roles == nil {
		roles = []user.Role{user.RoleUser}
	}
	if tenants == nil {
		tenants = []user.Membership{}
	}
	hash, err := hashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	u := &user.User{Email: email, Name: email, PasswordHash: hash, Roles: roles, Tenants: tenants}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

// addPage stores a page directly, bypassing the policy.
func (f *fixture) addPage(t *testing.T, owner *tenant.Tenant, pageType *content.Document, slug string) *content.Document {
	t.Helper()
	d := &content.Document{
		Collection: content.CollectionPages,
		Tenant:     domain.RefTo(owner.ID),
		PageType:   domain.RefTo(pageType.ID),
		Title:      slug,
		Slug:       slug,
		Status:     content.StatusPublished,
	}
	require.NoError(t, f.store.CreateDocument(context.Background(), d))
	return d
}

func strp(s string) *string { return &s }

func pageInput(tenantID string, pageType *content.Document, title, slug string) *content.Input {
	in := &content.Input{Title: &title, Slug: &slug}
	if tenantID != "" {
		in.Tenant = domain.RefTo(tenantID)
	}
	if pageType != nil {
		in.PageType = domain.RefTo(pageType.ID)
	}
	return in
}

func postInput(tenantID, title string) *content.Input {
	in := &content.Input{Title: &title}
	if tenantID != "" {
		in.Tenant = domain.RefTo(tenantID)
	}
	return in
}

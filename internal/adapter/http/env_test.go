package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	cfhttp "github.com/Strob0t/TenantCMS/internal/adapter/http"
	"github.com/Strob0t/TenantCMS/internal/adapter/memory"
	"github.com/Strob0t/TenantCMS/internal/adapter/metrics"
	"github.com/Strob0t/TenantCMS/internal/adapter/templates"
	"github.com/Strob0t/TenantCMS/internal/config"
	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/content"
	"github.com/Strob0t/TenantCMS/internal/domain/tenant"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/middleware"
	"github.com/Strob0t/TenantCMS/internal/service"
)

const (
	testPassword = "Password123"
	tenantCookie = "tenantcms-tenant"
)

// testEnv is the full HTTP stack on the in-memory store with two public
// tenants, each holding one page type and one page.
type testEnv struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store

	t1, t2   *tenant.Tenant
	pt1, pt2 *content.Document
	page1    *content.Document
	page2    *content.Document

	superToken  string
	admin1Token string // tenant-admin of t1
	bothToken   string // tenant-admin of t1 and t2
	admin1      *user.User
}

type envOption func(*cfhttp.Handlers, *cfhttp.RouterConfig)

func withLoginLimit(rl *middleware.RateLimiter) envOption {
	return func(_ *cfhttp.Handlers, c *cfhttp.RouterConfig) { c.LoginLimiter = rl }
}

func withReady(name string, p cfhttp.Pinger) envOption {
	return func(h *cfhttp.Handlers, _ *cfhttp.RouterConfig) {
		if h.Probes == nil {
			h.Probes = map[string]cfhttp.Pinger{}
		}
		h.Probes[name] = p
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	m := metrics.New()
	resolver := service.NewTenantResolver(store, nil, time.Minute, m)
	accessSvc := service.NewAccessService(resolver, m)
	contentSvc := service.NewContentService(store, accessSvc,
		service.NewConsistencyValidator(store, config.MultiTenantReject), service.NewSlugValidator(store), nil, nil)
	authSvc := service.NewAuthService(store, &config.Auth{
		JWTSecret:         "http-test-secret-0123456789abcdef",
		Issuer:            "tenantcms-test",
		AccessTokenExpiry: time.Hour,
		BcryptCost:        bcrypt.MinCost,
	})
	tenantSvc := service.NewTenantService(store, accessSvc, resolver, nil, "")
	registry, err := templates.Load("")
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	tenantSvc.SetSeeder(service.NewSeeder(store, contentSvc, registry, nil))

	h := &cfhttp.Handlers{
		Content:              contentSvc,
		Tenants:              tenantSvc,
		Users:                service.NewUserService(store, accessSvc, authSvc),
		Auth:                 authSvc,
		Metrics:              m.Handler(),
		SelectedTenantCookie: tenantCookie,
	}
	cfg := cfhttp.RouterConfig{
		AllowedOrigins: []string{"http://admin.example.com"},
		TenantHeaders:  []string{middleware.DefaultTenantHeader},
		TenantCookie:   tenantCookie,
		Metrics:        m,
	}
	for _, o := range opts {
		o(h, &cfg)
	}

	e := &testEnv{t: t, handler: cfhttp.NewRouter(h, cfg), store: store}
	e.t1 = e.addTenant(ctx, "Tenant One", "tenant-one")
	e.t2 = e.addTenant(ctx, "Tenant Two", "tenant-two")
	e.pt1 = e.addDoc(ctx, &content.Document{Collection: content.CollectionPageTypes, Tenant: domain.RefTo(e.t1.ID), Name: "Content", Slug: "content"})
	e.pt2 = e.addDoc(ctx, &content.Document{Collection: content.CollectionPageTypes, Tenant: domain.RefTo(e.t2.ID), Name: "Content", Slug: "content"})
	e.page1 = e.addDoc(ctx, &content.Document{
		Collection: content.CollectionPages, Tenant: domain.RefTo(e.t1.ID), PageType: domain.RefTo(e.pt1.ID),
		Title: "One", Slug: "home", Status: content.StatusPublished,
	})
	e.page2 = e.addDoc(ctx, &content.Document{
		Collection: content.CollectionPages, Tenant: domain.RefTo(e.t2.ID), PageType: domain.RefTo(e.pt2.ID),
		Title: "Two", Slug: "home", Status: content.StatusPublished,
	})

	e.register(ctx, authSvc, "root@example.com", []user.Role{user.RoleSuperAdmin})
	e.admin1 = e.register(ctx, authSvc, "admin1@example.com", nil,
		user.Membership{Tenant: domain.RefTo(e.t1.ID), Roles: []user.TenantRole{user.TenantRoleAdmin}})
	e.register(ctx, authSvc, "both@example.com", nil,
		user.Membership{Tenant: domain.RefTo(e.t1.ID), Roles: []user.TenantRole{user.TenantRoleAdmin}},
		user.Membership{Tenant: domain.RefTo(e.t2.ID), Roles: []user.TenantRole{user.TenantRoleAdmin}})

	e.superToken = e.login("root@example.com")
	e.admin1Token = e.login("admin1@example.com")
	e.bothToken = e.login("both@example.com")
	return e
}

func (e *testEnv) addTenant(ctx context.Context, name, slug string) *tenant.Tenant {
	e.t.Helper()
	tn := &tenant.Tenant{Name: name, Slug: slug, AllowPublicRead: true, DefaultLocale: tenant.LocaleEnglish}
	if err := e.store.CreateTenant(ctx, tn); err != nil {
		e.t.Fatalf("create tenant %s: %v", slug, err)
	}
	return tn
}

func (e *testEnv) addDoc(ctx context.Context, d *content.Document) *content.Document {
	e.t.Helper()
	if err := e.store.CreateDocument(ctx, d); err != nil {
		e.t.Fatalf("create %s %s: %v", d.Collection, d.Slug, err)
	}
	return d
}

func (e *testEnv) register(ctx context.Context, auth *service.AuthService, email string, roles []user.Role, ms ...user.Membership) *user.User {
	e.t.Helper()
	u, err := auth.Register(ctx, &user.CreateRequest{
		Email: email, Name: email, Password: testPassword, Roles: roles, Tenants: ms,
	})
	if err != nil {
		e.t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func (e *testEnv) login(email string) string {
	e.t.Helper()
	rec := e.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"email": email, "password": testPassword,
	}})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("login %s: status %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decode(e.t, rec, &resp)
	return resp.AccessToken
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	token  string
	slug   string
	cookie string
	header map[string]string
}

func (e *testEnv) do(r request) *httptest.ResponseRecorder {
	e.t.Helper()
	var body bytes.Buffer
	if r.body != nil {
		if err := json.NewEncoder(&body).Encode(r.body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	target := r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req := httptest.NewRequest(r.method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.slug != "" {
		req.Header.Set("X-Tenant-Slug", r.slug)
	}
	if r.cookie != "" {
		req.AddCookie(&http.Cookie{Name: tenantCookie, Value: r.cookie})
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

func expectFieldError(t *testing.T, rec *httptest.ResponseRecorder, field string) errorBody {
	t.Helper()
	expectStatus(t, rec, http.StatusBadRequest)
	var eb errorBody
	decode(t, rec, &eb)
	if eb.Field != field {
		t.Fatalf("field = %q, want %q (error %q)", eb.Field, field, eb.Error)
	}
	return eb
}

type docList struct {
	Docs []struct {
		ID     string     `json:"id"`
		Slug   string     `json:"slug"`
		Tenant domain.Ref `json:"tenant"`
	} `json:"docs"`
	TotalDocs int `json:"total_docs"`
	Limit     int `json:"limit"`
}

func whereQuery(where string) url.Values {
	return url.Values{"where": {where}}
}

package http_test

import (
	"net/http"
	"testing"

	"github.com/Strob0t/TenantCMS/internal/middleware"
)

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"email": "admin1@example.com", "password": "wrong-password",
	}})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = e.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"email": "nobody@example.com", "password": testPassword,
	}})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = e.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"email": "admin1@example.com"}})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestLoginRateLimit(t *testing.T) {
	e := newTestEnv(t, withLoginLimit(middleware.NewRateLimiter(0.01, 3)))

	// newTestEnv spends the whole burst on its three logins.
	rec := e.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"email": "admin1@example.com", "password": testPassword,
	}})
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestMe(t *testing.T) {
	e := newTestEnv(t)

	expectStatus(t, e.do(request{method: http.MethodGet, path: "/api/auth/me"}), http.StatusUnauthorized)

	rec := e.do(request{method: http.MethodGet, path: "/api/auth/me", token: e.admin1Token, cookie: e.t1.ID})
	expectStatus(t, rec, http.StatusOK)
	var me struct {
		User struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
		SelectedTenant string   `json:"selected_tenant"`
		AdminTenants   []string `json:"admin_tenants"`
	}
	decode(t, rec, &me)
	if me.User.ID != e.admin1.ID || me.User.Email != "admin1@example.com" {
		t.Errorf("user = %+v", me.User)
	}
	if me.SelectedTenant != e.t1.ID {
		t.Errorf("selected_tenant = %q, want %q", me.SelectedTenant, e.t1.ID)
	}
	if len(me.AdminTenants) != 1 || me.AdminTenants[0] != e.t1.ID {
		t.Errorf("admin_tenants = %v", me.AdminTenants)
	}
}

func TestSelectTenant(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(request{method: http.MethodPost, path: "/api/auth/tenant", token: e.admin1Token, body: map[string]string{"tenant_id": e.t1.ID}})
	expectStatus(t, rec, http.StatusNoContent)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != tenantCookie || cookies[0].Value != e.t1.ID || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies %+v", cookies)
	}

	rec = e.do(request{method: http.MethodPost, path: "/api/auth/tenant", token: e.admin1Token, body: map[string]string{"tenant_id": e.t2.ID}})
	expectFieldError(t, rec, "tenant_id")

	rec = e.do(request{method: http.MethodPost, path: "/api/auth/tenant", token: e.superToken, body: map[string]string{"tenant_id": e.t2.ID}})
	expectStatus(t, rec, http.StatusNoContent)

	rec = e.do(request{method: http.MethodPost, path: "/api/auth/tenant", token: e.superToken, body: map[string]string{"tenant_id": "missing"}})
	expectStatus(t, rec, http.StatusNotFound)

	rec = e.do(request{method: http.MethodPost, path: "/api/auth/tenant", token: e.admin1Token, body: map[string]string{}})
	expectStatus(t, rec, http.StatusNoContent)
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("expected the cookie to be cleared, got %+v", c)
	}

	expectStatus(t, e.do(request{method: http.MethodPost, path: "/api/auth/tenant", body: map[string]string{"tenant_id": e.t1.ID}}), http.StatusUnauthorized)
}

package http_test

import (
	"net/http"
	"testing"
)

func TestUsersRequireAuthentication(t *testing.T) {
	e := newTestEnv(t)

	expectStatus(t, e.do(request{method: http.MethodGet, path: "/api/users", slug: "tenant-one"}), http.StatusUnauthorized)
}

func TestTenantAdminManagesOwnTenantUsers(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(request{method: http.MethodPost, path: "/api/users", token: e.admin1Token, body: map[string]any{
		"email": "editor@example.com", "name": "Editor", "password": testPassword,
		"tenants": []map[string]any{{"tenant": e.t1.ID, "roles": []string{"tenant-viewer"}}},
	}})
	expectStatus(t, rec, http.StatusCreated)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	// Memberships outside the administered tenants are refused.
	rec = e.do(request{method: http.MethodPost, path: "/api/users", token: e.admin1Token, body: map[string]any{
		"email": "intruder@example.com", "name": "Intruder", "password": testPassword,
		"tenants": []map[string]any{{"tenant": e.t2.ID, "roles": []string{"tenant-admin"}}},
	}})
	expectStatus(t, rec, http.StatusForbidden)

	rec = e.do(request{method: http.MethodGet, path: "/api/users/" + created.ID, token: e.admin1Token})
	expectStatus(t, rec, http.StatusOK)

	rec = e.do(request{method: http.MethodPatch, path: "/api/users/" + created.ID, token: e.admin1Token, body: map[string]any{"name": "Senior Editor"}})
	expectStatus(t, rec, http.StatusOK)

	expectStatus(t, e.do(request{method: http.MethodDelete, path: "/api/users/" + created.ID, token: e.admin1Token}), http.StatusForbidden)
	expectStatus(t, e.do(request{method: http.MethodDelete, path: "/api/users/" + created.ID, token: e.superToken}), http.StatusNoContent)
}

func TestUserPasswordValidation(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(request{method: http.MethodPost, path: "/api/users", token: e.superToken, body: map[string]any{
		"email": "weak@example.com", "name": "Weak", "password": "x",
	}})
	expectFieldError(t, rec, "password")
}

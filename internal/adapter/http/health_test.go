package http_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"

	cfhttp "github.com/Strob0t/TenantCMS/internal/adapter/http"
	"github.com/Strob0t/TenantCMS/internal/adapter/redis"
	"github.com/Strob0t/TenantCMS/internal/config"
)

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(request{method: http.MethodGet, path: "/health"})
	expectStatus(t, rec, http.StatusOK)
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestReady(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mr := miniredis.RunT(t)
	cache, err := redis.New(context.Background(), config.Redis{Addr: mr.Addr(), Prefix: "test"})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer func() { _ = cache.Close() }()

	e := newTestEnv(t,
		withReady("postgres", cfhttp.PingFunc(db.PingContext)),
		withReady("redis", cache),
	)

	mock.ExpectPing()
	rec := e.do(request{method: http.MethodGet, path: "/health/ready"})
	expectStatus(t, rec, http.StatusOK)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, rec, &body)
	if body.Status != "ok" || body.Checks["postgres"] != "ok" || body.Checks["redis"] != "ok" {
		t.Fatalf("unexpected readiness %+v", body)
	}

	mock.ExpectPing().WillReturnError(errors.New("database is starting up"))
	mr.Close()
	rec = e.do(request{method: http.MethodGet, path: "/health/ready"})
	expectStatus(t, rec, http.StatusServiceUnavailable)
	decode(t, rec, &body)
	if body.Status != "unavailable" {
		t.Errorf("status = %q, want unavailable", body.Status)
	}
	if !strings.Contains(body.Checks["postgres"], "starting up") {
		t.Errorf("postgres check = %q", body.Checks["postgres"])
	}
	if body.Checks["redis"] == "ok" {
		t.Error("redis check should fail after the server stopped")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("sqlmock: %v", err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)

	e.do(request{method: http.MethodGet, path: "/api/pages", slug: "tenant-one"})
	rec := e.do(request{method: http.MethodGet, path: "/metrics"})
	expectStatus(t, rec, http.StatusOK)

	body := rec.Body.String()
	for _, want := range []string{
		`tenantcms_http_requests_total{method="GET",route="/api/{collection}`,
		`tenantcms_access_decisions_total{collection="pages",operation="read",outcome="filter"}`,
		`tenantcms_tenant_resolutions_total`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output is missing %s", want)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if !reflect.DeepEqual(cfg.Tenancy.HeaderNames, []string{"X-Tenant-Slug"}) {
		t.Errorf("expected X-Tenant-Slug header, got %v", cfg.Tenancy.HeaderNames)
	}
	if cfg.Tenancy.MultiTenantDefault != MultiTenantReject {
		t.Errorf("expected multi-tenant default %q, got %q", MultiTenantReject, cfg.Tenancy.MultiTenantDefault)
	}
	if cfg.NATS.URL != "" || cfg.Redis.Addr != "" {
		t.Error("NATS and Redis should be disabled by default")
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  allowed_origins: ["https://acme.example", "https://beta.example"]
postgres:
  max_conns: 20
tenancy:
  multi_tenant_default: first
  cache_ttl: 30s
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://beta.example" {
		t.Errorf("unexpected allowed origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Postgres.MaxConns != 20 {
		t.Errorf("expected max_conns 20, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Tenancy.MultiTenantDefault != MultiTenantFirst {
		t.Errorf("expected multi-tenant default first, got %s", cfg.Tenancy.MultiTenantDefault)
	}
	if cfg.Tenancy.CacheTTL != 30*time.Second {
		t.Errorf("expected cache ttl 30s, got %v", cfg.Tenancy.CacheTTL)
	}
	// Unchanged fields keep defaults
	if cfg.Tenancy.SelectedTenantCookie != "tenantcms-tenant" {
		t.Errorf("expected default cookie name, got %s", cfg.Tenancy.SelectedTenantCookie)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/path.yaml"); err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("TENANTCMS_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("TENANTCMS_TENANT_HEADERS", "X-Tenant-Slug,X-Site")
	t.Setenv("TENANTCMS_TENANT_CACHE_TTL", "5m")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("TENANTCMS_PG_MAX_CONNS", "not-a-number")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if !reflect.DeepEqual(cfg.Server.AllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if !reflect.DeepEqual(cfg.Tenancy.HeaderNames, []string{"X-Tenant-Slug", "X-Site"}) {
		t.Errorf("unexpected header names %v", cfg.Tenancy.HeaderNames)
	}
	if cfg.Tenancy.CacheTTL != 5*time.Minute {
		t.Errorf("expected cache ttl 5m, got %v", cfg.Tenancy.CacheTTL)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("expected redis addr, got %s", cfg.Redis.Addr)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("unparsable value should keep default, got %d", cfg.Postgres.MaxConns)
	}
}

func TestDotenvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("TENANTCMS_TEST_DOTENV=from-file\nTENANTCMS_TEST_PRESET=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TENANTCMS_TEST_PRESET", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("TENANTCMS_TEST_DOTENV") })

	if err := loadDotenv(envPath); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("TENANTCMS_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected dotenv value, got %q", got)
	}
	if got := os.Getenv("TENANTCMS_TEST_PRESET"); got != "from-env" {
		t.Errorf("dotenv must not override the environment, got %q", got)
	}
	if err := loadDotenv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing dotenv should not error, got %v", err)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "empty DSN",
			modify: func(c *Config) { c.Postgres.DSN = "" },
			errMsg: "postgres.dsn is required",
		},
		{
			name:   "zero max_conns",
			modify: func(c *Config) { c.Postgres.MaxConns = 0 },
			errMsg: "postgres.max_conns must be >= 1",
		},
		{
			name:   "short secret",
			modify: func(c *Config) { c.Auth.JWTSecret = "short" },
			errMsg: "auth.jwt_secret must be at least 32 characters",
		},
		{
			name:   "no tenant headers",
			modify: func(c *Config) { c.Tenancy.HeaderNames = nil },
			errMsg: "tenancy.header_names must not be empty",
		},
		{
			name:   "unknown multi-tenant default",
			modify: func(c *Config) { c.Tenancy.MultiTenantDefault = "random" },
			errMsg: `tenancy.multi_tenant_default must be "reject" or "first"`,
		},
		{
			name:   "wildcard mixed with origins",
			modify: func(c *Config) { c.Server.AllowedOrigins = []string{"*", "https://a.example"} },
			errMsg: `server.allowed_origins: "*" cannot be combined with explicit origins`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

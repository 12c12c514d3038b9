package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "tenantcms.yaml"

// DefaultEnvFile is the dotenv file overlaid onto the process environment.
const DefaultEnvFile = ".env"

// minSecretLen is the shortest accepted HMAC signing secret.
const minSecretLen = 32

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path. The YAML file is
// optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	if err := loadDotenv(DefaultEnvFile); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}
	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadDotenv copies variables from a dotenv file into the process
// environment without overriding variables that are already set.
func loadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "TENANTCMS_PORT")
	setList(&cfg.Server.AllowedOrigins, "ALLOWED_ORIGINS")
	setDuration(&cfg.Server.RequestTimeout, "TENANTCMS_REQUEST_TIMEOUT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TENANTCMS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TENANTCMS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TENANTCMS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TENANTCMS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TENANTCMS_PG_HEALTH_CHECK")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setString(&cfg.NATS.URL, "NATS_URL")

	// Auth
	setString(&cfg.Auth.JWTSecret, "TENANTCMS_JWT_SECRET")
	setDuration(&cfg.Auth.AccessTokenExpiry, "TENANTCMS_ACCESS_TOKEN_EXPIRY")
	setInt(&cfg.Auth.BcryptCost, "TENANTCMS_BCRYPT_COST")
	setString(&cfg.Auth.SuperAdminEmail, "TENANTCMS_SUPER_ADMIN_EMAIL")
	setString(&cfg.Auth.SuperAdminPassword, "TENANTCMS_SUPER_ADMIN_PASSWORD")
	setFloat64(&cfg.Auth.LoginRate, "TENANTCMS_LOGIN_RATE")
	setInt(&cfg.Auth.LoginBurst, "TENANTCMS_LOGIN_BURST")

	// Tenancy
	setList(&cfg.Tenancy.HeaderNames, "TENANTCMS_TENANT_HEADERS")
	setString(&cfg.Tenancy.SelectedTenantCookie, "TENANTCMS_TENANT_COOKIE")
	setString(&cfg.Tenancy.MultiTenantDefault, "TENANTCMS_MULTI_TENANT_DEFAULT")
	setDuration(&cfg.Tenancy.CacheTTL, "TENANTCMS_TENANT_CACHE_TTL")
	setString(&cfg.Tenancy.SeedTemplate, "TENANTCMS_SEED_TEMPLATE")
	setString(&cfg.Tenancy.TemplateDir, "TENANTCMS_TEMPLATE_DIR")
	setInt64(&cfg.Cache.L1MaxSizeMB, "TENANTCMS_CACHE_L1_SIZE_MB")

	setString(&cfg.Logging.Level, "TENANTCMS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TENANTCMS_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TENANTCMS_LOG_ASYNC")

	setBool(&cfg.OTEL.Enabled, "TENANTCMS_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setFloat64(&cfg.OTEL.SampleRate, "TENANTCMS_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if len(cfg.Auth.JWTSecret) < minSecretLen {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", minSecretLen)
	}
	if cfg.Auth.AccessTokenExpiry <= 0 {
		return errors.New("auth.access_token_expiry must be positive")
	}
	if len(cfg.Tenancy.HeaderNames) == 0 {
		return errors.New("tenancy.header_names must not be empty")
	}
	switch cfg.Tenancy.MultiTenantDefault {
	case MultiTenantReject, MultiTenantFirst:
	default:
		return fmt.Errorf("tenancy.multi_tenant_default must be %q or %q", MultiTenantReject, MultiTenantFirst)
	}
	for _, o := range cfg.Server.AllowedOrigins {
		if o == "*" && len(cfg.Server.AllowedOrigins) > 1 {
			return errors.New("server.allowed_origins: \"*\" cannot be combined with explicit origins")
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList reads a comma-separated list, dropping blank entries.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

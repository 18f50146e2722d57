package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrConfig is returned when the runtime configuration is unusable.
var ErrConfig = errors.New("app: invalid config")

// Config contains the server runtime configuration.
//
// Values come from an optional TOML file named by VAULT_CONFIG_FILE; VAULT_*
// environment variables override the file. Subsystem settings (session,
// password, two-factor, cookies) are loaded by their own packages.
type Config struct {
	Env       string `toml:"env"`
	HTTPAddr  string `toml:"http_addr"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	ReadHeaderTimeout time.Duration `toml:"read_header_timeout"`
	ReadTimeout       time.Duration `toml:"read_timeout"`
	WriteTimeout      time.Duration `toml:"write_timeout"`
	IdleTimeout       time.Duration `toml:"idle_timeout"`
	ShutdownTimeout   time.Duration `toml:"shutdown_timeout"`
	MaxHeaderBytes    int           `toml:"max_header_bytes"`

	DatabaseURL   string `toml:"database_url"`
	DBSchema      string `toml:"db_schema"`
	DBMaxConns    int32  `toml:"db_max_conns"`
	DBMinConns    int32  `toml:"db_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`

	// RedisURL enables the shared two-factor replay guard. Empty keeps it in memory.
	RedisURL string `toml:"redis_url"`

	// If true, /readyz returns 503 unless Postgres is configured and reachable.
	ReadinessRequireDB bool `toml:"readiness_require_db"`

	// RequireTokenHMAC forces refresh-secret hashing to be keyed (VAULT_TOKEN_HMAC_KEY).
	RequireTokenHMAC bool `toml:"require_token_hmac"`

	KDFMaxConcurrent int `toml:"kdf_max_concurrent"`

	AuditBufferSize int  `toml:"audit_buffer_size"`
	AuditDropIfFull bool `toml:"audit_drop_if_full"`
	// AuditStdout mirrors every audit event to stdout as JSON lines.
	AuditStdout bool `toml:"audit_stdout"`

	MetricsEnabled bool `toml:"metrics_enabled"`

	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	CORSMaxAgeSeconds  int      `toml:"cors_max_age_seconds"`
}

// Production reports whether the strict startup policy applies.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		Env:       "development",
		HTTPAddr:  "0.0.0.0:8080",
		LogLevel:  "info",
		LogFormat: "json",

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxHeaderBytes:    1 << 20,

		DBSchema:      "vault",
		DBMaxConns:    10,
		RunMigrations: true,

		AuditBufferSize: 1024,
		MetricsEnabled:  true,

		CORSMaxAgeSeconds: 600,
	}
}

// LoadConfig builds Config from defaults, the optional TOML file and the environment.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path, ok := lookupEnv("VAULT_CONFIG_FILE"); ok {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays VAULT_* variables on c. Variables that are set but
// malformed fail with ErrConfig instead of silently keeping the old value.
func applyEnv(c *Config) error {
	var o envOverlay
	o.str("VAULT_ENV", &c.Env)
	o.str("VAULT_HTTP_ADDR", &c.HTTPAddr)
	o.str("VAULT_LOG_LEVEL", &c.LogLevel)
	o.str("VAULT_LOG_FORMAT", &c.LogFormat)

	o.duration("VAULT_HTTP_READ_HEADER_TIMEOUT", &c.ReadHeaderTimeout)
	o.duration("VAULT_HTTP_READ_TIMEOUT", &c.ReadTimeout)
	o.duration("VAULT_HTTP_WRITE_TIMEOUT", &c.WriteTimeout)
	o.duration("VAULT_HTTP_IDLE_TIMEOUT", &c.IdleTimeout)
	o.duration("VAULT_HTTP_SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	o.positive("VAULT_HTTP_MAX_HEADER_BYTES", &c.MaxHeaderBytes)

	o.str("VAULT_DATABASE_URL", &c.DatabaseURL)
	o.str("VAULT_DB_SCHEMA", &c.DBSchema)
	o.conns("VAULT_DB_MAX_CONNS", &c.DBMaxConns)
	o.conns("VAULT_DB_MIN_CONNS", &c.DBMinConns)
	o.boolean("VAULT_DB_RUN_MIGRATIONS", &c.RunMigrations)

	o.str("VAULT_REDIS_URL", &c.RedisURL)

	o.boolean("VAULT_READINESS_REQUIRE_DB", &c.ReadinessRequireDB)
	o.boolean("VAULT_REQUIRE_TOKEN_HMAC", &c.RequireTokenHMAC)

	o.positive("VAULT_KDF_MAX_CONCURRENT", &c.KDFMaxConcurrent)

	o.positive("VAULT_AUDIT_BUFFER_SIZE", &c.AuditBufferSize)
	o.boolean("VAULT_AUDIT_DROP_IF_FULL", &c.AuditDropIfFull)
	o.boolean("VAULT_AUDIT_STDOUT", &c.AuditStdout)

	o.boolean("VAULT_METRICS_ENABLED", &c.MetricsEnabled)

	o.list("VAULT_CORS_ALLOWED_ORIGINS", &c.CORSAllowedOrigins)
	o.positive("VAULT_CORS_MAX_AGE_SECONDS", &c.CORSMaxAgeSeconds)
	return o.err()
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.HTTPAddr) == "":
		return fmt.Errorf("%w: http_addr is empty", ErrConfig)
	case c.DatabaseURL != "" && strings.TrimSpace(c.DBSchema) == "":
		return fmt.Errorf("%w: db_schema is empty", ErrConfig)
	case c.DBMinConns > c.DBMaxConns && c.DBMaxConns > 0:
		return fmt.Errorf("%w: db_min_conns exceeds db_max_conns", ErrConfig)
	case c.AuditBufferSize < 0:
		return fmt.Errorf("%w: audit_buffer_size is negative", ErrConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "pretty", "text":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrConfig, c.LogFormat)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// defaultCredits is granted when a balance is first materialized.
const defaultCredits = 10

// Config holds the creditgate configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Credits    CreditsConfig    `yaml:"credits"`
	Pagination PaginationConfig `yaml:"pagination"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig selects and configures the ledger backend.
type DatabaseConfig struct {
	Driver           string         `yaml:"driver"` // sqlite, postgres, redis, memory (default: sqlite)
	SQLite           SQLiteConfig   `yaml:"sqlite"`
	Postgres         PostgresConfig `yaml:"postgres"`
	Redis            RedisConfig    `yaml:"redis"`
	ReadinessTimeout int            `yaml:"readiness_timeout_sec"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	ReadPoolSize int    `yaml:"read_pool_size"`
}

// PostgresConfig holds PostgreSQL settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// AuthConfig holds token issuing and verification settings.
type AuthConfig struct {
	JWTSecret        string     `yaml:"jwt_secret"`
	Issuer           string     `yaml:"issuer"`
	Audience         string     `yaml:"audience"`
	TokenTTLSec      int        `yaml:"token_ttl_sec"`
	ResetTokenTTLSec int        `yaml:"reset_token_ttl_sec"`
	OIDC             OIDCConfig `yaml:"oidc"`
}

// OIDCConfig enables verification of tokens from an external identity provider.
type OIDCConfig struct {
	IssuerURL string `yaml:"issuer_url"`
	Audience  string `yaml:"audience"`
}

// Enabled reports whether an external issuer is configured.
func (o OIDCConfig) Enabled() bool { return o.IssuerURL != "" }

// TokenTTL returns the access token lifetime.
func (a AuthConfig) TokenTTL() time.Duration { return time.Duration(a.TokenTTLSec) * time.Second }

// ResetTokenTTL returns the password reset token lifetime.
func (a AuthConfig) ResetTokenTTL() time.Duration {
	return time.Duration(a.ResetTokenTTLSec) * time.Second
}

// CreditsConfig holds ledger settings.
type CreditsConfig struct {
	Default *int64 `yaml:"default"` // nil: defaultCredits
}

// DefaultCredits returns the balance granted on first access.
func (c CreditsConfig) DefaultCredits() int64 {
	if c.Default == nil {
		return defaultCredits
	}
	return *c.Default
}

// PaginationConfig bounds admin listings.
type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.SQLite.ReadPoolSize <= 0 {
		c.Database.SQLite.ReadPoolSize = 4
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "creditgate"
	}
	if c.Auth.Audience == "" {
		c.Auth.Audience = "creditgate:auth"
	}
	if c.Auth.TokenTTLSec <= 0 {
		c.Auth.TokenTTLSec = 3600
	}
	if c.Auth.ResetTokenTTLSec <= 0 {
		c.Auth.ResetTokenTTLSec = 3600
	}
	if c.Pagination.DefaultPageSize <= 0 {
		c.Pagination.DefaultPageSize = 20
	}
	if c.Pagination.MaxPageSize <= 0 {
		c.Pagination.MaxPageSize = 100
	}
}

// minSecretLength is the shortest accepted HS256 secret.
const minSecretLength = 32

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if err := c.Database.validate(); err != nil {
		return err
	}
	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minSecretLength)
	}
	if c.Auth.OIDC.Enabled() && c.Auth.OIDC.Audience == "" {
		return fmt.Errorf("auth.oidc.audience is required when auth.oidc.issuer_url is set")
	}
	if c.Credits.DefaultCredits() < 0 {
		return fmt.Errorf("credits.default must be >= 0, got %d", c.Credits.DefaultCredits())
	}
	if c.Pagination.DefaultPageSize > c.Pagination.MaxPageSize {
		return fmt.Errorf("pagination.default_page_size (%d) exceeds max_page_size (%d)",
			c.Pagination.DefaultPageSize, c.Pagination.MaxPageSize)
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	switch d.Driver {
	case DriverSQLite:
		if d.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required for driver %q", d.Driver)
		}
	case DriverPostgres:
		if d.Postgres.DSN == "" {
			return fmt.Errorf("database.postgres.dsn is required for driver %q", d.Driver)
		}
	case DriverRedis:
		if len(d.Redis.Addrs) == 0 {
			return fmt.Errorf("database.redis.addrs is required for driver %q", d.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be one of sqlite, postgres, redis, memory, got %q", d.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

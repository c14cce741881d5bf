package creditgate

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/creditgate/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	db config.DatabaseConfig

	defaultCredits int64
	tokenSecret    string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithSQLite stores the ledger in a SQLite file. Migrations run on New.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.db.Driver = config.DriverSQLite
		c.db.SQLite.Path = path
	})
}

// WithPostgres stores the ledger in PostgreSQL. Migrations run on New.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.db.Driver = config.DriverPostgres
		c.db.Postgres.DSN = dsn
	})
}

// WithRedis stores the ledger in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.db.Driver = config.DriverRedis
		c.db.Redis.Addrs = []string{addr}
		c.db.Redis.Password = password
	})
}

// WithMemory keeps the ledger in process memory. Nothing survives Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.db.Driver = config.DriverMemory
	})
}

// WithDefaultCredits sets the balance granted on first access. Default: 10.
func WithDefaultCredits(n int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultCredits = n
	})
}

// WithTokenSecret sets the HS256 secret for access tokens. Without it a
// random secret is generated, so tokens only verify within this Client.
func WithTokenSecret(secret string) Option {
	return optionFunc(func(c *clientConfig) {
		c.tokenSecret = secret
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

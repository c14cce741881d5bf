// Package storage opens the configured ledger backend.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/creditgate/internal/config"
	dbPostgres "github.com/kailas-cloud/creditgate/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/creditgate/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/creditgate/internal/db/sqlite"
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
	memrepo "github.com/kailas-cloud/creditgate/internal/repository/memory"
	pgrepo "github.com/kailas-cloud/creditgate/internal/repository/postgres"
	redisrepo "github.com/kailas-cloud/creditgate/internal/repository/redis"
	sqliterepo "github.com/kailas-cloud/creditgate/internal/repository/sqlite"
)

// Repository is the identity store plus balance ledger every backend provides.
//
//nolint:interfacebloat // one backend serves every usecase
type Repository interface {
	CreatePrincipal(ctx context.Context, p principal.Principal) error
	GetPrincipal(ctx context.Context, id string) (principal.Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (principal.Principal, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
	PatchPrincipal(ctx context.Context, id string, patch account.Patch) (principal.Principal, error)
	DeleteAccount(ctx context.Context, id string) error
	GetAccount(ctx context.Context, id string) (account.Account, error)
	ListAccounts(ctx context.Context, offset, limit int) ([]account.Account, int, error)

	GetOrCreate(ctx context.Context, id string, defaultCredits int64) (balance.Balance, bool, error)
	Get(ctx context.Context, id string) (balance.Balance, error)
	Adjust(ctx context.Context, id string, delta int64) (balance.Balance, error)
	Spend(ctx context.Context, id string, amount int64) (balance.Balance, error)
	SetAbsolute(ctx context.Context, id string, value int64) (balance.Balance, error)
	Delete(ctx context.Context, id string) error
}

var (
	_ Repository = (*sqliterepo.Repo)(nil)
	_ Repository = (*pgrepo.Repo)(nil)
	_ Repository = (*redisrepo.Repo)(nil)
	_ Repository = (*memrepo.Repo)(nil)
)

// Backend is an opened ledger backend.
type Backend struct {
	Repository
	driver string
	ping   func(ctx context.Context) error
	close  func() error
}

// Driver returns the configured driver name.
func (b *Backend) Driver() string { return b.driver }

// Ping checks backend connectivity.
func (b *Backend) Ping(ctx context.Context) error { return b.ping(ctx) }

// Close releases the backend's connections.
func (b *Backend) Close() error { return b.close() }

// Open connects to the backend selected by cfg.Driver. SQL schemas are
// migrated before Open returns; Redis needs none.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	switch cfg.Driver {
	case config.DriverSQLite:
		pair, err := dbSQLite.OpenPair(cfg.SQLite.Path, cfg.SQLite.ReadPoolSize)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := dbSQLite.Migrate(pair.Write); err != nil {
			_ = pair.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		logger.Info("Connected to database",
			zap.String("driver", cfg.Driver),
			zap.String("path", cfg.SQLite.Path),
		)
		return &Backend{
			Repository: sqliterepo.New(pair),
			driver:     cfg.Driver,
			ping:       pair.Ping,
			close:      pair.Close,
		}, nil

	case config.DriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, readiness)
		defer cancel()
		pg, err := dbPostgres.Connect(connectCtx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("Connected to database", zap.String("driver", cfg.Driver))
		return &Backend{
			Repository: pgrepo.New(pg.DB),
			driver:     cfg.Driver,
			ping:       pg.Ping,
			close:      pg.Close,
		}, nil

	case config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to database",
			zap.String("driver", cfg.Driver),
			zap.Strings("addrs", cfg.Redis.Addrs),
		)
		return &Backend{
			Repository: redisrepo.New(store, cfg.Redis.KeyPrefix),
			driver:     cfg.Driver,
			ping:       store.Ping,
			close: func() error {
				store.Close()
				return nil
			},
		}, nil

	case config.DriverMemory:
		repo := memrepo.New()
		logger.Warn("Using in-memory ledger, state is lost on exit")
		return &Backend{
			Repository: repo,
			driver:     cfg.Driver,
			ping:       repo.Ping,
			close:      func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

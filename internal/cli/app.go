package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/creditgate/internal/auth"
	"github.com/kailas-cloud/creditgate/internal/config"
	logpkg "github.com/kailas-cloud/creditgate/internal/logger"
	"github.com/kailas-cloud/creditgate/internal/notify"
	"github.com/kailas-cloud/creditgate/internal/storage"
	accountuc "github.com/kailas-cloud/creditgate/internal/usecase/account"
	adminuc "github.com/kailas-cloud/creditgate/internal/usecase/admin"
	meteringuc "github.com/kailas-cloud/creditgate/internal/usecase/metering"
)

// App holds the usecases the operator commands drive.
type App struct {
	Driver   string
	Accounts *accountuc.Service
	Metering *meteringuc.Service
	Admin    *adminuc.Service

	close func() error
}

// Close releases the backend.
func (a *App) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// Opener builds an App for the environment name.
type Opener func(ctx context.Context, env string) (*App, error)

// OpenConfigured loads config/<env>.yaml and opens its backend.
// Opening a SQL backend applies pending migrations.
func OpenConfigured(ctx context.Context, env string) (*App, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, err
	}
	logger, err := logpkg.NewLogger(env, "warn")
	if err != nil {
		return nil, err
	}

	backend, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	app, err := NewApp(backend, cfg, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	app.Driver = backend.Driver()
	app.close = func() error {
		_ = logger.Sync()
		return backend.Close()
	}
	return app, nil
}

// NewApp wires the usecases over repo.
func NewApp(repo storage.Repository, cfg config.Config, logger *zap.Logger) (*App, error) {
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL(),
		ResetTTL: cfg.Auth.ResetTokenTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	return &App{
		Driver:   cfg.Database.Driver,
		Accounts: accountuc.New(repo, auth.NewHasher(0), tokens, notify.NewLogNotifier(logger)),
		Metering: meteringuc.New(repo, cfg.Credits.DefaultCredits()),
		Admin: adminuc.New(repo).
			WithPagination(cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize),
	}, nil
}

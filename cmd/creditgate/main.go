package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/creditgate/internal/auth"
	"github.com/kailas-cloud/creditgate/internal/config"
	logpkg "github.com/kailas-cloud/creditgate/internal/logger"
	"github.com/kailas-cloud/creditgate/internal/metrics"
	"github.com/kailas-cloud/creditgate/internal/notify"
	"github.com/kailas-cloud/creditgate/internal/storage"
	chiTransport "github.com/kailas-cloud/creditgate/internal/transport/chi"
	accountuc "github.com/kailas-cloud/creditgate/internal/usecase/account"
	adminuc "github.com/kailas-cloud/creditgate/internal/usecase/admin"
	computeuc "github.com/kailas-cloud/creditgate/internal/usecase/compute"
	healthuc "github.com/kailas-cloud/creditgate/internal/usecase/health"
	meteringuc "github.com/kailas-cloud/creditgate/internal/usecase/metering"
	"github.com/kailas-cloud/creditgate/internal/version"
)

func main() {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creditgate: load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creditgate: create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, env, cfg, logger)
	stop()
	if err != nil {
		logger.Error("creditgate exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run serves the API until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, env string, cfg config.Config, logger *zap.Logger) error {
	logger.Info("Starting creditgate API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Int64("default_credits", cfg.Credits.DefaultCredits()),
	)

	backend, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer func() { _ = backend.Close() }()
	logger.Info("Ledger store ready", zap.String("driver", backend.Driver()))

	metrics.RegisterHTTPMetrics()
	metrics.RegisterCreditMetrics()

	handler, err := buildHandler(ctx, cfg, backend, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received, draining")

	drainCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// buildHandler wires the use cases over backend and returns the full
// middleware stack around the API routes.
func buildHandler(ctx context.Context, cfg config.Config, backend *storage.Backend, logger *zap.Logger) (http.Handler, error) {
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

	accounts := accountuc.New(backend, auth.NewHasher(0), tokens, notify.NewLogNotifier(logger))
	health := healthuc.New(backend)

	if oidc := cfg.Auth.OIDC; oidc.Enabled() {
		verifier, err := auth.NewOIDCVerifier(ctx, oidc.IssuerURL, oidc.Audience)
		if err != nil {
			return nil, fmt.Errorf("oidc verifier: %w", err)
		}
		accounts.WithExternalIdentity(verifier)
		health.WithCheck("oidc", verifier)
		logger.Info("External identity provider enabled", zap.String("issuer", oidc.IssuerURL))
	}

	metering := meteringuc.New(backend, cfg.Credits.DefaultCredits())
	compute := computeuc.New(meteringuc.NewInstrumented(metering, logger))
	admin := adminuc.New(backend).WithPagination(cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize)

	server := chiTransport.NewServer(accounts, metering, compute, admin, health, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLog(logger))
	r.Use(metrics.Middleware())
	r.Use(chiTransport.CORS(cfg.HTTP.CORSOrigins))
	chiTransport.Mount(r, server, accounts)
	return r, nil
}

package creditgate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/creditgate/internal/auth"
	"github.com/kailas-cloud/creditgate/internal/config"
	"github.com/kailas-cloud/creditgate/internal/notify"
	"github.com/kailas-cloud/creditgate/internal/storage"
	accountuc "github.com/kailas-cloud/creditgate/internal/usecase/account"
	adminuc "github.com/kailas-cloud/creditgate/internal/usecase/admin"
	healthuc "github.com/kailas-cloud/creditgate/internal/usecase/health"
	meteringuc "github.com/kailas-cloud/creditgate/internal/usecase/metering"
)

const (
	defaultReadinessTimeoutSec = 10
	defaultReadPoolSize        = 4
	tokenAudience              = "creditgate:sdk"
)

// Client is the creditgate SDK entry point.
type Client struct {
	backend  *storage.Backend
	accounts *accountuc.Service
	metering *meteringuc.Service
	admin    *adminuc.Service
	health   *healthuc.Service
	obs      *observer
}

// New opens the configured store and wires the ledger.
// The provided context bounds the initial connection and migrations.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		defaultCredits: config.CreditsConfig{}.DefaultCredits(),
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.db.Driver == "" {
		return nil, errors.New("creditgate: storage required (use WithSQLite, WithPostgres, WithRedis or WithMemory)")
	}
	if cfg.defaultCredits < 0 {
		return nil, fmt.Errorf("creditgate: default credits must be >= 0, got %d", cfg.defaultCredits)
	}
	if cfg.db.ReadinessTimeout <= 0 {
		cfg.db.ReadinessTimeout = defaultReadinessTimeoutSec
	}
	if cfg.db.SQLite.ReadPoolSize <= 0 {
		cfg.db.SQLite.ReadPoolSize = defaultReadPoolSize
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	secret := cfg.tokenSecret
	if secret == "" {
		if secret, err = randomSecret(); err != nil {
			return nil, err
		}
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   secret,
		Issuer:   "creditgate",
		Audience: tokenAudience,
		TTL:      time.Hour,
		ResetTTL: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("creditgate: %w", err)
	}

	backend, err := storage.Open(ctx, cfg.db, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("creditgate: %w", err)
	}

	return &Client{
		backend:  backend,
		accounts: accountuc.New(backend, auth.NewHasher(0), tokens, notify.NewLogNotifier(nil)),
		metering: meteringuc.New(backend, cfg.defaultCredits),
		admin:    adminuc.New(backend),
		health:   healthuc.New(backend),
		obs:      obs,
	}, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("creditgate: generate token secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Close releases all resources.
func (c *Client) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	done := c.obs.track("ping")
	defer func() { done(err) }()

	if err = c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Register creates an active, unverified, non-admin principal. No balance is
// created until the first Balance or Charge.
func (c *Client) Register(ctx context.Context, email, password string) (_ Principal, err error) {
	done := c.obs.track("register")
	defer func() { done(err) }()

	p, err := c.accounts.Register(ctx, email, password)
	if err != nil {
		return Principal{}, err
	}
	return principalFromDomain(p), nil
}

// Login checks a password and issues an access token.
func (c *Client) Login(ctx context.Context, email, password string) (_ Token, err error) {
	done := c.obs.track("login")
	defer func() { done(err) }()

	tok, err := c.accounts.Login(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: tok.Token, ExpiresAt: tok.ExpiresAt}, nil
}

// Authenticate resolves an access token to an active principal.
func (c *Client) Authenticate(ctx context.Context, token string) (_ Principal, err error) {
	done := c.obs.track("authenticate")
	defer func() { done(err) }()

	p, err := c.accounts.Authenticate(ctx, token)
	if err != nil {
		return Principal{}, err
	}
	return principalFromDomain(p), nil
}

// Balance returns the credits of p, creating the default balance on first access.
func (c *Client) Balance(ctx context.Context, p Principal) (_ int64, err error) {
	done := c.obs.track("balance")
	defer func() { done(err) }()

	b, err := c.metering.Balance(ctx, p.p)
	if err != nil {
		return 0, err
	}
	return b.Credits(), nil
}

// Charge runs fn on behalf of p and spends one credit when it succeeds.
// It returns fn's result and the credits left.
//
// A principal without credits gets ErrInsufficientCredits and fn is not
// called. A failing or cancelled fn is not charged.
func Charge[T any](
	ctx context.Context, c *Client, p Principal, operation string, fn func(ctx context.Context) (T, error),
) (_ T, _ int64, err error) {
	done := c.obs.track("charge")
	defer func() { done(err) }()

	out, b, err := meteringuc.Run(ctx, c.metering, p.p, operation, fn)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	c.obs.spent(operation)
	return out, b.Credits(), nil
}

// Admin returns the administrative operations performed by actor.
// Every call is checked against actor's privileges.
func (c *Client) Admin(actor Principal) *AdminService {
	return &AdminService{svc: c.admin, actor: actor.p, obs: c.obs}
}

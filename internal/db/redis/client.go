// Package redis is the rueidis-backed key-value store behind the Redis ledger.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/creditgate/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	firstReadyDelay = 50 * time.Millisecond
	maxReadyDelay   = time.Second
)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store implements db.Store over a single rueidis client.
// Client-side caching is off: balances must always be read from the server.
type Store struct {
	client  rueidis.Client
	scripts sync.Map // *db.Script -> *rueidis.Lua
}

// NewStore dials Redis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: connect %v: %w", cfg.Addrs, err)
	}
	return NewStoreWithClient(client), nil
}

// NewStoreWithClient wraps an existing client. Tests pass a rueidis mock.
func NewStoreWithClient(c rueidis.Client) *Store {
	return &Store{client: c}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return fail(db.OpPing, s.client.Do(ctx, s.client.B().Ping().Build()).Error())
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings with exponential backoff until Redis answers or timeout
// expires. The last ping error is reported on timeout.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := firstReadyDelay
	var lastErr error
	for {
		if lastErr = s.Ping(ctx); lastErr == nil {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis not ready after %s: %w", timeout, lastErr)
		case <-timer.C:
		}
		delay = min(delay*2, maxReadyDelay)
	}
}

// fail wraps a non-nil command error with its operation name.
func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &db.Error{Op: op, Err: err}
}

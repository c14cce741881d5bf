// Package redis implements the ledger and identity store on Redis.
//
// Every mutation is a Lua script, so Redis executes it atomically; the
// conditional spend in particular cannot interleave with another writer.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/creditgate/internal/db"
	"github.com/kailas-cloud/creditgate/internal/domain"
)

// store is the consumer interface for the ledger (ISP).
type store interface {
	db.HashStore
	db.KVStore
	db.SortedSetReader
	db.ScriptRunner
}

// Repo implements the balance ledger and identity store.
type Repo struct {
	store store
	keys  keys
	now   func() int64
}

// New creates a repository. An empty prefix selects DefaultPrefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Repo{
		store: s,
		keys:  keys{prefix: prefix},
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

func (r *Repo) run(ctx context.Context, script *db.Script, keys []string, args ...string) ([]int64, error) {
	reply, err := r.store.RunScript(ctx, script, keys, args)
	if err != nil {
		return nil, unavailable(script.Name, err)
	}
	if len(reply) == 0 {
		return nil, unavailable(script.Name, errors.New("empty reply"))
	}
	return reply, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

// statusErr maps a non-success script status onto a domain error.
func statusErr(status int64) error {
	switch status {
	case statusNotFound:
		return domain.ErrNotFound
	case statusInsufficient:
		return domain.ErrInsufficientCredits
	case statusExists:
		return domain.ErrAlreadyExists
	default:
		return fmt.Errorf("%w: unexpected script status %d", domain.ErrStorageUnavailable, status)
	}
}

// Package sqlite implements the ledger and identity store on SQLite.
//
// Writes go through the single-connection write pool, whose transactions
// begin IMMEDIATE; that serializes writers per database and makes every
// read-then-write inside a transaction race-free.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	sqlitedb "github.com/kailas-cloud/creditgate/internal/db/sqlite"
	"github.com/kailas-cloud/creditgate/internal/domain"
)

// Repo implements the balance ledger and identity store.
type Repo struct {
	write *sql.DB
	read  *sql.DB
	now   func() int64
}

// New creates a repository over an opened, migrated pool pair.
func New(p *sqlitedb.Pair) *Repo {
	return &Repo{
		write: p.Write,
		read:  p.Read,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

// inTx runs fn in a write transaction, committing on nil error.
func (r *Repo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// classify maps driver errors onto domain sentinels. Domain errors pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInsufficientCredits):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrNotFound
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return domain.ErrNotFound
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return domain.ErrAlreadyExists
		}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// Package postgres implements the ledger and identity store on PostgreSQL via gorm.
//
// Every balance mutation is a single conditional statement, so the row lock
// Postgres takes for the UPDATE serializes writers of one account.
package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/kailas-cloud/creditgate/internal/domain"
)

// Repo implements the balance ledger and identity store.
type Repo struct {
	db  *gorm.DB
	now func() int64
}

// New creates a repository over a migrated database.
func New(db *gorm.DB) *Repo {
	return &Repo{
		db:  db,
		now: func() int64 { return time.Now().UnixMilli() },
	}
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
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	}
	switch {
	case isForeignKeyViolation(err), isInvalidText(err):
		return domain.ErrNotFound
	case isUniqueViolation(err):
		return domain.ErrAlreadyExists
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// isInvalidText reports a malformed uuid literal, which can never match a row.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// Package sqlite opens hardened SQLite pools and applies the embedded schema.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// Pool modes.
const (
	ModeRead  = "read"
	ModeWrite = "write"
)

// DSN parameters applied to every connection.
const (
	busyTimeout = "5000" // ms
	synchronous = "NORMAL"
	journalMode = "WAL"
)

// Open opens a *sql.DB pool for the SQLite file at path.
//
// The write pool holds a single connection and begins transactions with
// BEGIN IMMEDIATE, so writers are serialized and a read inside a write
// transaction cannot be invalidated by another writer. The read pool holds
// maxOpen connections (0 means 4).
func Open(path, mode string, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	switch mode {
	case ModeWrite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case ModeRead:
		if maxOpen <= 0 {
			maxOpen = 4
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}

	return db, nil
}

// Pair is a write pool and a read pool over the same file.
type Pair struct {
	Write *sql.DB
	Read  *sql.DB
}

// OpenPair opens the write pool first so the file is created in WAL mode
// before readers attach.
func OpenPair(path string, readMaxOpen int) (*Pair, error) {
	w, err := Open(path, ModeWrite, 0)
	if err != nil {
		return nil, err
	}
	r, err := Open(path, ModeRead, readMaxOpen)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Pair{Write: w, Read: r}, nil
}

// Ping checks both pools.
func (p *Pair) Ping(ctx context.Context) error {
	if err := p.Write.PingContext(ctx); err != nil {
		return fmt.Errorf("ping write pool: %w", err)
	}
	if err := p.Read.PingContext(ctx); err != nil {
		return fmt.Errorf("ping read pool: %w", err)
	}
	return nil
}

// Close closes both pools.
func (p *Pair) Close() error {
	return errors.Join(p.Read.Close(), p.Write.Close())
}

func buildDSN(path, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", journalMode)
	params.Set("_busy_timeout", busyTimeout)
	params.Set("_synchronous", synchronous)
	params.Set("_foreign_keys", "on")

	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}

	return path + "?" + params.Encode()
}

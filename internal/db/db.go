package db

import (
	"context"
	"time"
)

// Store is the key-value facade used by the Redis ledger backend.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	SortedSetReader
	ScriptRunner
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash reads. Writes go through scripts so that
// multi-key updates stay atomic.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
}

// SortedSetReader reads lexicographically ordered members of a sorted set.
type SortedSetReader interface {
	ZCard(ctx context.Context, key string) (int64, error)
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// ScriptRunner executes server-side scripts. Scripts return a flat list of integers.
type ScriptRunner interface {
	RunScript(ctx context.Context, script *Script, keys, args []string) ([]int64, error)
}

// Script is a named server-side Lua script.
type Script struct {
	Name   string
	Source string
}

// NewScript declares a script. Declare scripts once at package level.
func NewScript(name, source string) *Script {
	return &Script{Name: name, Source: source}
}

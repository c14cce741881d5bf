package redis

import (
	"context"
	"testing"

	"github.com/kailas-cloud/creditgate/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	existsFn       func(ctx context.Context, key string) (bool, error)
	getFn          func(ctx context.Context, key string) ([]byte, error)
	delFn          func(ctx context.Context, key string) error
	zcardFn        func(ctx context.Context, key string) (int64, error)
	zrangeFn       func(ctx context.Context, key string, start, stop int64) ([]string, error)
	runScriptFn    func(ctx context.Context, script *db.Script, keys, args []string) ([]int64, error)
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) ZCard(ctx context.Context, key string) (int64, error) {
	if m.zcardFn != nil {
		return m.zcardFn(ctx, key)
	}
	return 0, nil
}

func (m *mockStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if m.zrangeFn != nil {
		return m.zrangeFn(ctx, key, start, stop)
	}
	return nil, nil
}

func (m *mockStore) RunScript(ctx context.Context, script *db.Script, keys, args []string) ([]int64, error) {
	if m.runScriptFn != nil {
		return m.runScriptFn(ctx, script, keys, args)
	}
	return []int64{statusOK}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, "t:")
	repo.now = func() int64 { return 1700000000000 }
	return repo, ms
}

func principalHash(id, email string) map[string]string {
	return map[string]string{
		"id":            id,
		"email":         email,
		"password_hash": "h",
		"is_active":     "1",
		"is_verified":   "0",
		"is_admin":      "0",
		"created_at":    "1700000000000",
	}
}

package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/creditgate/internal/db"
)

// Get reads a string key. A missing key is db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, db.ErrKeyNotFound
	}
	return data, fail(db.OpGet, err)
}

// Del removes a key. Removing a missing key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	return fail(db.OpDel, s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error())
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, fail(db.OpExists, err)
	}
	return n > 0, nil
}

// HGetAll reads a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.client.Do(ctx, s.client.B().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, fail(db.OpHGetAll, err)
	}
	return m, nil
}

// HGetAllMulti reads several hashes in one pipelined round-trip, in key order.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, 0, len(keys))
	for _, key := range keys {
		cmds = append(cmds, s.client.B().Hgetall().Key(key).Build())
	}

	out := make([]map[string]string, 0, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, fail(db.OpHGetAll, fmt.Errorf("key %s: %w", keys[i], err))
		}
		out = append(out, m)
	}
	return out, nil
}

// ZCard counts the members of a sorted set.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Do(ctx, s.client.B().Zcard().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, fail(db.OpZCard, err)
	}
	return n, nil
}

// ZRange returns members by rank, inclusive on both ends.
func (s *Store) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	cmd := s.client.B().Zrange().Key(key).
		Min(strconv.FormatInt(start, 10)).
		Max(strconv.FormatInt(stop, 10)).
		Build()
	members, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, fail(db.OpZRange, err)
	}
	return members, nil
}

package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/creditgate/internal/db"
)

// RunScript executes a Lua script with EVALSHA, falling back to EVAL on NOSCRIPT.
// The script must return an array of integers or decimal strings. Scripts
// return int64 values as strings since Lua numbers are doubles.
func (s *Store) RunScript(ctx context.Context, script *db.Script, keys, args []string) ([]int64, error) {
	vals, err := s.lua(script).Exec(ctx, s.client, keys, args).AsIntSlice()
	if err != nil {
		return nil, fail(db.OpEval, fmt.Errorf("%s: %w", script.Name, err))
	}
	return vals, nil
}

func (s *Store) lua(script *db.Script) *rueidis.Lua {
	if l, ok := s.scripts.Load(script); ok {
		return l.(*rueidis.Lua)
	}
	l, _ := s.scripts.LoadOrStore(script, rueidis.NewLuaScript(script.Source))
	return l.(*rueidis.Lua)
}

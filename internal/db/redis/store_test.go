package redis

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/creditgate/internal/db"
)

const (
	principalKey = "{creditgate}:principal:p-1"
	balanceKey   = "{creditgate}:balance:p-1"
	indexKey     = "{creditgate}:principals"
)

// harness returns a Store backed by a strict mock client.
func harness(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return NewStoreWithClient(c), c
}

func requireOpError(t *testing.T, err error, op string, cause error) {
	t.Helper()
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("err = %v (%T), want *db.Error", err, err)
	}
	if dbErr.Op != op {
		t.Errorf("Op = %q, want %q", dbErr.Op, op)
	}
	if cause != nil && !errors.Is(err, cause) {
		t.Errorf("err = %v, want it to wrap %v", err, cause)
	}
}

func TestNewStore_RequiresAddress(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("NewStore without addresses should fail")
	}
}

func TestPing(t *testing.T) {
	s, c := harness(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(context.DeadlineExceeded)),
	)

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("first ping: %v", err)
	}
	requireOpError(t, s.Ping(context.Background()), db.OpPing, context.DeadlineExceeded)
}

func TestWaitForReady_RetriesUntilPong(t *testing.T) {
	s, c := harness(t)
	refused := errors.New("connection refused")
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(refused)).Times(2),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
	)

	if err := s.WaitForReady(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("WaitForReady: %v", err)
	}
}

func TestWaitForReady_ReportsLastError(t *testing.T) {
	s, c := harness(t)
	refused := errors.New("connection refused")
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(refused)).MinTimes(1)

	err := s.WaitForReady(context.Background(), 30*time.Millisecond)
	if !errors.Is(err, refused) {
		t.Fatalf("err = %v, want the last ping error", err)
	}
}

func TestHGetAll(t *testing.T) {
	t.Run("hash", func(t *testing.T) {
		s, c := harness(t)
		c.EXPECT().
			Do(gomock.Any(), mock.Match("HGETALL", principalKey)).
			Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
				"email": mock.RedisString("alice@example.com"),
				"admin": mock.RedisString("0"),
			})))

		fields, err := s.HGetAll(context.Background(), principalKey)
		if err != nil {
			t.Fatalf("HGetAll: %v", err)
		}
		if fields["email"] != "alice@example.com" || fields["admin"] != "0" {
			t.Errorf("fields = %v", fields)
		}
	})

	t.Run("failure", func(t *testing.T) {
		s, c := harness(t)
		c.EXPECT().
			Do(gomock.Any(), mock.Match("HGETALL", principalKey)).
			Return(mock.ErrorResult(context.Canceled))

		_, err := s.HGetAll(context.Background(), principalKey)
		requireOpError(t, err, db.OpHGetAll, context.Canceled)
	})
}

func TestHGetAllMulti(t *testing.T) {
	t.Run("pipelined", func(t *testing.T) {
		s, c := harness(t)
		c.EXPECT().
			DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]rueidis.RedisResult{
				mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{"credits": mock.RedisString("7")})),
				mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})),
			})

		got, err := s.HGetAllMulti(context.Background(), []string{balanceKey, "{creditgate}:balance:p-2"})
		if err != nil {
			t.Fatalf("HGetAllMulti: %v", err)
		}
		if len(got) != 2 || got[0]["credits"] != "7" || len(got[1]) != 0 {
			t.Errorf("results = %v", got)
		}
	})

	t.Run("no keys skips the round-trip", func(t *testing.T) {
		s := NewStoreWithClient(nil)
		got, err := s.HGetAllMulti(context.Background(), nil)
		if err != nil || got != nil {
			t.Errorf("HGetAllMulti(nil) = %v, %v", got, err)
		}
	})
}

func TestExists(t *testing.T) {
	for reply, want := range map[int64]bool{1: true, 0: false} {
		s, c := harness(t)
		c.EXPECT().
			Do(gomock.Any(), mock.Match("EXISTS", balanceKey)).
			Return(mock.Result(mock.RedisInt64(reply)))

		got, err := s.Exists(context.Background(), balanceKey)
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if got != want {
			t.Errorf("Exists with reply %d = %v, want %v", reply, got, want)
		}
	}
}

func TestGet(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		s, c := harness(t)
		c.EXPECT().
			Do(gomock.Any(), mock.Match("GET", "{creditgate}:principal:email:alice@example.com")).
			Return(mock.Result(mock.RedisString("p-1")))

		v, err := s.Get(context.Background(), "{creditgate}:principal:email:alice@example.com")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(v) != "p-1" {
			t.Errorf("Get = %q, want p-1", v)
		}
	})

	t.Run("nil reply", func(t *testing.T) {
		s, c := harness(t)
		c.EXPECT().
			Do(gomock.Any(), mock.Match("GET", "{creditgate}:principal:email:ghost@example.com")).
			Return(mock.Result(mock.RedisNil()))

		_, err := s.Get(context.Background(), "{creditgate}:principal:email:ghost@example.com")
		if !errors.Is(err, db.ErrKeyNotFound) {
			t.Errorf("err = %v, want ErrKeyNotFound", err)
		}
	})
}

func TestDel(t *testing.T) {
	s, c := harness(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", balanceKey)).
		Return(mock.Result(mock.RedisInt64(0)))

	if err := s.Del(context.Background(), balanceKey); err != nil {
		t.Fatalf("Del of a missing key: %v", err)
	}
}

func TestSortedSetIndex(t *testing.T) {
	s, c := harness(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("ZCARD", indexKey)).
		Return(mock.Result(mock.RedisInt64(2)))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("ZRANGE", indexKey, "0", "19")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("alice@example.com\x00p-1"),
			mock.RedisString("bob@example.com\x00p-2"),
		)))

	n, err := s.ZCard(context.Background(), indexKey)
	if err != nil || n != 2 {
		t.Fatalf("ZCard = %d, %v", n, err)
	}
	members, err := s.ZRange(context.Background(), indexKey, 0, 19)
	if err != nil {
		t.Fatalf("ZRange: %v", err)
	}
	if len(members) != 2 || members[1] != "bob@example.com\x00p-2" {
		t.Errorf("members = %q", members)
	}
}

func TestZRange_Failure(t *testing.T) {
	s, c := harness(t)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "ZRANGE" })).
		Return(mock.ErrorResult(context.Canceled))

	_, err := s.ZRange(context.Background(), indexKey, 0, -1)
	requireOpError(t, err, db.OpZRange, context.Canceled)
}

var spendLike = db.NewScript("spend", "return {1, ARGV[1]}")

func evalOf(keys int, args ...string) func([]string) bool {
	return func(cmd []string) bool {
		if cmd[0] != "EVALSHA" && cmd[0] != "EVAL" {
			return false
		}
		if cmd[2] != strconv.Itoa(keys) {
			return false
		}
		tail := cmd[3+keys:]
		if len(tail) != len(args) {
			return false
		}
		for i := range args {
			if tail[i] != args[i] {
				return false
			}
		}
		return true
	}
}

func TestRunScript(t *testing.T) {
	t.Run("integer reply", func(t *testing.T) {
		s, c := harness(t)
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(evalOf(1, "4"))).
			Return(mock.Result(mock.RedisArray(mock.RedisInt64(1), mock.RedisInt64(4))))

		got, err := s.RunScript(context.Background(), spendLike, []string{balanceKey}, []string{"4"})
		if err != nil {
			t.Fatalf("RunScript: %v", err)
		}
		if len(got) != 2 || got[0] != 1 || got[1] != 4 {
			t.Errorf("reply = %v", got)
		}
	})

	t.Run("decimal string reply keeps int64 precision", func(t *testing.T) {
		s, c := harness(t)
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(evalOf(1, "9007199254740993"))).
			Return(mock.Result(mock.RedisArray(
				mock.RedisInt64(1),
				mock.RedisString("9007199254740993"),
				mock.RedisString("-9223372036854775808"),
			)))

		got, err := s.RunScript(context.Background(), spendLike, []string{balanceKey}, []string{"9007199254740993"})
		if err != nil {
			t.Fatalf("RunScript: %v", err)
		}
		if len(got) != 3 || got[1] != 1<<53+1 || got[2] != math.MinInt64 {
			t.Errorf("reply = %v", got)
		}
	})

	t.Run("failure names the script", func(t *testing.T) {
		s, c := harness(t)
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(evalOf(1, "1"))).
			Return(mock.ErrorResult(context.DeadlineExceeded))

		_, err := s.RunScript(context.Background(), spendLike, []string{balanceKey}, []string{"1"})
		requireOpError(t, err, db.OpEval, context.DeadlineExceeded)
		if err != nil && !strings.Contains(err.Error(), spendLike.Name) {
			t.Errorf("err = %q, want script name in message", err)
		}
	})
}

func TestLua_OneHandlePerScript(t *testing.T) {
	s := NewStoreWithClient(nil)
	other := db.NewScript("adjust", "return {0}")

	if s.lua(spendLike) != s.lua(spendLike) {
		t.Error("same script should reuse its *rueidis.Lua")
	}
	if s.lua(spendLike) == s.lua(other) {
		t.Error("different scripts should not share a *rueidis.Lua")
	}
}

package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/creditgate/internal/db"
	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
)

// GetOrCreate returns the balance of id, inserting defaultCredits if none exists.
func (r *Repo) GetOrCreate(ctx context.Context, id string, defaultCredits int64) (balance.Balance, bool, error) {
	reply, err := r.run(ctx, getOrCreateScript,
		[]string{r.keys.principal(id), r.keys.balance(id)},
		strconv.FormatInt(defaultCredits, 10), r.nowArg())
	if err != nil {
		return balance.Balance{}, false, err
	}
	if reply[0] != statusOK && reply[0] != statusCreated {
		return balance.Balance{}, false, statusErr(reply[0])
	}
	b, err := balanceFromReply(id, reply)
	if err != nil {
		return balance.Balance{}, false, unavailable("get or create balance", err)
	}
	return b, reply[0] == statusCreated, nil
}

// Get returns the balance of id without creating it.
func (r *Repo) Get(ctx context.Context, id string) (balance.Balance, error) {
	m, err := r.store.HGetAll(ctx, r.keys.balance(id))
	if err != nil {
		return balance.Balance{}, unavailable("get balance", err)
	}
	if len(m) == 0 {
		return balance.Balance{}, domain.ErrNotFound
	}
	b, err := balanceFromHash(id, m)
	if err != nil {
		return balance.Balance{}, unavailable("get balance", err)
	}
	return b, nil
}

// Adjust adds delta to the stored credits atomically.
func (r *Repo) Adjust(ctx context.Context, id string, delta int64) (balance.Balance, error) {
	return r.mutate(ctx, adjustScript, []string{r.keys.balance(id)}, id,
		strconv.FormatInt(delta, 10), r.nowArg())
}

// Spend subtracts amount only if the balance covers it.
func (r *Repo) Spend(ctx context.Context, id string, amount int64) (balance.Balance, error) {
	return r.mutate(ctx, spendScript, []string{r.keys.balance(id)}, id,
		strconv.FormatInt(amount, 10), negate(amount), r.nowArg())
}

// SetAbsolute overwrites the credits of id, creating the balance if absent.
func (r *Repo) SetAbsolute(ctx context.Context, id string, value int64) (balance.Balance, error) {
	return r.mutate(ctx, setScript, []string{r.keys.principal(id), r.keys.balance(id)}, id,
		strconv.FormatInt(value, 10), r.nowArg())
}

// Delete removes the balance of id. Deleting a missing balance is a no-op.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.keys.balance(id)); err != nil {
		return unavailable("delete balance", err)
	}
	return nil
}

func (r *Repo) mutate(ctx context.Context, script *db.Script, keys []string, id string, args ...string) (balance.Balance, error) {
	reply, err := r.run(ctx, script, keys, args...)
	if err != nil {
		return balance.Balance{}, err
	}
	if reply[0] != statusOK {
		return balance.Balance{}, statusErr(reply[0])
	}
	b, err := balanceFromReply(id, reply)
	if err != nil {
		return balance.Balance{}, unavailable(script.Name, err)
	}
	return b, nil
}

// negate returns -n in decimal without int64 arithmetic, so math.MinInt64
// has an answer. Redis rejects "-0".
func negate(n int64) string {
	s := strconv.FormatInt(n, 10)
	switch {
	case n == 0:
		return s
	case n < 0:
		return s[1:]
	default:
		return "-" + s
	}
}

func (r *Repo) nowArg() string {
	return strconv.FormatInt(r.now(), 10)
}

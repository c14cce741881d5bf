// Package memory is an in-process ledger backend. It loses its state on exit
// and is meant for tests, the embedded SDK and local experiments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// Repo implements the balance ledger and identity store over maps guarded by one mutex.
type Repo struct {
	mu         sync.RWMutex
	principals map[string]principal.Principal
	byEmail    map[string]string
	balances   map[string]balance.Balance
	now        func() int64
}

// New creates an empty repository.
func New() *Repo {
	return &Repo{
		principals: make(map[string]principal.Principal),
		byEmail:    make(map[string]string),
		balances:   make(map[string]balance.Balance),
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// Ping always succeeds.
func (r *Repo) Ping(context.Context) error { return nil }

// CreatePrincipal stores a new principal. A taken email yields ErrAlreadyExists.
func (r *Repo) CreatePrincipal(_ context.Context, p principal.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.principals[p.ID()]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := r.byEmail[p.Email()]; ok {
		return domain.ErrAlreadyExists
	}
	r.principals[p.ID()] = p
	r.byEmail[p.Email()] = p.ID()
	return nil
}

// GetPrincipal loads a principal by id.
func (r *Repo) GetPrincipal(_ context.Context, id string) (principal.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.principals[id]
	if !ok {
		return principal.Principal{}, domain.ErrNotFound
	}
	return p, nil
}

// GetPrincipalByEmail loads a principal by email, case-insensitively.
func (r *Repo) GetPrincipalByEmail(_ context.Context, email string) (principal.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[principal.NormalizeEmail(email)]
	if !ok {
		return principal.Principal{}, domain.ErrNotFound
	}
	return r.principals[id], nil
}

// SetPasswordHash replaces the credential hash and nothing else.
func (r *Repo) SetPasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.principals[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.principals[id] = p.WithPasswordHash(hash)
	return nil
}

// PatchPrincipal applies the non-nil fields of patch to the stored principal,
// moving the email index entry when the email changes.
func (r *Repo) PatchPrincipal(_ context.Context, id string, patch account.Patch) (principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.principals[id]
	if !ok {
		return principal.Principal{}, domain.ErrNotFound
	}
	p, err := patch.Apply(old)
	if err != nil {
		return principal.Principal{}, domain.NewValidationError("email", err.Error())
	}
	if p.Email() != old.Email() {
		if _, taken := r.byEmail[p.Email()]; taken {
			return principal.Principal{}, domain.ErrAlreadyExists
		}
		delete(r.byEmail, old.Email())
		r.byEmail[p.Email()] = id
	}
	r.principals[id] = p
	return p, nil
}

// DeleteAccount removes the balance and then the principal.
func (r *Repo) DeleteAccount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.principals[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.balances, id)
	delete(r.byEmail, p.Email())
	delete(r.principals, id)
	return nil
}

// GetAccount loads a principal with its balance, without materializing one.
func (r *Repo) GetAccount(_ context.Context, id string) (account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.principals[id]
	if !ok {
		return account.Account{}, domain.ErrNotFound
	}
	return r.accountOf(p), nil
}

// ListAccounts returns one page ordered by email, then id, and the total count.
func (r *Repo) ListAccounts(_ context.Context, offset, limit int) ([]account.Account, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]principal.Principal, 0, len(r.principals))
	for _, p := range r.principals {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Email() != all[j].Email() {
			return all[i].Email() < all[j].Email()
		}
		return all[i].ID() < all[j].ID()
	})

	total := len(all)
	start := min(max(offset, 0), total)
	end := min(start+max(limit, 0), total)

	items := make([]account.Account, 0, end-start)
	for _, p := range all[start:end] {
		items = append(items, r.accountOf(p))
	}
	return items, total, nil
}

func (r *Repo) accountOf(p principal.Principal) account.Account {
	if b, ok := r.balances[p.ID()]; ok {
		return account.New(p, b)
	}
	return account.WithoutBalance(p)
}

// GetOrCreate returns the balance of id, inserting defaultCredits if none exists.
func (r *Repo) GetOrCreate(_ context.Context, id string, defaultCredits int64) (balance.Balance, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.balances[id]; ok {
		return b, false, nil
	}
	if _, ok := r.principals[id]; !ok {
		return balance.Balance{}, false, domain.ErrNotFound
	}
	now := r.now()
	b := balance.Reconstruct(id, defaultCredits, now, now)
	r.balances[id] = b
	return b, true, nil
}

// Get returns the balance of id without creating it.
func (r *Repo) Get(_ context.Context, id string) (balance.Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.balances[id]
	if !ok {
		return balance.Balance{}, domain.ErrNotFound
	}
	return b, nil
}

// Adjust adds delta to the stored credits.
func (r *Repo) Adjust(_ context.Context, id string, delta int64) (balance.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.balances[id]
	if !ok {
		return balance.Balance{}, domain.ErrNotFound
	}
	return r.store(b, b.Credits()+delta), nil
}

// Spend subtracts amount only if the balance covers it.
func (r *Repo) Spend(_ context.Context, id string, amount int64) (balance.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.balances[id]
	if !ok {
		return balance.Balance{}, domain.ErrNotFound
	}
	if b.Credits() < amount {
		return balance.Balance{}, domain.ErrInsufficientCredits
	}
	return r.store(b, b.Credits()-amount), nil
}

// SetAbsolute overwrites the credits of id, creating the balance if absent.
func (r *Repo) SetAbsolute(_ context.Context, id string, value int64) (balance.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.principals[id]; !ok {
		return balance.Balance{}, domain.ErrNotFound
	}
	b, ok := r.balances[id]
	if !ok {
		now := r.now()
		b = balance.Reconstruct(id, value, now, now)
		r.balances[id] = b
		return b, nil
	}
	return r.store(b, value), nil
}

// Delete removes the balance of id. Deleting a missing balance is a no-op.
func (r *Repo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.balances, id)
	return nil
}

func (r *Repo) store(b balance.Balance, credits int64) balance.Balance {
	out := balance.Reconstruct(b.PrincipalID(), credits, b.CreatedAt(), r.now())
	r.balances[b.PrincipalID()] = out
	return out
}

package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/creditgate/internal/db"
	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// maxConflictRetries bounds retries when a concurrent writer changed the email
// between our read and the script.
const maxConflictRetries = 3

// CreatePrincipal stores a new principal. A taken email yields ErrAlreadyExists.
func (r *Repo) CreatePrincipal(ctx context.Context, p principal.Principal) error {
	reply, err := r.run(ctx, createPrincipalScript,
		[]string{r.keys.principal(p.ID()), r.keys.email(p.Email()), r.keys.index()},
		principalArgs(p)...)
	if err != nil {
		return err
	}
	if reply[0] != statusOK {
		return statusErr(reply[0])
	}
	return nil
}

// GetPrincipal loads a principal by id.
func (r *Repo) GetPrincipal(ctx context.Context, id string) (principal.Principal, error) {
	m, err := r.store.HGetAll(ctx, r.keys.principal(id))
	if err != nil {
		return principal.Principal{}, unavailable("get principal", err)
	}
	if len(m) == 0 {
		return principal.Principal{}, domain.ErrNotFound
	}
	p, err := principalFromHash(m)
	if err != nil {
		return principal.Principal{}, unavailable("get principal", err)
	}
	return p, nil
}

// GetPrincipalByEmail resolves the email index, then loads the principal.
func (r *Repo) GetPrincipalByEmail(ctx context.Context, email string) (principal.Principal, error) {
	id, err := r.store.Get(ctx, r.keys.email(principal.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return principal.Principal{}, domain.ErrNotFound
		}
		return principal.Principal{}, unavailable("get principal by email", err)
	}
	return r.GetPrincipal(ctx, string(id))
}

// SetPasswordHash replaces the credential hash and nothing else.
func (r *Repo) SetPasswordHash(ctx context.Context, id, hash string) error {
	reply, err := r.run(ctx, setPasswordScript, []string{r.keys.principal(id)}, hash)
	if err != nil {
		return err
	}
	if reply[0] != statusOK {
		return statusErr(reply[0])
	}
	return nil
}

// PatchPrincipal writes only the hash fields patch sets, moving the email
// index entry when the email changes, and returns the stored principal.
func (r *Repo) PatchPrincipal(ctx context.Context, id string, patch account.Patch) (principal.Principal, error) {
	flags := patchFields(patch)
	for range maxConflictRetries {
		var oldEmail, newEmail string
		if patch.Email != nil {
			cur, err := r.GetPrincipal(ctx, id)
			if err != nil {
				return principal.Principal{}, err
			}
			oldEmail, newEmail = cur.Email(), *patch.Email
		}
		reply, err := r.run(ctx, patchPrincipalScript,
			[]string{
				r.keys.principal(id),
				r.keys.email(oldEmail),
				r.keys.email(newEmail),
				r.keys.index(),
			},
			append([]string{id, oldEmail, newEmail}, flags...)...)
		if err != nil {
			return principal.Principal{}, err
		}
		if reply[0] == statusConflict {
			continue
		}
		if reply[0] != statusOK {
			return principal.Principal{}, statusErr(reply[0])
		}
		return r.GetPrincipal(ctx, id)
	}
	return principal.Principal{}, fmt.Errorf("%w: patch principal %s: concurrent modification",
		domain.ErrStorageUnavailable, id)
}

// DeleteAccount removes the balance, the principal and its index entries atomically.
func (r *Repo) DeleteAccount(ctx context.Context, id string) error {
	for range maxConflictRetries {
		cur, err := r.GetPrincipal(ctx, id)
		if err != nil {
			return err
		}
		reply, err := r.run(ctx, deleteAccountScript,
			[]string{r.keys.principal(id), r.keys.balance(id), r.keys.email(cur.Email()), r.keys.index()},
			id, cur.Email())
		if err != nil {
			return err
		}
		if reply[0] == statusConflict {
			continue
		}
		if reply[0] != statusOK {
			return statusErr(reply[0])
		}
		return nil
	}
	return fmt.Errorf("%w: delete account %s: concurrent modification", domain.ErrStorageUnavailable, id)
}

// GetAccount loads a principal with its balance, without materializing one.
func (r *Repo) GetAccount(ctx context.Context, id string) (account.Account, error) {
	accounts, err := r.loadAccounts(ctx, []string{id})
	if err != nil {
		return account.Account{}, err
	}
	if len(accounts) == 0 {
		return account.Account{}, domain.ErrNotFound
	}
	return accounts[0], nil
}

// ListAccounts returns one page ordered by email, then id, and the total count.
func (r *Repo) ListAccounts(ctx context.Context, offset, limit int) ([]account.Account, int, error) {
	total, err := r.store.ZCard(ctx, r.keys.index())
	if err != nil {
		return nil, 0, unavailable("count principals", err)
	}
	if limit <= 0 || int64(offset) >= total {
		return []account.Account{}, int(total), nil
	}

	members, err := r.store.ZRange(ctx, r.keys.index(), int64(offset), int64(offset+limit-1))
	if err != nil {
		return nil, 0, unavailable("list principals", err)
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		if _, id, ok := parseMember(m); ok {
			ids = append(ids, id)
		}
	}

	accounts, err := r.loadAccounts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return accounts, int(total), nil
}

// loadAccounts fetches principals and balances in one round-trip, skipping
// principals deleted in between.
func (r *Repo) loadAccounts(ctx context.Context, ids []string) ([]account.Account, error) {
	if len(ids) == 0 {
		return []account.Account{}, nil
	}

	hashKeys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		hashKeys = append(hashKeys, r.keys.principal(id), r.keys.balance(id))
	}
	hashes, err := r.store.HGetAllMulti(ctx, hashKeys)
	if err != nil {
		return nil, unavailable("load accounts", err)
	}

	out := make([]account.Account, 0, len(ids))
	for i, id := range ids {
		pm, bm := hashes[2*i], hashes[2*i+1]
		if len(pm) == 0 {
			continue
		}
		p, err := principalFromHash(pm)
		if err != nil {
			return nil, unavailable("load accounts", err)
		}
		if len(bm) == 0 {
			out = append(out, account.WithoutBalance(p))
			continue
		}
		b, err := balanceFromHash(id, bm)
		if err != nil {
			return nil, unavailable("load accounts", err)
		}
		out = append(out, account.New(p, b))
	}
	return out, nil
}

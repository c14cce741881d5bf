// Package repotest is a conformance suite shared by every ledger backend.
// Backend test packages call Run with a constructor for a fresh, empty store.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// Repository is the full surface a ledger backend implements.
//
//nolint:interfacebloat // conformance surface mirrors the backend
type Repository interface {
	CreatePrincipal(ctx context.Context, p principal.Principal) error
	GetPrincipal(ctx context.Context, id string) (principal.Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (principal.Principal, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
	PatchPrincipal(ctx context.Context, id string, patch account.Patch) (principal.Principal, error)
	DeleteAccount(ctx context.Context, id string) error
	GetAccount(ctx context.Context, id string) (account.Account, error)
	ListAccounts(ctx context.Context, offset, limit int) ([]account.Account, int, error)

	GetOrCreate(ctx context.Context, id string, defaultCredits int64) (balance.Balance, bool, error)
	Get(ctx context.Context, id string) (balance.Balance, error)
	Adjust(ctx context.Context, id string, delta int64) (balance.Balance, error)
	Spend(ctx context.Context, id string, amount int64) (balance.Balance, error)
	SetAbsolute(ctx context.Context, id string, value int64) (balance.Balance, error)
	Delete(ctx context.Context, id string) error
}

// Factory returns an empty repository scoped to one test.
type Factory func(t *testing.T) Repository

// Run executes the suite against the backend built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("Principal", func(t *testing.T) { testPrincipal(t, newRepo(t)) })
	t.Run("PrincipalDuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newRepo(t)) })
	t.Run("PrincipalPatch", func(t *testing.T) { testPatchPrincipal(t, newRepo(t)) })
	t.Run("PrincipalNarrowWrites", func(t *testing.T) { testNarrowWrites(t, newRepo(t)) })
	t.Run("PrincipalNarrowWritesConcurrent", func(t *testing.T) { testNarrowWritesConcurrent(t, newRepo(t)) })
	t.Run("GetOrCreate", func(t *testing.T) { testGetOrCreate(t, newRepo(t)) })
	t.Run("GetOrCreateUnknownPrincipal", func(t *testing.T) { testGetOrCreateUnknown(t, newRepo(t)) })
	t.Run("GetOrCreateConcurrent", func(t *testing.T) { testGetOrCreateConcurrent(t, newRepo(t)) })
	t.Run("Spend", func(t *testing.T) { testSpend(t, newRepo(t)) })
	t.Run("SpendLastCreditConcurrent", func(t *testing.T) { testSpendLastCredit(t, newRepo(t)) })
	t.Run("SpendDrainConcurrent", func(t *testing.T) { testSpendDrain(t, newRepo(t)) })
	t.Run("AdjustConcurrent", func(t *testing.T) { testAdjustConcurrent(t, newRepo(t)) })
	t.Run("SetAbsolute", func(t *testing.T) { testSetAbsolute(t, newRepo(t)) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, newRepo(t)) })
	t.Run("DeleteAccount", func(t *testing.T) { testDeleteAccount(t, newRepo(t)) })
	t.Run("ListAccounts", func(t *testing.T) { testListAccounts(t, newRepo(t)) })
}

// MustPrincipal creates and stores a principal with the given email.
func MustPrincipal(t *testing.T, r Repository, email string) principal.Principal {
	t.Helper()
	p, err := principal.New(email, "$2a$10$hash")
	require.NoError(t, err)
	require.NoError(t, r.CreatePrincipal(context.Background(), p))
	return p
}

func testPrincipal(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "alice@example.com")

	got, err := r.GetPrincipal(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, p.ID(), got.ID())
	assert.Equal(t, "alice@example.com", got.Email())
	assert.Equal(t, p.PasswordHash(), got.PasswordHash())
	assert.True(t, got.IsActive())
	assert.False(t, got.IsVerified())
	assert.False(t, got.IsAdmin())

	byEmail, err := r.GetPrincipalByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID(), byEmail.ID())

	_, err = r.GetPrincipal(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.GetPrincipalByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDuplicateEmail(t *testing.T, r Repository) {
	MustPrincipal(t, r, "dup@example.com")

	again, err := principal.New("DUP@example.com", "h")
	require.NoError(t, err)
	assert.ErrorIs(t, r.CreatePrincipal(context.Background(), again), domain.ErrAlreadyExists)
}

func ptr[T any](v T) *T { return &v }

func testPatchPrincipal(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "bob@example.com")
	MustPrincipal(t, r, "taken@example.com")

	got, err := r.PatchPrincipal(ctx, p.ID(), account.Patch{
		Email:    ptr("robert@example.com"),
		Admin:    ptr(true),
		Verified: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "robert@example.com", got.Email())
	assert.True(t, got.IsAdmin())
	assert.True(t, got.IsVerified())
	assert.True(t, got.IsActive(), "unpatched flag must keep its value")
	assert.Equal(t, p.PasswordHash(), got.PasswordHash())

	byEmail, err := r.GetPrincipalByEmail(ctx, "robert@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID(), byEmail.ID())
	_, err = r.GetPrincipalByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound, "old email must be released")

	same, err := r.PatchPrincipal(ctx, p.ID(), account.Patch{})
	require.NoError(t, err)
	assert.Equal(t, got.Email(), same.Email(), "empty patch returns the stored principal")

	_, err = r.PatchPrincipal(ctx, p.ID(), account.Patch{Email: ptr("taken@example.com")})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	ghost := "00000000-0000-0000-0000-000000000001"
	_, err = r.PatchPrincipal(ctx, ghost, account.Patch{Admin: ptr(true)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, r.SetPasswordHash(ctx, ghost, "h"), domain.ErrNotFound)
}

// testNarrowWrites interleaves writers that each hold a stale copy of the
// principal. Every write must touch only its own column.
func testNarrowWrites(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "dave@example.com")

	// A password change read p while it was active; an admin deactivates
	// the account before the change is written.
	_, err := r.PatchPrincipal(ctx, p.ID(), account.Patch{Active: ptr(false)})
	require.NoError(t, err)
	require.NoError(t, r.SetPasswordHash(ctx, p.ID(), "rotated-hash"))

	got, err := r.GetPrincipal(ctx, p.ID())
	require.NoError(t, err)
	assert.False(t, got.IsActive(), "password write must not reactivate the account")
	assert.Equal(t, "rotated-hash", got.PasswordHash())

	_, err = r.PatchPrincipal(ctx, p.ID(), account.Patch{Admin: ptr(true)})
	require.NoError(t, err)
	_, err = r.PatchPrincipal(ctx, p.ID(), account.Patch{Verified: ptr(true)})
	require.NoError(t, err)

	got, err = r.GetPrincipal(ctx, p.ID())
	require.NoError(t, err)
	assert.True(t, got.IsAdmin(), "second patch must not revert the first")
	assert.True(t, got.IsVerified())
	assert.False(t, got.IsActive())
	assert.Equal(t, "rotated-hash", got.PasswordHash())
}

func testNarrowWritesConcurrent(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "erin@example.com")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := r.PatchPrincipal(gctx, p.ID(), account.Patch{Active: ptr(false)})
		return err
	})
	g.Go(func() error {
		_, err := r.PatchPrincipal(gctx, p.ID(), account.Patch{Admin: ptr(true)})
		return err
	})
	g.Go(func() error {
		_, err := r.PatchPrincipal(gctx, p.ID(), account.Patch{Verified: ptr(true)})
		return err
	})
	g.Go(func() error {
		return r.SetPasswordHash(gctx, p.ID(), "concurrent-hash")
	})
	require.NoError(t, g.Wait())

	got, err := r.GetPrincipal(ctx, p.ID())
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	assert.True(t, got.IsAdmin())
	assert.True(t, got.IsVerified())
	assert.Equal(t, "concurrent-hash", got.PasswordHash())
}

func testGetOrCreate(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "carol@example.com")

	_, err := r.Get(ctx, p.ID())
	require.ErrorIs(t, err, domain.ErrNotFound)

	b, created, err := r.GetOrCreate(ctx, p.ID(), 10)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(10), b.Credits())
	assert.Equal(t, p.ID(), b.PrincipalID())

	// A later call with a different default must not reset the balance.
	b, created, err = r.GetOrCreate(ctx, p.ID(), 99)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(10), b.Credits())

	got, err := r.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Credits())
}

func testGetOrCreateUnknown(t *testing.T, r Repository) {
	_, _, err := r.GetOrCreate(context.Background(), "00000000-0000-0000-0000-000000000002", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testGetOrCreateConcurrent(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "dave@example.com")

	const n = 16
	var created atomic.Int32
	results := make([]int64, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			// Each caller proposes a different default; only the winner's may be visible.
			b, c, err := r.GetOrCreate(gctx, p.ID(), int64(100+i))
			if err != nil {
				return err
			}
			if c {
				created.Add(1)
			}
			results[i] = b.Credits()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), created.Load(), "exactly one caller materializes the balance")
	for i := 1; i < n; i++ {
		assert.Equal(t, results[0], results[i], "all callers observe the same first default")
	}

	stored, err := r.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, results[0], stored.Credits())
}

func testSpend(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "erin@example.com")

	_, err := r.Spend(ctx, p.ID(), 1)
	require.ErrorIs(t, err, domain.ErrNotFound, "spend without balance")

	_, _, err = r.GetOrCreate(ctx, p.ID(), 2)
	require.NoError(t, err)

	b, err := r.Spend(ctx, p.ID(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.Credits())

	b, err = r.Spend(ctx, p.ID(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Credits())

	_, err = r.Spend(ctx, p.ID(), 1)
	require.ErrorIs(t, err, domain.ErrInsufficientCredits)

	got, err := r.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Credits(), "failed spend leaves credits unchanged")
}

func testSpendLastCredit(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "frank@example.com")
	_, err := r.SetAbsolute(ctx, p.ID(), 1)
	require.NoError(t, err)

	ok, insufficient := spendConcurrently(t, r, p.ID(), 8)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, insufficient)

	got, err := r.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Credits())
}

func testSpendDrain(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "grace@example.com")
	_, err := r.SetAbsolute(ctx, p.ID(), 10)
	require.NoError(t, err)

	ok, insufficient := spendConcurrently(t, r, p.ID(), 25)
	assert.Equal(t, 10, ok)
	assert.Equal(t, 15, insufficient)

	got, err := r.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Credits())
}

func spendConcurrently(t *testing.T, r Repository, id string, n int) (ok, insufficient int) {
	t.Helper()
	var okN, insN atomic.Int32

	g, ctx := errgroup.WithContext(context.Background())
	for range n {
		g.Go(func() error {
			_, err := r.Spend(ctx, id, 1)
			switch {
			case err == nil:
				okN.Add(1)
			case errors.Is(err, domain.ErrInsufficientCredits):
				insN.Add(1)
			default:
				return fmt.Errorf("spend: %w", err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	return int(okN.Load()), int(insN.Load())
}

func testAdjustConcurrent(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "heidi@example.com")

	_, err := r.Adjust(ctx, p.ID(), 1)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = r.GetOrCreate(ctx, p.ID(), 5)
	require.NoError(t, err)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range 20 {
		delta := int64(2)
		if i%2 == 1 {
			delta = -1
		}
		g.Go(func() error {
			_, err := r.Adjust(gctx, p.ID(), delta)
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := r.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(5+10*2-10), got.Credits(), "no lost updates")
}

func testSetAbsolute(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "ivan@example.com")

	b, err := r.SetAbsolute(ctx, p.ID(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), b.Credits())

	got, created, err := r.GetOrCreate(ctx, p.ID(), 10)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(42), got.Credits())

	b, err = r.SetAbsolute(ctx, p.ID(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Credits())
	assert.Equal(t, got.CreatedAt(), b.CreatedAt(), "overwrite keeps the creation time")

	_, err = r.SetAbsolute(ctx, "00000000-0000-0000-0000-000000000003", 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDeleteIdempotent(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "judy@example.com")
	_, _, err := r.GetOrCreate(ctx, p.ID(), 10)
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, p.ID()))
	require.NoError(t, r.Delete(ctx, p.ID()))

	_, err = r.Get(ctx, p.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The principal survives a balance delete.
	_, err = r.GetPrincipal(ctx, p.ID())
	assert.NoError(t, err)
}

func testDeleteAccount(t *testing.T, r Repository) {
	ctx := context.Background()
	p := MustPrincipal(t, r, "ken@example.com")
	_, _, err := r.GetOrCreate(ctx, p.ID(), 10)
	require.NoError(t, err)

	require.NoError(t, r.DeleteAccount(ctx, p.ID()))

	_, err = r.GetPrincipal(ctx, p.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.Get(ctx, p.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.GetPrincipalByEmail(ctx, "ken@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, r.DeleteAccount(ctx, p.ID()), domain.ErrNotFound)

	// The email is free again.
	MustPrincipal(t, r, "ken@example.com")
}

func testListAccounts(t *testing.T, r Repository) {
	ctx := context.Background()
	c := MustPrincipal(t, r, "c@example.com")
	a := MustPrincipal(t, r, "a@example.com")
	b := MustPrincipal(t, r, "b@example.com")

	_, err := r.SetAbsolute(ctx, a.ID(), 7)
	require.NoError(t, err)

	items, total, err := r.ListAccounts(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, a.ID(), items[0].Principal().ID())
	assert.Equal(t, b.ID(), items[1].Principal().ID())
	assert.True(t, items[0].HasBalance())
	assert.Equal(t, int64(7), items[0].Credits())
	assert.False(t, items[1].HasBalance())

	items, total, err = r.ListAccounts(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, c.ID(), items[0].Principal().ID())

	items, _, err = r.ListAccounts(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, items)

	acc, err := r.GetAccount(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(7), acc.Credits())

	_, err = r.GetAccount(ctx, "00000000-0000-0000-0000-000000000004")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

package account

import (
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// Account is a principal together with its balance, if one was materialized.
type Account struct {
	principal    principal.Principal
	balance      balance.Balance
	materialized bool
}

// New pairs a principal with its balance.
func New(p principal.Principal, b balance.Balance) Account {
	return Account{principal: p, balance: b, materialized: true}
}

// WithoutBalance returns an account whose balance was never materialized.
func WithoutBalance(p principal.Principal) Account {
	return Account{principal: p}
}

// Principal returns the account identity.
func (a Account) Principal() principal.Principal { return a.principal }

// Balance returns the balance and whether it exists.
func (a Account) Balance() (balance.Balance, bool) { return a.balance, a.materialized }

// Credits returns the stored credits, or 0 when no balance exists yet.
func (a Account) Credits() int64 {
	if !a.materialized {
		return 0
	}
	return a.balance.Credits()
}

// HasBalance reports whether a balance row exists.
func (a Account) HasBalance() bool { return a.materialized }

// Page is one page of accounts ordered by email, then id.
type Page struct {
	Items    []Account
	Total    int
	Page     int
	PageSize int
}

// Pages returns the number of pages for the page size.
func (p Page) Pages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// Patch is a partial update of principal attributes. Nil fields are left as is.
// Credits are never part of a patch.
type Patch struct {
	Email    *string
	Active   *bool
	Verified *bool
	Admin    *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Email == nil && p.Active == nil && p.Verified == nil && p.Admin == nil
}

// Normalize returns the patch with its email, if any, canonicalized and
// validated. Stores expect normalized patches.
func (p Patch) Normalize() (Patch, error) {
	if p.Email == nil {
		return p, nil
	}
	email := principal.NormalizeEmail(*p.Email)
	if err := principal.ValidateEmail(email); err != nil {
		return Patch{}, err
	}
	p.Email = &email
	return p, nil
}

// Apply returns a copy of pr with the patch applied.
func (p Patch) Apply(pr principal.Principal) (principal.Principal, error) {
	if p.Email != nil {
		var err error
		if pr, err = pr.WithEmail(*p.Email); err != nil {
			return principal.Principal{}, err
		}
	}
	if p.Active != nil {
		pr = pr.WithActive(*p.Active)
	}
	if p.Verified != nil {
		pr = pr.WithVerified(*p.Verified)
	}
	if p.Admin != nil {
		pr = pr.WithAdmin(*p.Admin)
	}
	return pr, nil
}

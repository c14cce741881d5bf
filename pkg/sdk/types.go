package creditgate

import (
	"time"

	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// Principal is an identity known to the ledger. Values are produced by the
// Client; a hand-built Principal is treated as inactive.
type Principal struct {
	ID         string
	Email      string
	IsActive   bool
	IsVerified bool
	IsAdmin    bool
	CreatedAt  time.Time

	p principal.Principal
}

// Operator returns the out-of-band administrator identity. It may manage
// every account and never matches a stored principal.
func Operator() Principal {
	return principalFromDomain(principal.Operator())
}

func principalFromDomain(p principal.Principal) Principal {
	out := Principal{
		ID:         p.ID(),
		Email:      p.Email(),
		IsActive:   p.IsActive(),
		IsVerified: p.IsVerified(),
		IsAdmin:    p.IsAdmin(),
		p:          p,
	}
	if p.CreatedAt() > 0 {
		out.CreatedAt = time.UnixMilli(p.CreatedAt()).UTC()
	}
	return out
}

// Account is a principal with its balance. Credits is nil until the
// balance is first materialized.
type Account struct {
	Principal Principal
	Credits   *int64
}

func accountFromDomain(a account.Account) Account {
	out := Account{Principal: principalFromDomain(a.Principal())}
	if b, ok := a.Balance(); ok {
		credits := b.Credits()
		out.Credits = &credits
	}
	return out
}

// AccountPage is one page of accounts ordered by email.
type AccountPage struct {
	Items    []Account
	Total    int
	Page     int
	PageSize int
	Pages    int
}

// AccountUpdate is a partial update of account flags. Nil fields are kept.
type AccountUpdate struct {
	Email    *string
	Active   *bool
	Verified *bool
	Admin    *bool
}

// Token is a signed access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

package admin

import (
	"context"

	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// Repository defines the storage contract for account administration.
type Repository interface {
	GetPrincipal(ctx context.Context, id string) (principal.Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (principal.Principal, error)
	PatchPrincipal(ctx context.Context, id string, patch account.Patch) (principal.Principal, error)
	DeleteAccount(ctx context.Context, id string) error
	GetAccount(ctx context.Context, id string) (account.Account, error)
	ListAccounts(ctx context.Context, offset, limit int) ([]account.Account, int, error)
	SetAbsolute(ctx context.Context, id string, value int64) (balance.Balance, error)
}

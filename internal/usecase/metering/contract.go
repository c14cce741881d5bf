package metering

import (
	"context"

	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// Ledger is the slice of the balance store the executor needs.
type Ledger interface {
	GetOrCreate(ctx context.Context, id string, defaultCredits int64) (balance.Balance, bool, error)
	Spend(ctx context.Context, id string, amount int64) (balance.Balance, error)
}

// Charger runs a computation and charges one credit for it.
// Implemented by Service and decorated by Instrumented.
type Charger interface {
	Charge(ctx context.Context, p principal.Principal, operation string, compute func(ctx context.Context) error) (balance.Balance, error)
}

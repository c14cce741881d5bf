package compute

import (
	"context"

	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// Charger bills one credit per computation.
type Charger interface {
	Charge(ctx context.Context, p principal.Principal, operation string, compute func(ctx context.Context) error) (balance.Balance, error)
}

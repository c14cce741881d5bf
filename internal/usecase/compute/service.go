// Package compute holds the billable operations.
package compute

import (
	"context"

	"github.com/kailas-cloud/creditgate/internal/domain/operands"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
	"github.com/kailas-cloud/creditgate/internal/usecase/metering"
)

// OperationSum labels the sum in metrics and logs.
const OperationSum = "sum"

// SumResult is the outcome of a charged sum.
type SumResult struct {
	Value        int
	CreditsAfter int64
}

// Service runs metered computations.
type Service struct {
	charger Charger
}

// New creates a compute service.
func New(charger Charger) *Service {
	return &Service{charger: charger}
}

// Sum adds a and b for one credit. Operands are validated before the ledger is touched.
func (s *Service) Sum(ctx context.Context, p principal.Principal, a, b int) (SumResult, error) {
	pair, err := operands.New(a, b)
	if err != nil {
		return SumResult{}, err
	}

	v, after, err := metering.Run(ctx, s.charger, p, OperationSum, func(context.Context) (int, error) {
		return pair.Sum(), nil
	})
	if err != nil {
		return SumResult{}, err
	}
	return SumResult{Value: v, CreditsAfter: after.Credits()}, nil
}

// Package metering runs billable operations against a principal's balance.
package metering

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/policy"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
	"github.com/kailas-cloud/creditgate/internal/metrics"
)

// Cost is the price of one metered operation.
const Cost = 1

// ErrDrained reports that a concurrent operation spent the last credit while
// this one was computing. It matches domain.ErrInsufficientCredits.
var ErrDrained = fmt.Errorf("%w: balance drained by a concurrent operation", domain.ErrInsufficientCredits)

// Service implements the check, compute, spend protocol.
type Service struct {
	ledger         Ledger
	defaultCredits int64
}

// New creates a metering service. defaultCredits seeds balances on first use.
func New(ledger Ledger, defaultCredits int64) *Service {
	return &Service{ledger: ledger, defaultCredits: defaultCredits}
}

// Balance returns the caller's own balance, creating it with the default on first access.
func (s *Service) Balance(ctx context.Context, p principal.Principal) (balance.Balance, error) {
	if !policy.CanViewOwnProfile(p) {
		return balance.Balance{}, domain.ErrForbidden
	}
	return s.materialize(ctx, p.ID())
}

// Charge runs compute and then spends one credit. Nothing is spent when the
// balance is empty, when compute fails, or when ctx is done before the spend.
// If a concurrent charge takes the last credit first, the computed result is
// void and ErrDrained is returned.
func (s *Service) Charge(
	ctx context.Context, p principal.Principal, operation string,
	compute func(ctx context.Context) error,
) (balance.Balance, error) {
	if !policy.CanConsume(p) {
		return balance.Balance{}, domain.ErrForbidden
	}

	b, err := s.materialize(ctx, p.ID())
	if err != nil {
		return balance.Balance{}, err
	}
	if !b.CanCover(Cost) {
		return balance.Balance{}, fmt.Errorf("%s: %w", operation, domain.ErrInsufficientCredits)
	}

	if err := compute(ctx); err != nil {
		return balance.Balance{}, fmt.Errorf("%s: %w", operation, err)
	}
	if err := ctx.Err(); err != nil {
		return balance.Balance{}, fmt.Errorf("%s: %w", operation, err)
	}

	after, err := s.ledger.Spend(ctx, p.ID(), Cost)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			return balance.Balance{}, fmt.Errorf("%s: %w", operation, ErrDrained)
		}
		return balance.Balance{}, fmt.Errorf("spend balance: %w", err)
	}
	return after, nil
}

func (s *Service) materialize(ctx context.Context, id string) (balance.Balance, error) {
	b, created, err := s.ledger.GetOrCreate(ctx, id, s.defaultCredits)
	if err != nil {
		return balance.Balance{}, fmt.Errorf("get or create balance: %w", err)
	}
	if created {
		metrics.BalanceMaterializedTotal.Inc()
	}
	return b, nil
}

// Run charges one credit for fn through c and returns fn's result together
// with the balance left after the charge.
func Run[T any](
	ctx context.Context, c Charger, p principal.Principal, operation string,
	fn func(ctx context.Context) (T, error),
) (T, balance.Balance, error) {
	var out T
	after, err := c.Charge(ctx, p, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, balance.Balance{}, err
	}
	return out, after, nil
}

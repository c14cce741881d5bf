package metering

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
	"github.com/kailas-cloud/creditgate/internal/logger"
	"github.com/kailas-cloud/creditgate/internal/metrics"
)

// Instrumented wraps a Charger with metrics and logging.
type Instrumented struct {
	inner  Charger
	logger *zap.Logger
}

// NewInstrumented wraps inner. The logger is used when the context carries none.
func NewInstrumented(inner Charger, l *zap.Logger) *Instrumented {
	if l == nil {
		l = zap.NewNop()
	}
	return &Instrumented{inner: inner, logger: l}
}

// Charge delegates to the inner charger and records the outcome.
func (i *Instrumented) Charge(
	ctx context.Context, p principal.Principal, operation string,
	compute func(ctx context.Context) error,
) (balance.Balance, error) {
	start := time.Now()

	after, err := i.inner.Charge(ctx, p, operation, compute)

	duration := time.Since(start)
	result := chargeResult(err)
	metrics.MeteredOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	metrics.ChargesTotal.WithLabelValues(operation, result).Inc()

	l := logger.FromContextOr(ctx, i.logger)
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("principal_id", p.ID()),
		zap.String("result", result),
		zap.Duration("duration", duration),
	}

	switch result {
	case metrics.ChargeOK:
		metrics.CreditsSpentTotal.Add(Cost)
		logger.Annotate(ctx, zap.Int64("credits_left", after.Credits()))
		l.Debug("Metered operation charged", append(fields, zap.Int64("credits_left", after.Credits()))...)
	case metrics.ChargeError:
		l.Error("Metered operation failed", append(fields, zap.Error(err))...)
	default:
		l.Info("Metered operation not charged", append(fields, zap.Error(err))...)
	}
	return after, err
}

func chargeResult(err error) string {
	switch {
	case err == nil:
		return metrics.ChargeOK
	case errors.Is(err, ErrDrained):
		return metrics.ChargeLostRace
	case errors.Is(err, domain.ErrInsufficientCredits):
		return metrics.ChargeInsufficient
	case errors.Is(err, domain.ErrStorageUnavailable):
		return metrics.ChargeError
	default:
		return metrics.ChargeFailed
	}
}

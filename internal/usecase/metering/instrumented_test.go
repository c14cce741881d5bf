package metering

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
	"github.com/kailas-cloud/creditgate/internal/logger"
	"github.com/kailas-cloud/creditgate/internal/metrics"
)

type stubCharger struct {
	after balance.Balance
	err   error
}

func (s stubCharger) Charge(
	_ context.Context, _ principal.Principal, _ string, _ func(ctx context.Context) error,
) (balance.Balance, error) {
	return s.after, s.err
}

func TestChargeResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, metrics.ChargeOK},
		{ErrDrained, metrics.ChargeLostRace},
		{domain.ErrInsufficientCredits, metrics.ChargeInsufficient},
		{domain.ErrStorageUnavailable, metrics.ChargeError},
		{errors.New("compute"), metrics.ChargeFailed},
	}
	for _, tc := range tests {
		if got := chargeResult(tc.err); got != tc.want {
			t.Errorf("chargeResult(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestInstrumented_CountsOutcome(t *testing.T) {
	counter := metrics.ChargesTotal.WithLabelValues("instrumented-test", metrics.ChargeInsufficient)
	before := testutil.ToFloat64(counter)

	inst := NewInstrumented(stubCharger{err: domain.ErrInsufficientCredits}, nil)
	_, err := inst.Charge(context.Background(), activePrincipal(), "instrumented-test", nil)
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("error must pass through, got %v", err)
	}

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected counter +1, got %f", got)
	}
}

func TestInstrumented_LogsAndAnnotates(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))
	ctx, ann := logger.ContextWithAnnotations(ctx)

	inst := NewInstrumented(stubCharger{after: balance.Reconstruct(testID, 9, 0, 0)}, zap.NewNop())
	after, err := inst.Charge(ctx, activePrincipal(), "sum", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Credits() != 9 {
		t.Errorf("expected balance to pass through, got %d", after.Credits())
	}

	if logs.FilterMessage("Metered operation charged").Len() != 1 {
		t.Errorf("expected one charged log line, got %v", logs.All())
	}
	var found bool
	for _, f := range ann.Fields() {
		if f.Key == "credits_left" && f.Integer == 9 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected credits_left annotation, got %v", ann.Fields())
	}
}

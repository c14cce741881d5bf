package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterCreditMetrics_Idempotent(t *testing.T) {
	RegisterCreditMetrics()
	RegisterCreditMetrics()

	err := prometheus.Register(ChargesTotal)
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		t.Fatalf("expected AlreadyRegisteredError, got %v", err)
	}
}

func TestChargesTotal_Labels(t *testing.T) {
	before := testutil.ToFloat64(ChargesTotal.WithLabelValues("sum", ChargeInsufficient))
	ChargesTotal.WithLabelValues("sum", ChargeInsufficient).Inc()
	after := testutil.ToFloat64(ChargesTotal.WithLabelValues("sum", ChargeInsufficient))

	if after-before != 1 {
		t.Errorf("expected +1, got %f", after-before)
	}
}

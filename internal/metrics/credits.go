package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Charge results.
const (
	ChargeOK           = "ok"
	ChargeInsufficient = "insufficient"
	ChargeLostRace     = "lost_race"
	ChargeFailed       = "failed"
	ChargeError        = "error"
)

// Ledger Prometheus metrics.
var (
	ChargesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charges_total",
			Help:      "Metered operation attempts by outcome",
		},
		[]string{"operation", "result"},
	)

	MeteredOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "metered_operation_duration_seconds",
			Help:      "Duration of metered operations including the balance round-trips",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"operation"},
	)

	CreditsSpentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_spent_total",
			Help:      "Credits consumed by metered operations",
		},
	)

	BalanceMaterializedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_materialized_total",
			Help:      "Balances created lazily on first access",
		},
	)

	AdminOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_operations_total",
			Help:      "Admin ledger operations by outcome",
		},
		[]string{"operation", "result"},
	)
)

var registerCreditMetrics sync.Once

// RegisterCreditMetrics registers the ledger metrics with the default registry.
// Safe to call more than once.
func RegisterCreditMetrics() {
	registerCreditMetrics.Do(func() {
		prometheus.MustRegister(
			ChargesTotal,
			MeteredOperationDuration,
			CreditsSpentTotal,
			BalanceMaterializedTotal,
			AdminOperationsTotal,
		)
	})
}

package creditgate

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "sdk"

// sdkMetrics are the collectors a host application can scrape.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	credits    *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditgate",
			Subsystem: metricsSubsystem,
			Name:      "operations_total",
			Help:      "SDK calls by operation and outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "creditgate",
			Subsystem: metricsSubsystem,
			Name:      "operation_duration_seconds",
			Help:      "SDK call latency, ledger round-trips included.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		credits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditgate",
			Subsystem: metricsSubsystem,
			Name:      "credits_spent_total",
			Help:      "Credits spent through Charge, by metered operation name.",
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.credits); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or swaps in the collector already registered
// under the same descriptor so two clients can share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("creditgate: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("creditgate: metric already registered as %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts SDK calls. A nil observer, or one without
// a registry or logger, silently drops the missing half.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}
	m, err := newSDKMetrics(reg)
	if err != nil {
		return nil, err
	}
	o.metrics = m
	return o, nil
}

// track starts timing op. The returned func must be called exactly once
// with the call's final error.
func (o *observer) track(op string) func(err error) {
	start := time.Now()
	return func(err error) {
		if o == nil {
			return
		}
		elapsed := time.Since(start)
		if o.metrics != nil {
			o.metrics.operations.WithLabelValues(op, status(err)).Inc()
			o.metrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
		}
		if o.logger == nil {
			return
		}
		if err != nil {
			o.logger.Warn("operation failed", "op", op, "duration", elapsed, "error", err)
			return
		}
		o.logger.Debug("operation completed", "op", op, "duration", elapsed)
	}
}

// spent counts one credit consumed by the named metered operation.
func (o *observer) spent(operation string) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.credits.WithLabelValues(operation).Inc()
}

// status buckets err into a low-cardinality label.
func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

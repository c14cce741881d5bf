package creditgate

import (
	"context"

	healthuc "github.com/kailas-cloud/creditgate/internal/usecase/health"
)

// Health is a snapshot of the ledger backend's reachability.
type Health struct {
	// Status is "ok", "degraded" or "error".
	Status string
	// Checks maps a component name to "ok" or "error".
	Checks map[string]string
}

// OK reports whether every component answered.
func (h Health) OK() bool { return h.Status == string(healthuc.Healthy) }

// Health probes the storage backend.
func (c *Client) Health(ctx context.Context) Health {
	report := c.health.Check(ctx)
	h := Health{Status: string(report.Status), Checks: make(map[string]string, len(report.Checks))}
	for name, res := range report.Checks {
		h.Checks[name] = string(res)
	}
	return h
}

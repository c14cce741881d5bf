package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the overall verdict served by GET /health.
type Status string

// Overall verdicts.
const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one probe.
type CheckResult string

// Probe outcomes.
const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

const (
	databaseCheck       = "database"
	defaultProbeTimeout = 2 * time.Second
)

// Report is a point-in-time snapshot of every probe.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service runs the database probe and any secondary probes in parallel.
type Service struct {
	db      DBPinger
	extras  map[string]Checker
	timeout time.Duration
}

// New creates a Service for the ledger backend.
func New(db DBPinger) *Service {
	return &Service{db: db, extras: make(map[string]Checker), timeout: defaultProbeTimeout}
}

// WithCheck adds a secondary probe under name. Nil checkers are ignored.
func (s *Service) WithCheck(name string, c Checker) *Service {
	if c != nil && name != databaseCheck {
		s.extras[name] = c
	}
	return s
}

// WithTimeout bounds each probe. Non-positive values keep the default.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes every component. A slow probe counts as failed once the
// per-probe timeout expires.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.extras)+1)
	)
	record := func(name string, err error) {
		res := CheckOK
		if err != nil {
			res = CheckError
		}
		mu.Lock()
		checks[name] = res
		mu.Unlock()
	}

	// Probe errors are recorded, never returned, so one failure does not
	// cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		record(databaseCheck, s.db.Ping(pctx))
		return nil
	})
	for name, c := range s.extras {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			record(name, c.HealthCheck(pctx))
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: verdict(checks), Checks: checks}
}

func verdict(checks map[string]CheckResult) Status {
	if checks[databaseCheck] != CheckOK {
		return Unhealthy
	}
	for _, res := range checks {
		if res != CheckOK {
			return Degraded
		}
	}
	return Healthy
}

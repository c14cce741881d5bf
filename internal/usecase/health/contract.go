package health

import "context"

// DBPinger is the ledger backend; its failure makes the service unusable.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker is a secondary dependency such as the external identity provider.
// Its failure only degrades the report.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

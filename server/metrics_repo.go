package server

import "context"

// Metrics are the aggregate counts the admin dashboard charts. Revenue is
// role-restricted and only populated when the caller may see it.
type Metrics struct {
	Users        int64 `json:"users,omitempty"`
	Transactions int64 `json:"transactions,omitempty"`
	Portfolios   int64 `json:"portfolios,omitempty"`
	RevenueCents int64 `json:"revenue_cents,omitempty"`
}

// MetricsRepo is the seam to the analytics datastore. Aggregation itself is
// a dashboard concern and lives behind this interface.
type MetricsRepo interface {
	Counts(ctx context.Context, period string) (Metrics, error)
}

var _ MetricsRepo = (*StaticMetricsRepo)(nil)

// StaticMetricsRepo serves fixed counts. Used in tests and local
// development where no analytics store is wired.
type StaticMetricsRepo struct {
	ByPeriod map[string]Metrics
}

func (mr *StaticMetricsRepo) Counts(_ context.Context, period string) (Metrics, error) {
	return mr.ByPeriod[period], nil
}

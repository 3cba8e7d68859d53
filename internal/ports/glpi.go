package ports

import (
	"context"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/glpi"
)

// TicketCounter defines the count-query surface of the GLPI adapter
type TicketCounter interface {
	// Count returns the total for one filtered count query
	Count(ctx context.Context, q glpi.CountQuery) (int, error)

	// CountByTechnician tallies per-technician totals from a single
	// OR-chained batch request
	CountByTechnician(ctx context.Context, techs []domain.Technician, q glpi.CountQuery) (map[int]int, error)
}

// Directory defines the identity lookups the aggregator needs
type Directory interface {
	// User fetches one technician's identity
	User(ctx context.Context, id int) (*domain.Technician, error)

	// GroupMembers lists the user ids belonging to a group
	GroupMembers(ctx context.Context, groupID int) ([]int, error)
}

// Classifier resolves technician service levels for one aggregation
// cycle
type Classifier interface {
	ClassifyBatch(ctx context.Context, techs []domain.Technician) (map[int]domain.ServiceLevel, map[int]error)
}

// MetricsCache fronts aggregation results with a TTL store
type MetricsCache interface {
	// GetOrCompute returns the cached value for key, computing and
	// storing it on miss. Concurrent callers for the same key share a
	// single in-flight computation.
	GetOrCompute(ctx context.Context, key string, compute func(context.Context) (*domain.DashboardMetrics, error)) (*domain.DashboardMetrics, error)
}

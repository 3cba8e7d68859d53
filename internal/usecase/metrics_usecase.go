package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/glpi"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/ports"
)

// defaultTrendWindow is the current-window length used for trends when
// the caller's filter carries no dates
const defaultTrendWindow = 30 * 24 * time.Hour

// defaultRankingLimit bounds the ranking embedded in the dashboard
const defaultRankingLimit = 10

// trendCapPercent bounds reported trend magnitudes so a near-zero
// baseline can never produce absurd percentages
const trendCapPercent = 999

// AggregationError represents a dashboard aggregation that could not be
// completed
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate dashboard metrics: %v", e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// MetricsUseCase composes count queries into dashboard metrics: general
// and per-level status tables, technician ranking and trend deltas
type MetricsUseCase struct {
	counter     ports.TicketCounter
	directory   ports.Directory
	classifier  ports.Classifier
	cache       ports.MetricsCache
	levelGroups map[domain.ServiceLevel]int
	maxInFlight int
	log         *logrus.Entry
}

// NewMetricsUseCase creates a new metrics use case. levelGroups maps
// each service level to its GLPI group id; maxInFlight bounds the
// concurrent count queries per aggregation.
func NewMetricsUseCase(
	counter ports.TicketCounter,
	directory ports.Directory,
	classifier ports.Classifier,
	cache ports.MetricsCache,
	levelGroups map[domain.ServiceLevel]int,
	maxInFlight int,
	log *logrus.Logger,
) *MetricsUseCase {
	if maxInFlight <= 0 {
		maxInFlight = 4
	}
	return &MetricsUseCase{
		counter:     counter,
		directory:   directory,
		classifier:  classifier,
		cache:       cache,
		levelGroups: levelGroups,
		maxInFlight: maxInFlight,
		log:         log.WithField("component", "aggregator"),
	}
}

// GetDashboardMetrics serves the dashboard aggregation, from cache when
// one is configured
func (uc *MetricsUseCase) GetDashboardMetrics(ctx context.Context, f domain.Filter) (*domain.DashboardMetrics, error) {
	if uc.cache == nil {
		return uc.Aggregate(ctx, f)
	}
	return uc.cache.GetOrCompute(ctx, f.Fingerprint(), func(ctx context.Context) (*domain.DashboardMetrics, error) {
		return uc.Aggregate(ctx, f)
	})
}

// countCell identifies one independently-computed count
type countCell struct {
	level  domain.ServiceLevel // "" for the general table
	bucket string
	trend  string // "cur"/"prev" for trend cells, "" for table cells
}

// Aggregate computes the full dashboard for one filter. Count queries
// run concurrently under one bounded group; a failed query degrades only
// the metrics that depended on it, while session/schema failures abort
// the whole aggregation (no partial dashboards on fatal errors).
func (uc *MetricsUseCase) Aggregate(ctx context.Context, f domain.Filter) (*domain.DashboardMetrics, error) {
	counts := make(map[countCell]int)
	var degraded []string
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.maxInFlight)

	schedule := func(cell countCell, q glpi.CountQuery) {
		g.Go(func() error {
			n, err := uc.counter.Count(gctx, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if isFatal(err) {
					return err
				}
				uc.log.WithError(err).WithFields(logrus.Fields{
					"level":  cell.level,
					"bucket": cell.bucket,
				}).Warn("Count query failed, metric degraded")
				degraded = append(degraded, degradedLabel(cell))
				return nil
			}
			counts[cell] = n
			return nil
		})
	}

	baseQuery := func(from domain.Filter) glpi.CountQuery {
		q := glpi.CountQuery{}
		if from.HasDateRange() {
			q.Start = from.Start
			q.End = from.End
		}
		return q
	}

	// general: one count per tracked status, no level filter
	for _, bucket := range domain.StatusBuckets {
		q := baseQuery(f)
		q.Statuses = bucket.IDs
		schedule(countCell{bucket: bucket.Name}, q)
	}

	// per (status x level), through the configured level groups
	for _, level := range domain.Levels {
		groupID, ok := uc.levelGroups[level]
		if !ok {
			continue
		}
		for _, bucket := range domain.StatusBuckets {
			q := baseQuery(f)
			q.Statuses = bucket.IDs
			q.GroupID = groupID
			schedule(countCell{level: level, bucket: bucket.Name}, q)
		}
	}

	// trend windows: current window vs the preceding window of equal
	// length; an undated filter trends over the trailing default window
	trendCur := f
	if !trendCur.HasDateRange() {
		end := time.Now()
		start := end.Add(-defaultTrendWindow)
		trendCur = domain.Filter{Start: &start, End: &end}
	}
	trendPrev := trendCur.PreviousWindow()
	for _, bucket := range domain.StatusBuckets {
		// a dated filter already counted the current window in the
		// general pass; only undated filters need a separate window
		if !f.HasDateRange() {
			qCur := baseQuery(trendCur)
			qCur.Statuses = bucket.IDs
			schedule(countCell{bucket: bucket.Name, trend: "cur"}, qCur)
		}

		qPrev := baseQuery(trendPrev)
		qPrev.Statuses = bucket.IDs
		schedule(countCell{bucket: bucket.Name, trend: "prev"}, qPrev)
	}

	// barrier: every derived field below waits for all counts
	if err := g.Wait(); err != nil {
		return nil, &AggregationError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &AggregationError{Err: err}
	}

	metrics := &domain.DashboardMetrics{
		Levels:      make(map[domain.ServiceLevel]domain.LevelMetrics, len(domain.Levels)),
		Trends:      make(map[string]string, len(domain.StatusBuckets)),
		GeneratedAt: time.Now(),
		Errors:      degraded,
	}

	for _, bucket := range domain.StatusBuckets {
		metrics.General.Set(bucket.Name, counts[countCell{bucket: bucket.Name}])
	}
	metrics.General.Finalize()

	for _, level := range domain.Levels {
		var lm domain.LevelMetrics
		for _, bucket := range domain.StatusBuckets {
			lm.Set(bucket.Name, counts[countCell{level: level, bucket: bucket.Name}])
		}
		lm.Finalize()
		metrics.Levels[level] = lm
	}

	uc.reconcileTotals(metrics, f)

	for _, bucket := range domain.StatusBuckets {
		cur, ok := counts[countCell{bucket: bucket.Name, trend: "cur"}]
		if !ok {
			cur = counts[countCell{bucket: bucket.Name}]
		}
		prev := counts[countCell{bucket: bucket.Name, trend: "prev"}]
		metrics.Trends[bucket.Name] = formatTrend(prev, cur)
	}

	if ranking, err := uc.Ranking(ctx, f, defaultRankingLimit); err != nil {
		uc.log.WithError(err).Warn("Ranking failed, dashboard served without it")
		metrics.Errors = append(metrics.Errors, "ranking")
	} else {
		metrics.Ranking = ranking
	}

	return metrics, nil
}

// reconcileTotals enforces the cross-total consistency policy: the
// levels-derived total is authoritative because it reflects the
// hierarchy the dashboard displays. A mismatch is expected whenever
// technicians work outside the level groups, so it is reported, not
// fatal.
func (uc *MetricsUseCase) reconcileTotals(m *domain.DashboardMetrics, f domain.Filter) {
	levelsTotal := 0
	for _, lm := range m.Levels {
		levelsTotal += lm.Total
	}
	if m.General.Total == levelsTotal {
		return
	}

	uc.log.WithFields(logrus.Fields{
		"general_total": m.General.Total,
		"levels_total":  levelsTotal,
		"filter":        f.Fingerprint(),
	}).Warn("Cross-total discrepancy, preferring levels-derived total")

	m.General.Total = levelsTotal
}

// Ranking computes the technician ranking for a filter: members of the
// level groups, classified through the cascade, counted in one batch,
// ordered by total descending with ids ascending on ties.
func (uc *MetricsUseCase) Ranking(ctx context.Context, f domain.Filter, limit int) ([]domain.TechnicianCount, error) {
	if limit <= 0 {
		limit = defaultRankingLimit
	}

	techs, err := uc.levelGroupMembers(ctx, f.Level)
	if err != nil {
		return nil, err
	}

	levels, unclassified := uc.classifier.ClassifyBatch(ctx, techs)
	for id, cerr := range unclassified {
		// explicit policy: unclassified technicians are excluded from
		// the ranking, never silently defaulted
		uc.log.WithError(cerr).WithField("technician", id).Warn("Technician excluded from ranking")
	}

	eligible := techs[:0]
	for _, t := range techs {
		level, ok := levels[t.ID]
		if !ok {
			continue
		}
		if f.Level != "" && level != f.Level {
			continue
		}
		t.Level = level
		eligible = append(eligible, t)
	}

	q := glpi.CountQuery{}
	if f.HasDateRange() {
		q.Start = f.Start
		q.End = f.End
	}
	counts, err := uc.counter.CountByTechnician(ctx, eligible, q)
	if err != nil {
		return nil, err
	}

	ranking := make([]domain.TechnicianCount, 0, len(eligible))
	for _, t := range eligible {
		ranking = append(ranking, domain.TechnicianCount{
			ID:    t.ID,
			Name:  t.Name,
			Level: t.Level,
			Total: counts[t.ID],
		})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Total != ranking[j].Total {
			return ranking[i].Total > ranking[j].Total
		}
		return ranking[i].ID < ranking[j].ID
	})

	if len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking, nil
}

// levelGroupMembers fetches the technicians of the level groups (one
// level when the filter pins it, all four otherwise), with identity
// lookups bounded by the in-flight budget
func (uc *MetricsUseCase) levelGroupMembers(ctx context.Context, only domain.ServiceLevel) ([]domain.Technician, error) {
	ids := make(map[int]bool)
	for _, level := range domain.Levels {
		if only != "" && level != only {
			continue
		}
		groupID, ok := uc.levelGroups[level]
		if !ok {
			continue
		}
		members, err := uc.directory.GroupMembers(ctx, groupID)
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			ids[id] = true
		}
	}

	ordered := make([]int, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Ints(ordered)

	techs := make([]domain.Technician, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.maxInFlight)
	for i, id := range ordered {
		i, id := i, id
		g.Go(func() error {
			t, err := uc.directory.User(gctx, id)
			if err != nil {
				return err
			}
			techs[i] = *t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	active := techs[:0]
	for _, t := range techs {
		if t.Deleted || !t.Active {
			continue
		}
		active = append(active, t)
	}
	return active, nil
}

// formatTrend renders the percentage delta between two windows. A zero
// baseline reports a bounded sentinel instead of an unbounded
// percentage; magnitudes are capped either way.
func formatTrend(prev, cur int) string {
	if prev == 0 {
		if cur == 0 {
			return "0%"
		}
		return "+100%"
	}

	delta := (float64(cur-prev) / float64(prev)) * 100
	rounded := int(delta + 0.5)
	if delta < 0 {
		rounded = int(delta - 0.5)
	}
	if rounded > trendCapPercent {
		rounded = trendCapPercent
	}
	if rounded < -trendCapPercent {
		rounded = -trendCapPercent
	}

	switch {
	case rounded > 0:
		return fmt.Sprintf("+%d%%", rounded)
	case rounded < 0:
		return fmt.Sprintf("%d%%", rounded)
	default:
		return "0%"
	}
}

// isFatal reports whether a count failure must abort the whole
// aggregation instead of degrading a single metric
func isFatal(err error) bool {
	var authErr *glpi.AuthError
	var schemaErr *glpi.SchemaError
	return errors.As(err, &authErr) || errors.As(err, &schemaErr)
}

func degradedLabel(cell countCell) string {
	label := cell.bucket
	if cell.level != "" {
		label = string(cell.level) + "." + cell.bucket
	}
	if cell.trend != "" {
		label = "trend." + label
	}
	return label
}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/glpi"
)

var testLevelGroups = map[domain.ServiceLevel]int{
	domain.LevelN1: 10,
	domain.LevelN2: 20,
	domain.LevelN3: 30,
	domain.LevelN4: 40,
}

// fakeCounter answers count queries from a fixture of per-bucket counts
type fakeCounter struct {
	mu sync.Mutex

	// general[bucket] and perGroup[groupID][bucket]
	general  map[string]int
	perGroup map[int]map[string]int
	// prevWindow[bucket] answers queries whose window lies in the past
	prevWindow map[string]int

	techCounts map[int]int

	failBuckets map[string]error
	calls       int
}

func (c *fakeCounter) Count(_ context.Context, q glpi.CountQuery) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	bucket := bucketFor(q.Statuses)
	if err, ok := c.failBuckets[bucket]; ok && q.GroupID == 0 {
		return 0, err
	}

	// a window that ends in the past is the previous trend window
	if q.End != nil && time.Since(*q.End) > time.Hour {
		return c.prevWindow[bucket], nil
	}
	if q.GroupID != 0 {
		return c.perGroup[q.GroupID][bucket], nil
	}
	return c.general[bucket], nil
}

func (c *fakeCounter) CountByTechnician(_ context.Context, techs []domain.Technician, _ glpi.CountQuery) (map[int]int, error) {
	out := make(map[int]int, len(techs))
	for _, t := range techs {
		out[t.ID] = c.techCounts[t.ID]
	}
	return out, nil
}

func bucketFor(statuses []int) string {
	for _, b := range domain.StatusBuckets {
		if len(statuses) > 0 && statuses[0] == b.IDs[0] {
			return b.Name
		}
	}
	return ""
}

// fakeDirectory serves fixed group members and identities
type fakeDirectory struct {
	members map[int][]int
	users   map[int]domain.Technician
}

func (d *fakeDirectory) User(_ context.Context, id int) (*domain.Technician, error) {
	t, ok := d.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return &t, nil
}

func (d *fakeDirectory) GroupMembers(_ context.Context, groupID int) ([]int, error) {
	return d.members[groupID], nil
}

// fakeClassifier levels everyone from a fixed map
type fakeClassifier struct {
	levels map[int]domain.ServiceLevel
}

func (c *fakeClassifier) ClassifyBatch(_ context.Context, techs []domain.Technician) (map[int]domain.ServiceLevel, map[int]error) {
	levels := make(map[int]domain.ServiceLevel)
	failed := make(map[int]error)
	for _, t := range techs {
		if level, ok := c.levels[t.ID]; ok {
			levels[t.ID] = level
		} else {
			failed[t.ID] = fmt.Errorf("unclassified")
		}
	}
	return levels, failed
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// uniformCounter builds a balanced fixture: every level group counts
// {novos:10, pendentes:5, progresso:3, resolvidos:2} and the general
// pass sees the sum of the four groups
func uniformCounter() *fakeCounter {
	levelRow := map[string]int{
		domain.BucketNew: 10, domain.BucketPending: 5,
		domain.BucketInProgress: 3, domain.BucketResolved: 2,
	}
	generalRow := map[string]int{
		domain.BucketNew: 40, domain.BucketPending: 20,
		domain.BucketInProgress: 12, domain.BucketResolved: 8,
	}
	perGroup := make(map[int]map[string]int)
	for _, g := range testLevelGroups {
		perGroup[g] = levelRow
	}
	return &fakeCounter{
		general:    generalRow,
		perGroup:   perGroup,
		prevWindow: map[string]int{},
		techCounts: map[int]int{},
	}
}

func newTestUseCase(counter *fakeCounter) *MetricsUseCase {
	dir := &fakeDirectory{members: map[int][]int{}, users: map[int]domain.Technician{}}
	return NewMetricsUseCase(counter, dir, &fakeClassifier{}, nil, testLevelGroups, 4, quietLogger())
}

func TestAggregate_CrossTotalInvariant(t *testing.T) {
	uc := newTestUseCase(uniformCounter())

	m, err := uc.Aggregate(context.Background(), domain.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 80, m.General.Total)
	for _, level := range domain.Levels {
		assert.Equal(t, 20, m.Levels[level].Total, "level %s", level)
	}

	levelsTotal := 0
	for _, lm := range m.Levels {
		levelsTotal += lm.Total
	}
	assert.Equal(t, m.General.Total, levelsTotal)
}

func TestAggregate_DiscrepancyPrefersLevelsTotal(t *testing.T) {
	counter := uniformCounter()
	// general sees 5 extra tickets assigned outside the level groups
	counter.general[domain.BucketNew] = 45

	uc := newTestUseCase(counter)
	m, err := uc.Aggregate(context.Background(), domain.Filter{})
	require.NoError(t, err)

	// levels-derived total is authoritative
	assert.Equal(t, 80, m.General.Total)
	// measured per-status fields are kept as observed
	assert.Equal(t, 45, m.General.New)
}

func TestAggregate_TrendZeroBaselineIsCapped(t *testing.T) {
	counter := uniformCounter()
	counter.general[domain.BucketNew] = 5
	counter.prevWindow[domain.BucketNew] = 0

	uc := newTestUseCase(counter)
	m, err := uc.Aggregate(context.Background(), domain.Filter{})
	require.NoError(t, err)

	assert.Equal(t, "+100%", m.Trends[domain.BucketNew], "zero baseline must report the bounded sentinel")
}

func TestAggregate_TrendDelta(t *testing.T) {
	counter := uniformCounter()
	counter.prevWindow = map[string]int{
		domain.BucketNew:        80, // 40 now: -50%
		domain.BucketPending:    10, // 20 now: +100%
		domain.BucketInProgress: 12, // unchanged
	}

	uc := newTestUseCase(counter)
	m, err := uc.Aggregate(context.Background(), domain.Filter{})
	require.NoError(t, err)

	assert.Equal(t, "-50%", m.Trends[domain.BucketNew])
	assert.Equal(t, "+100%", m.Trends[domain.BucketPending])
	assert.Equal(t, "0%", m.Trends[domain.BucketInProgress])
}

func TestAggregate_IsolatedFailureDegradesOneMetric(t *testing.T) {
	counter := uniformCounter()
	counter.failBuckets = map[string]error{
		domain.BucketPending: &glpi.TransportError{Op: "search/Ticket", Status: 502},
	}

	uc := newTestUseCase(counter)
	m, err := uc.Aggregate(context.Background(), domain.Filter{})
	require.NoError(t, err, "an isolated count failure must not fail the aggregation")

	assert.True(t, m.Degraded())
	assert.Contains(t, m.Errors, domain.BucketPending)
	// sibling metrics unaffected
	assert.Equal(t, 40, m.General.New)
	for _, level := range domain.Levels {
		assert.Equal(t, 20, m.Levels[level].Total)
	}
}

func TestAggregate_AuthFailureIsFatal(t *testing.T) {
	counter := uniformCounter()
	counter.failBuckets = map[string]error{
		domain.BucketNew: &glpi.AuthError{Reason: "session rejected twice"},
	}

	uc := newTestUseCase(counter)
	_, err := uc.Aggregate(context.Background(), domain.Filter{})
	require.Error(t, err)

	var aggErr *AggregationError
	assert.ErrorAs(t, err, &aggErr)
}

func TestAggregate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := newTestUseCase(uniformCounter())
	m, err := uc.Aggregate(ctx, domain.Filter{})

	assert.Error(t, err)
	assert.Nil(t, m, "no partial dashboards on cancellation")
}

func TestRanking_SortedWithDeterministicTies(t *testing.T) {
	counter := uniformCounter()
	counter.techCounts = map[int]int{101: 7, 202: 12, 303: 7, 404: 0}

	dir := &fakeDirectory{
		members: map[int][]int{10: {101, 202}, 20: {303, 404}},
		users: map[int]domain.Technician{
			101: {ID: 101, Name: "Ana", Active: true},
			202: {ID: 202, Name: "Bruno", Active: true},
			303: {ID: 303, Name: "Carla", Active: true},
			404: {ID: 404, Name: "Davi", Active: true},
		},
	}
	classifier := &fakeClassifier{levels: map[int]domain.ServiceLevel{
		101: domain.LevelN1, 202: domain.LevelN1,
		303: domain.LevelN2, 404: domain.LevelN2,
	}}
	uc := NewMetricsUseCase(counter, dir, classifier, nil, testLevelGroups, 4, quietLogger())

	ranking, err := uc.Ranking(context.Background(), domain.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, ranking, 4)

	// descending by total; the 7-7 tie breaks ascending by id
	assert.Equal(t, 202, ranking[0].ID)
	assert.Equal(t, 101, ranking[1].ID)
	assert.Equal(t, 303, ranking[2].ID)
	assert.Equal(t, 404, ranking[3].ID)
}

func TestRanking_FiltersAndExclusions(t *testing.T) {
	counter := uniformCounter()
	counter.techCounts = map[int]int{101: 3, 303: 9}

	dir := &fakeDirectory{
		members: map[int][]int{10: {101, 150}, 20: {303}, 30: {505}},
		users: map[int]domain.Technician{
			101: {ID: 101, Name: "Ana", Active: true},
			150: {ID: 150, Name: "Gone", Active: false},
			303: {ID: 303, Name: "Carla", Active: true},
			505: {ID: 505, Name: "Mystery", Active: true},
		},
	}
	// 505 stays unclassified on purpose
	classifier := &fakeClassifier{levels: map[int]domain.ServiceLevel{
		101: domain.LevelN1, 303: domain.LevelN2,
	}}
	uc := NewMetricsUseCase(counter, dir, classifier, nil, testLevelGroups, 4, quietLogger())

	ranking, err := uc.Ranking(context.Background(), domain.Filter{}, 10)
	require.NoError(t, err)

	ids := make([]int, 0, len(ranking))
	for _, r := range ranking {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []int{101, 303}, ids, "inactive and unclassified technicians are excluded")

	// level filter narrows membership
	only, err := uc.Ranking(context.Background(), domain.Filter{Level: domain.LevelN2}, 10)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, 303, only[0].ID)
}

func TestRanking_LimitApplied(t *testing.T) {
	counter := uniformCounter()
	dir := &fakeDirectory{
		members: map[int][]int{10: {1, 2, 3}},
		users: map[int]domain.Technician{
			1: {ID: 1, Name: "A", Active: true},
			2: {ID: 2, Name: "B", Active: true},
			3: {ID: 3, Name: "C", Active: true},
		},
	}
	classifier := &fakeClassifier{levels: map[int]domain.ServiceLevel{
		1: domain.LevelN1, 2: domain.LevelN1, 3: domain.LevelN1,
	}}
	uc := NewMetricsUseCase(counter, dir, classifier, nil, testLevelGroups, 4, quietLogger())

	ranking, err := uc.Ranking(context.Background(), domain.Filter{}, 2)
	require.NoError(t, err)
	assert.Len(t, ranking, 2)
}

func TestFormatTrend(t *testing.T) {
	tests := []struct {
		prev, cur int
		want      string
	}{
		{0, 0, "0%"},
		{0, 5, "+100%"},
		{10, 5, "-50%"},
		{10, 20, "+100%"},
		{10, 10, "0%"},
		{1, 500, "+999%"},
		{100, 101, "+1%"},
		{3, 2, "-33%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatTrend(tt.prev, tt.cur), "prev=%d cur=%d", tt.prev, tt.cur)
	}
}

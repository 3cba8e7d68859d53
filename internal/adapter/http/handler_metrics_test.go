package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/glpi"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/usecase"
)

type stubCounter struct {
	mu      sync.Mutex
	count   int
	err     error
	perTech map[int]int
	lastQ   glpi.CountQuery
}

func (s *stubCounter) Count(ctx context.Context, q glpi.CountQuery) (int, error) {
	s.mu.Lock()
	s.lastQ = q
	s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.count, nil
}

func (s *stubCounter) CountByTechnician(ctx context.Context, techs []domain.Technician, q glpi.CountQuery) (map[int]int, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[int]int, len(techs))
	for _, t := range techs {
		out[t.ID] = s.perTech[t.ID]
	}
	return out, nil
}

type stubDirectory struct {
	members map[int][]int
	users   map[int]*domain.Technician
}

func (s *stubDirectory) User(ctx context.Context, id int) (*domain.Technician, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return &domain.Technician{ID: id, Name: "tech", Active: true}, nil
}

func (s *stubDirectory) GroupMembers(ctx context.Context, groupID int) ([]int, error) {
	return s.members[groupID], nil
}

type stubClassifier struct {
	levels map[int]domain.ServiceLevel
}

func (s *stubClassifier) ClassifyBatch(ctx context.Context, techs []domain.Technician) (map[int]domain.ServiceLevel, map[int]error) {
	out := make(map[int]domain.ServiceLevel, len(techs))
	for _, t := range techs {
		if level, ok := s.levels[t.ID]; ok {
			out[t.ID] = level
		}
	}
	return out, nil
}

var testLevelGroups = map[domain.ServiceLevel]int{
	domain.LevelN1: 10,
	domain.LevelN2: 20,
	domain.LevelN3: 30,
	domain.LevelN4: 40,
}

func newTestRouter(counter *stubCounter, dir *stubDirectory, cls *stubClassifier) *mux.Router {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	if dir == nil {
		dir = &stubDirectory{}
	}
	if cls == nil {
		cls = &stubClassifier{}
	}

	uc := usecase.NewMetricsUseCase(counter, dir, cls, nil, testLevelGroups, 4, log)
	handler := NewMetricsHandler(uc, log)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	router.Use(recoveryMiddleware(log))
	router.Use(correlationMiddleware)
	return router
}

func doRequest(t *testing.T, router *mux.Router, target string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestGetMetricsResponseShape(t *testing.T) {
	router := newTestRouter(&stubCounter{count: 5}, nil, nil)

	rec, env := doRequest(t, router, "/api/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "ok", env.Message)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)

	niveis, ok := data["niveis"].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"geral", "n1", "n2", "n3", "n4"} {
		row, ok := niveis[key].(map[string]interface{})
		require.True(t, ok, "missing niveis.%s", key)
		for _, field := range []string{"novos", "pendentes", "progresso", "resolvidos", "total"} {
			assert.Contains(t, row, field)
		}
	}
	// 4 buckets of 5 each
	n1 := niveis["n1"].(map[string]interface{})
	assert.Equal(t, float64(20), n1["total"])

	tendencias, ok := data["tendencias"].(map[string]interface{})
	require.True(t, ok)
	for _, field := range []string{"novos", "pendentes", "progresso", "resolvidos"} {
		assert.Contains(t, tendencias, field)
	}
}

func TestGetMetricsFatalFailure(t *testing.T) {
	counter := &stubCounter{err: &glpi.AuthError{Reason: "invalid token"}}
	router := newTestRouter(counter, nil, nil)

	rec, env := doRequest(t, router, "/api/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "authentication with GLPI failed", env.Message)
	assert.Nil(t, env.Data)
}

func TestGetMetricsDateFilter(t *testing.T) {
	counter := &stubCounter{count: 1}
	router := newTestRouter(counter, nil, nil)

	doRequest(t, router, "/api/metrics?start_date=2025-03-01&end_date=2025-03-31")

	require.NotNil(t, counter.lastQ.Start)
	require.NotNil(t, counter.lastQ.End)
	assert.Equal(t, 2025, counter.lastQ.Start.Year())
}

func TestGetMetricsBadDateIgnored(t *testing.T) {
	counter := &stubCounter{count: 1}
	router := newTestRouter(counter, nil, nil)

	rec, env := doRequest(t, router, "/api/metrics?start_date=март&end_date=2025-03-31")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestGetRanking(t *testing.T) {
	counter := &stubCounter{
		count:   1,
		perTech: map[int]int{101: 7, 102: 3},
	}
	dir := &stubDirectory{
		members: map[int][]int{10: {101, 102}},
		users: map[int]*domain.Technician{
			101: {ID: 101, Name: "Ana", Active: true},
			102: {ID: 102, Name: "Bruno", Active: true},
		},
	}
	cls := &stubClassifier{levels: map[int]domain.ServiceLevel{
		101: domain.LevelN1,
		102: domain.LevelN1,
	}}
	router := newTestRouter(counter, dir, cls)

	rec, env := doRequest(t, router, "/api/technicians/ranking?level=N1&limit=5")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	rows, ok := env.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, rows, 2)

	first := rows[0].(map[string]interface{})
	assert.Equal(t, "Ana", first["name"])
	assert.Equal(t, float64(7), first["total"])
}

func TestCorrelationIDPropagated(t *testing.T) {
	router := newTestRouter(&stubCounter{count: 1}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))
}

func TestCorrelationIDGenerated(t *testing.T) {
	router := newTestRouter(&stubCounter{count: 1}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestParseFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/metrics?start_date=2025-01-01&end_date=2025-01-31&level=n2&limit=15", nil)

	f := parseFilter(req)

	require.NotNil(t, f.Start)
	assert.Equal(t, time.January, f.Start.Month())
	assert.Equal(t, domain.LevelN2, f.Level)
	assert.Equal(t, 15, f.Limit)
}

func TestParseFilterGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/metrics?start_date=not-a-date&level=N9&limit=-3", nil)

	f := parseFilter(req)

	assert.Nil(t, f.Start)
	assert.Empty(t, string(f.Level))
	assert.Zero(t, f.Limit)
}

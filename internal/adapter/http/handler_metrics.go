package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/glpi"
	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/usecase"
)

// dateParam is the layout accepted for start_date and end_date
const dateParam = "2006-01-02"

// MetricsHandler handles HTTP requests for dashboard metrics
type MetricsHandler struct {
	metrics *usecase.MetricsUseCase
	log     *logrus.Logger
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metrics *usecase.MetricsUseCase, log *logrus.Logger) *MetricsHandler {
	return &MetricsHandler{
		metrics: metrics,
		log:     log,
	}
}

// RegisterRoutes registers metrics routes
func (h *MetricsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/metrics", h.GetMetrics).Methods("GET")
	router.HandleFunc("/api/technicians/ranking", h.GetRanking).Methods("GET")
}

// levelsPayload is the "niveis" block of the metrics response
type levelsPayload struct {
	Geral domain.LevelMetrics `json:"geral"`
	N1    domain.LevelMetrics `json:"n1"`
	N2    domain.LevelMetrics `json:"n2"`
	N3    domain.LevelMetrics `json:"n3"`
	N4    domain.LevelMetrics `json:"n4"`
}

// metricsPayload is the "data" block of the metrics response
type metricsPayload struct {
	Niveis      levelsPayload            `json:"niveis"`
	Tendencias  map[string]string        `json:"tendencias"`
	Ranking     []domain.TechnicianCount `json:"ranking,omitempty"`
	Degraded    []string                 `json:"degraded,omitempty"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// GetMetrics handles the dashboard metrics request
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	m, err := h.metrics.GetDashboardMetrics(r.Context(), filter)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"error":          err,
			"correlation_id": CorrelationID(r.Context()),
		}).Error("metrics aggregation failed")
		Failure(w, failureMessage(err))
		return
	}

	payload := metricsPayload{
		Niveis: levelsPayload{
			Geral: m.General,
			N1:    m.Levels[domain.LevelN1],
			N2:    m.Levels[domain.LevelN2],
			N3:    m.Levels[domain.LevelN3],
			N4:    m.Levels[domain.LevelN4],
		},
		Tendencias:  m.Trends,
		Ranking:     m.Ranking,
		Degraded:    m.Errors,
		GeneratedAt: m.GeneratedAt,
	}

	message := "ok"
	if m.Degraded() {
		message = fmt.Sprintf("partial results: %d metrics unavailable", len(m.Errors))
	}
	Success(w, message, payload)
}

// GetRanking handles the technician ranking request
func (h *MetricsHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	limit := filter.Limit
	ranking, err := h.metrics.Ranking(r.Context(), filter, limit)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"error":          err,
			"correlation_id": CorrelationID(r.Context()),
		}).Error("ranking failed")
		Failure(w, failureMessage(err))
		return
	}

	Success(w, "ok", ranking)
}

// parseFilter extracts the metrics filter from query parameters.
// Unparseable values are dropped rather than rejected, degrading to a
// wider query.
func parseFilter(r *http.Request) domain.Filter {
	q := r.URL.Query()
	var f domain.Filter

	if raw := q.Get("start_date"); raw != "" {
		if t, err := time.Parse(dateParam, raw); err == nil {
			f.Start = &t
		}
	}
	if raw := q.Get("end_date"); raw != "" {
		if t, err := time.Parse(dateParam, raw); err == nil {
			f.End = &t
		}
	}
	if raw := q.Get("level"); raw != "" {
		if level, err := domain.ParseLevel(raw); err == nil {
			f.Level = level
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			f.Limit = n
		}
	}
	return f
}

// failureMessage maps an aggregation error onto the envelope message
func failureMessage(err error) string {
	var authErr *glpi.AuthError
	if errors.As(err, &authErr) {
		return "authentication with GLPI failed"
	}
	var schemaErr *glpi.SchemaError
	if errors.As(err, &schemaErr) {
		return "ticket schema discovery failed"
	}
	return "metrics aggregation failed"
}

package domain

import (
	"fmt"
	"time"
)

// LevelMetrics represents aggregated ticket counts for one service level
// (or for the whole installation when used as the "geral" row)
type LevelMetrics struct {
	New        int `json:"novos"`
	Pending    int `json:"pendentes"`
	InProgress int `json:"progresso"`
	Resolved   int `json:"resolvidos"`
	Total      int `json:"total"`
}

// Set assigns the count for one status bucket
func (m *LevelMetrics) Set(bucket string, count int) {
	switch bucket {
	case BucketNew:
		m.New = count
	case BucketPending:
		m.Pending = count
	case BucketInProgress:
		m.InProgress = count
	case BucketResolved:
		m.Resolved = count
	}
}

// Get returns the count for one status bucket
func (m *LevelMetrics) Get(bucket string) int {
	switch bucket {
	case BucketNew:
		return m.New
	case BucketPending:
		return m.Pending
	case BucketInProgress:
		return m.InProgress
	case BucketResolved:
		return m.Resolved
	}
	return 0
}

// Finalize recomputes Total from the four status fields. Totals are
// always derived this way, never counted separately, so each row
// satisfies total == novos+pendentes+progresso+resolvidos by
// construction.
func (m *LevelMetrics) Finalize() {
	m.Total = m.New + m.Pending + m.InProgress + m.Resolved
}

// TechnicianCount represents one row of the technician ranking
type TechnicianCount struct {
	ID    int          `json:"id"`
	Name  string       `json:"name"`
	Level ServiceLevel `json:"level,omitempty"`
	Total int          `json:"total"`
}

// DashboardMetrics represents the full aggregation result served to the
// frontend
type DashboardMetrics struct {
	General     LevelMetrics                  `json:"geral"`
	Levels      map[ServiceLevel]LevelMetrics `json:"niveis"`
	Trends      map[string]string             `json:"tendencias"`
	Ranking     []TechnicianCount             `json:"ranking,omitempty"`
	Errors      []string                      `json:"errors,omitempty"`
	GeneratedAt time.Time                     `json:"generated_at"`
}

// Degraded reports whether any constituent metric failed to compute
func (d *DashboardMetrics) Degraded() bool {
	return len(d.Errors) > 0
}

// Filter represents the caller-supplied metrics filter
type Filter struct {
	Start *time.Time   `json:"start_date,omitempty"`
	End   *time.Time   `json:"end_date,omitempty"`
	Level ServiceLevel `json:"level,omitempty"`
	Limit int          `json:"limit,omitempty"`
}

// HasDateRange reports whether the filter carries a usable date window.
// A range with end before start is treated as absent, mirroring the
// counter's degrade-to-unfiltered policy.
func (f Filter) HasDateRange() bool {
	if f.Start == nil || f.End == nil {
		return false
	}
	return !f.End.Before(*f.Start)
}

// PreviousWindow returns a filter covering the window of equal length
// immediately before this filter's window, for trend computation.
func (f Filter) PreviousWindow() Filter {
	if !f.HasDateRange() {
		return Filter{}
	}
	length := f.End.Sub(*f.Start)
	prevEnd := f.Start.Add(-time.Nanosecond)
	prevStart := prevEnd.Add(-length)
	prev := f
	prev.Start = &prevStart
	prev.End = &prevEnd
	return prev
}

// Fingerprint returns a deterministic cache key for the filter
func (f Filter) Fingerprint() string {
	start, end := "-", "-"
	if f.Start != nil {
		start = f.Start.Format("2006-01-02")
	}
	if f.End != nil {
		end = f.End.Format("2006-01-02")
	}
	level := "-"
	if f.Level != "" {
		level = string(f.Level)
	}
	return fmt.Sprintf("metrics:%s|%s|%s|%d", start, end, level, f.Limit)
}

package models

import (
	"strings"
	"time"
)

// Status is the traffic-light classification for one (metric, window) row.
type Status string

const (
	StatusGreen  Status = "Green"
	StatusYellow Status = "Yellow"
	StatusRed    Status = "Red"
	// StatusUnknown marks rows whose required statistics were undefined.
	// Missing signal is never reported as health.
	StatusUnknown Status = "Unknown"
)

// ServingRow is one normalized output row per (metric, window) per run.
type ServingRow struct {
	MetricKey string
	Label     string
	Section   string

	WindowDays int
	AsOfDate   time.Time

	Value          Stat
	LowerThreshold Stat
	UpperThreshold Stat
	SeasonalZScore Stat
	PctChange      Stat

	Signals     []SignalCode
	SignalCount int

	RollingPointsUsed    int
	SeasonalPointsUsed   int
	WeekdayFilterApplied bool

	Status      Status
	RefreshedAt time.Time
}

// SignalsString renders the fired signals in stable order, pipe-separated.
func (r ServingRow) SignalsString() string {
	if len(r.Signals) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Signals))
	for _, s := range r.Signals {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, "|")
}

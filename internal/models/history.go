package models

import "time"

// Fact is one measurement pushed in from the external measurement source.
type Fact struct {
	MetricKey string
	Day       time.Time
	Value     float64
	Source    string
}

// HistoryPoint is one raw daily value read back from the history ledger.
type HistoryPoint struct {
	Day   time.Time
	Value float64
}

// Stat is a statistic that may be undefined. Undefined values propagate as an
// explicit insufficient-data marker so "no data" and "zero" never blur.
type Stat struct {
	Value   float64
	Defined bool
}

// DefinedStat wraps a concrete value.
func DefinedStat(v float64) Stat {
	return Stat{Value: v, Defined: true}
}

// UndefinedStat is the insufficient-data marker.
func UndefinedStat() Stat {
	return Stat{}
}

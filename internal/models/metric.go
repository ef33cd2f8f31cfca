package models

import (
	"fmt"
	"time"
)

// ValueType determines how daily values aggregate over a trailing window.
type ValueType string

const (
	ValueTypeCount    ValueType = "count"
	ValueTypeRate     ValueType = "rate"
	ValueTypeRatio    ValueType = "ratio"
	ValueTypeCurrency ValueType = "currency"
)

// SumsOverWindow reports whether window values add up rather than average.
// Counts aggregate additively; summing a daily rate across a window would be
// semantically wrong, so every other type averages.
func (v ValueType) SumsOverWindow() bool {
	return v == ValueTypeCount
}

// Valid reports whether the value type is one the engine understands.
func (v ValueType) Valid() bool {
	switch v {
	case ValueTypeCount, ValueTypeRate, ValueTypeRatio, ValueTypeCurrency:
		return true
	}
	return false
}

// Mode selects the status policy applied to a metric's signals.
type Mode string

const (
	// ModeStatic is a binary policy: Red on a bound breach, Green otherwise.
	ModeStatic Mode = "static"
	// ModeDynamic counts fired signals against per-metric Yellow/Red thresholds.
	ModeDynamic Mode = "dynamic"
)

// Direction limits which bound breaches a metric may raise.
type Direction string

const (
	DirectionBoth      Direction = "both"
	DirectionLowerOnly Direction = "lower_only"
	DirectionUpperOnly Direction = "upper_only"
)

// Allows reports whether a bound-breach signal passes the direction filter.
// Non-bound signals (Z, P) are never direction-filtered.
func (d Direction) Allows(code SignalCode) bool {
	switch d {
	case DirectionLowerOnly:
		return code != SignalBreachHigh
	case DirectionUpperOnly:
		return code != SignalBreachLow
	default:
		return true
	}
}

// SignalCode identifies one kind of deviation.
type SignalCode string

const (
	SignalBreachLow       SignalCode = "L"
	SignalBreachHigh      SignalCode = "U"
	SignalSeasonalOutlier SignalCode = "Z"
	SignalPercentSwing    SignalCode = "P"
)

// SignalOrder fixes the stable emission order of fired signals.
var SignalOrder = []SignalCode{SignalBreachLow, SignalBreachHigh, SignalSeasonalOutlier, SignalPercentSwing}

// StatusPolicy maps a fired-signal count onto Yellow/Red for dynamic mode.
type StatusPolicy struct {
	YellowAt int
	RedAt    int
}

// DefaultStatusPolicy mirrors the conventional one-signal-Yellow, two-signal-Red rule.
func DefaultStatusPolicy() StatusPolicy {
	return StatusPolicy{YellowAt: 1, RedAt: 2}
}

// StaticBounds carries fixed thresholds for static-mode metrics. When unset,
// static mode falls back to rolling-statistic bounds.
type StaticBounds struct {
	Lower Stat
	Upper Stat
}

// MetricDefinition is the immutable per-KPI configuration for one run.
type MetricDefinition struct {
	Key     string
	Label   string
	Section string

	ValueType ValueType
	Mode      Mode

	// K scales the rolling standard deviation into lower/upper thresholds.
	K float64
	// ZScoreLimit is the minimum |seasonal z-score| that fires Z.
	ZScoreLimit float64
	// PercentDrop is the minimum |percent change| that fires P.
	PercentDrop float64

	// RollingWindow overrides the run-level rolling lookback when positive.
	RollingWindow int

	// ExcludeWeekdays are removed from the statistical baseline only; the raw
	// history and the reported window value are never filtered.
	ExcludeWeekdays []time.Weekday

	Direction      Direction
	SignalsEnabled []SignalCode
	Policy         StatusPolicy

	MinRollingPoints  int
	MinSeasonalPoints int

	Static StaticBounds
}

// Validate rejects definitions the evaluator cannot honour. A failing metric
// is skipped for the run; it never aborts evaluation of other metrics.
func (d MetricDefinition) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("metric key is empty")
	}
	if !d.ValueType.Valid() {
		return fmt.Errorf("metric %s: unknown value type %q", d.Key, d.ValueType)
	}
	switch d.Mode {
	case ModeStatic, ModeDynamic:
	default:
		return fmt.Errorf("metric %s: unknown mode %q", d.Key, d.Mode)
	}
	switch d.Direction {
	case DirectionBoth, DirectionLowerOnly, DirectionUpperOnly:
	default:
		return fmt.Errorf("metric %s: unknown direction %q", d.Key, d.Direction)
	}
	if len(d.ExcludeWeekdays) >= 7 {
		return fmt.Errorf("metric %s: weekday exclusion removes every weekday", d.Key)
	}
	if d.Mode == ModeDynamic && d.Policy.YellowAt < 1 {
		return fmt.Errorf("metric %s: policy yellowAt %d must be at least 1", d.Key, d.Policy.YellowAt)
	}
	if d.Policy.RedAt < d.Policy.YellowAt {
		return fmt.Errorf("metric %s: policy redAt %d below yellowAt %d", d.Key, d.Policy.RedAt, d.Policy.YellowAt)
	}
	return nil
}

// SignalEnabled reports whether the definition opts into a signal code.
// An empty SignalsEnabled set means all signals are enabled.
func (d MetricDefinition) SignalEnabled(code SignalCode) bool {
	if len(d.SignalsEnabled) == 0 {
		return true
	}
	for _, c := range d.SignalsEnabled {
		if c == code {
			return true
		}
	}
	return false
}

// WeekdayExcluded reports whether a weekday is removed from the baseline.
func (d MetricDefinition) WeekdayExcluded(w time.Weekday) bool {
	for _, ex := range d.ExcludeWeekdays {
		if ex == w {
			return true
		}
	}
	return false
}

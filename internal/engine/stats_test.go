package engine

import (
	"math"
	"testing"
	"time"

	"github.com/loonielabs/kpi-sentinel/internal/models"
)

func dynDef(key string) models.MetricDefinition {
	return models.MetricDefinition{
		Key:               key,
		Label:             key,
		ValueType:         models.ValueTypeCount,
		Mode:              models.ModeDynamic,
		Direction:         models.DirectionBoth,
		K:                 2,
		ZScoreLimit:       2,
		PercentDrop:       0.3,
		Policy:            models.DefaultStatusPolicy(),
		MinRollingPoints:  2,
		MinSeasonalPoints: 2,
	}
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestBaselineRollingBoundsExcludeReferenceDay(t *testing.T) {
	// 90, 100, 110 before the reference day: mean 100, sample std 10.
	series := consecutive(t, "2025-07-01", 90, 100, 110, 60)
	def := dynDef("m")

	b := EvaluateBaseline(def, series, day(t, "2025-07-04"), 28)
	if !b.TodayValue.Defined || b.TodayValue.Value != 60 {
		t.Fatalf("today = %+v, want 60", b.TodayValue)
	}
	if !b.LowerThreshold.Defined || !approx(b.LowerThreshold.Value, 80) {
		t.Fatalf("lower = %+v, want 80", b.LowerThreshold)
	}
	if !b.UpperThreshold.Defined || !approx(b.UpperThreshold.Value, 120) {
		t.Fatalf("upper = %+v, want 120", b.UpperThreshold)
	}
	if b.RollingPointsUsed != 3 {
		t.Fatalf("rolling points = %d, want 3", b.RollingPointsUsed)
	}
}

func TestBaselineRollingWindowLookbackHonored(t *testing.T) {
	series := consecutive(t, "2025-07-01", 1000, 90, 100, 110, 60)
	def := dynDef("m")

	// A 3-day lookback must not see the 1000 on 2025-07-01.
	b := EvaluateBaseline(def, series, day(t, "2025-07-05"), 3)
	if !approx(b.LowerThreshold.Value, 80) || !approx(b.UpperThreshold.Value, 120) {
		t.Fatalf("bounds = %+v / %+v, want 80 / 120", b.LowerThreshold, b.UpperThreshold)
	}

	// The per-metric override widens it back out.
	def.RollingWindow = 10
	b = EvaluateBaseline(def, series, day(t, "2025-07-05"), 3)
	if b.RollingPointsUsed != 4 {
		t.Fatalf("rolling points = %d, want 4 with override", b.RollingPointsUsed)
	}
}

func TestBaselineInsufficientRollingPoints(t *testing.T) {
	series := consecutive(t, "2025-07-03", 100, 60)
	def := dynDef("m")
	def.MinRollingPoints = 5

	b := EvaluateBaseline(def, series, day(t, "2025-07-04"), 28)
	if b.LowerThreshold.Defined || b.UpperThreshold.Defined {
		t.Fatalf("bounds should be undefined with 1 rolling point, got %+v / %+v", b.LowerThreshold, b.UpperThreshold)
	}
	if b.RollingPointsUsed != 1 {
		t.Fatalf("rolling points = %d, want 1", b.RollingPointsUsed)
	}
}

func TestBaselineZeroStdCollapsesBounds(t *testing.T) {
	series := consecutive(t, "2025-07-01", 10, 10, 10, 10, 10)
	def := dynDef("m")

	b := EvaluateBaseline(def, series, day(t, "2025-07-05"), 28)
	if !b.LowerThreshold.Defined || !b.UpperThreshold.Defined {
		t.Fatalf("bounds should be defined, got %+v / %+v", b.LowerThreshold, b.UpperThreshold)
	}
	if b.LowerThreshold.Value != 10 || b.UpperThreshold.Value != 10 {
		t.Fatalf("zero-spread bounds = %v / %v, want 10 / 10", b.LowerThreshold.Value, b.UpperThreshold.Value)
	}
}

func TestBaselineSeasonalSameWeekday(t *testing.T) {
	// 2025-07-06 is a Sunday. Prior Sundays: Jun 15, 22, 29.
	series := []models.HistoryPoint{
		{Day: day(t, "2025-06-15"), Value: 97},
		{Day: day(t, "2025-06-16"), Value: 500},
		{Day: day(t, "2025-06-22"), Value: 100},
		{Day: day(t, "2025-06-29"), Value: 103},
		{Day: day(t, "2025-07-06"), Value: 91},
	}
	def := dynDef("m")
	def.MinSeasonalPoints = 3

	b := EvaluateBaseline(def, series, day(t, "2025-07-06"), 90)
	if b.SeasonalPointsUsed != 3 {
		t.Fatalf("seasonal points = %d, want 3", b.SeasonalPointsUsed)
	}
	// Mean 100, sample std 3, today 91: z = -3.
	if !b.SeasonalZScore.Defined || !approx(b.SeasonalZScore.Value, -3) {
		t.Fatalf("seasonal z = %+v, want -3", b.SeasonalZScore)
	}
}

func TestBaselineSeasonalUndefinedOnZeroSpread(t *testing.T) {
	series := []models.HistoryPoint{
		{Day: day(t, "2025-06-22"), Value: 100},
		{Day: day(t, "2025-06-29"), Value: 100},
		{Day: day(t, "2025-07-06"), Value: 50},
	}
	def := dynDef("m")

	b := EvaluateBaseline(def, series, day(t, "2025-07-06"), 90)
	if b.SeasonalZScore.Defined {
		t.Fatalf("seasonal z should be undefined on zero spread, got %+v", b.SeasonalZScore)
	}
	if b.SeasonalPointsUsed != 2 {
		t.Fatalf("seasonal points = %d, want 2", b.SeasonalPointsUsed)
	}
}

func TestBaselinePctChangeAgainstPrecedingPoint(t *testing.T) {
	series := consecutive(t, "2025-07-01", 90, 100, 110, 60)
	def := dynDef("m")

	b := EvaluateBaseline(def, series, day(t, "2025-07-04"), 28)
	if !b.PctChange.Defined || !approx(b.PctChange.Value, (60.0-110.0)/110.0) {
		t.Fatalf("pct change = %+v, want -50/110", b.PctChange)
	}
}

func TestBaselinePctChangeUndefinedOnZeroPrior(t *testing.T) {
	series := consecutive(t, "2025-07-03", 0, 60)
	def := dynDef("m")

	b := EvaluateBaseline(def, series, day(t, "2025-07-04"), 28)
	if b.PctChange.Defined {
		t.Fatalf("pct change should be undefined with zero prior, got %+v", b.PctChange)
	}
}

func TestBaselineWeekdayExclusionFiltersBaselineOnly(t *testing.T) {
	// Mon 2025-06-30 .. Sun 2025-07-06: six 10s then 100 on the Sunday.
	series := consecutive(t, "2025-06-30", 10, 10, 10, 10, 10, 10, 100)
	def := dynDef("m")
	def.ExcludeWeekdays = []time.Weekday{time.Sunday}

	b := EvaluateBaseline(def, series, day(t, "2025-07-06"), 28)
	if !b.WeekdayFilterApplied {
		t.Fatalf("weekday filter should be recorded as applied")
	}
	// The Sunday value still faces the thresholds.
	if !b.TodayValue.Defined || b.TodayValue.Value != 100 {
		t.Fatalf("today = %+v, want 100", b.TodayValue)
	}
	// Stats come from the six non-Sunday 10s only.
	if b.RollingPointsUsed != 6 {
		t.Fatalf("rolling points = %d, want 6", b.RollingPointsUsed)
	}
	if !approx(b.LowerThreshold.Value, 10) || !approx(b.UpperThreshold.Value, 10) {
		t.Fatalf("bounds = %+v / %+v, want 10 / 10", b.LowerThreshold, b.UpperThreshold)
	}
	// Prior Sundays are excluded, so the seasonal set is empty.
	if b.SeasonalPointsUsed != 0 || b.SeasonalZScore.Defined {
		t.Fatalf("seasonal stats should be empty, got %d points %+v", b.SeasonalPointsUsed, b.SeasonalZScore)
	}
	// The percent-change prior is the Saturday, not the excluded Sunday.
	if !b.PctChange.Defined || !approx(b.PctChange.Value, 9) {
		t.Fatalf("pct change = %+v, want 9", b.PctChange)
	}
}

func TestBaselineTodayMissing(t *testing.T) {
	series := consecutive(t, "2025-07-01", 90, 100, 110)
	def := dynDef("m")

	b := EvaluateBaseline(def, series, day(t, "2025-07-05"), 28)
	if b.TodayValue.Defined {
		t.Fatalf("today should be undefined, got %+v", b.TodayValue)
	}
	if b.SeasonalZScore.Defined || b.PctChange.Defined {
		t.Fatalf("derived stats need a reference value: z=%+v pct=%+v", b.SeasonalZScore, b.PctChange)
	}
	if !b.LowerThreshold.Defined {
		t.Fatalf("bounds do not need the reference value, got %+v", b.LowerThreshold)
	}
}

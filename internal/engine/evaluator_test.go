package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/loonielabs/kpi-sentinel/internal/models"
	"github.com/loonielabs/kpi-sentinel/internal/utils"
)

func TestEvaluateMetricAcceptCountExample(t *testing.T) {
	// 30 days cycling 90,100,110: mean 100, sample std ~8.3, so the lower
	// bound sits near 83. A reference-day value of 60 breaches it.
	values := make([]float64, 0, 31)
	for i := 0; i < 10; i++ {
		values = append(values, 90, 100, 110)
	}
	values = append(values, 60)
	series := consecutive(t, "2025-06-06", values...)
	asOf := day(t, "2025-07-06")

	def := dynDef("accept_count")
	def.MinSeasonalPoints = 2

	ev := NewEvaluator([]int{1, 7}, 30)
	rows, err := ev.EvaluateMetric(def, series, asOf, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("EvaluateMetric failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected one row per window, got %d", len(rows))
	}

	row := rows[1]
	if row.WindowDays != 7 {
		t.Fatalf("window = %d, want 7", row.WindowDays)
	}
	// Low breach on the daily value plus a seasonal outlier: Red.
	if got := row.SignalsString(); got != "L|Z" && got != "L|Z|P" {
		t.Fatalf("signals = %q, want L and Z fired", got)
	}
	if row.Status != models.StatusRed {
		t.Fatalf("status = %s, want Red", row.Status)
	}
	// The 7-day count window still sums raw daily values.
	want := 110.0 + 90 + 100 + 110 + 90 + 100 + 60
	if !row.Value.Defined || row.Value.Value != want {
		t.Fatalf("window value = %+v, want %v", row.Value, want)
	}
}

func TestEvaluateMetricDeterministic(t *testing.T) {
	series := consecutive(t, "2025-06-06", 90, 100, 110, 90, 100, 110, 90, 100, 110, 60)
	def := dynDef("m")
	refreshed := day(t, "2025-07-01")
	ev := NewEvaluator([]int{1, 7, 30}, 28)

	first, err := ev.EvaluateMetric(def, series, day(t, "2025-06-15"), refreshed)
	if err != nil {
		t.Fatalf("first evaluation failed: %v", err)
	}
	second, err := ev.EvaluateMetric(def, series, day(t, "2025-06-15"), refreshed)
	if err != nil {
		t.Fatalf("second evaluation failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-evaluation diverged:\n%v\n%v", first, second)
	}
}

func TestEvaluateMetricStaticBoundsOverride(t *testing.T) {
	series := consecutive(t, "2025-07-01", 100, 100, 100, 100, 40)
	def := dynDef("m")
	def.Mode = models.ModeStatic
	def.Direction = models.DirectionLowerOnly
	def.Static = models.StaticBounds{Lower: models.DefinedStat(50)}

	ev := NewEvaluator([]int{1}, 28)
	rows, err := ev.EvaluateMetric(def, series, day(t, "2025-07-05"), time.Time{})
	if err != nil {
		t.Fatalf("EvaluateMetric failed: %v", err)
	}
	row := rows[0]
	if !row.LowerThreshold.Defined || row.LowerThreshold.Value != 50 {
		t.Fatalf("lower = %+v, want fixed 50", row.LowerThreshold)
	}
	if row.UpperThreshold.Defined {
		t.Fatalf("upper should stay undefined, got %+v", row.UpperThreshold)
	}
	if row.Status != models.StatusRed {
		t.Fatalf("status = %s, want Red on fixed-bound breach", row.Status)
	}
}

func TestEvaluateMetricEmptyWindowIsUnknown(t *testing.T) {
	series := consecutive(t, "2025-05-01", 100, 100, 100)
	def := dynDef("m")

	ev := NewEvaluator([]int{7}, 28)
	rows, err := ev.EvaluateMetric(def, series, day(t, "2025-07-06"), time.Time{})
	if err != nil {
		t.Fatalf("EvaluateMetric failed: %v", err)
	}
	if rows[0].Value.Defined {
		t.Fatalf("window value should be undefined, got %+v", rows[0].Value)
	}
	if rows[0].Status != models.StatusUnknown {
		t.Fatalf("status = %s, want Unknown", rows[0].Status)
	}
}

func TestEvaluateMetricRejectsInvalidDefinition(t *testing.T) {
	def := dynDef("m")
	def.ValueType = "velocity"

	ev := NewEvaluator([]int{7}, 28)
	_, err := ev.EvaluateMetric(def, nil, day(t, "2025-07-06"), time.Time{})
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	var ee *utils.EvalError
	if !errors.As(err, &ee) || ee.Metric != "m" {
		t.Fatalf("expected EvalError for metric m, got %v", err)
	}
}

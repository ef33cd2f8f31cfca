package engine

import (
	"time"

	"github.com/loonielabs/kpi-sentinel/internal/models"
	"github.com/loonielabs/kpi-sentinel/internal/utils"
)

// Evaluator derives serving rows from raw history. It holds run-level
// parameters only; per-metric state never crosses an evaluation call, so one
// Evaluator may serve concurrent metric evaluations.
type Evaluator struct {
	windows       []int
	rollingWindow int
}

// NewEvaluator returns an evaluator producing one row per configured window.
func NewEvaluator(windows []int, rollingWindow int) *Evaluator {
	return &Evaluator{windows: windows, rollingWindow: rollingWindow}
}

// EvaluateMetric produces the serving rows for one metric at asOf.
//
// The baseline and decision are computed once from the raw daily series and
// shared across windows; only the reported aggregate differs per window. A
// window with no data present keeps its row but reports an undefined value
// and Unknown status. refreshedAt stamps every row so reruns over unchanged
// history stay byte-identical when the caller pins it.
func (e *Evaluator) EvaluateMetric(def models.MetricDefinition, series []models.HistoryPoint, asOf, refreshedAt time.Time) ([]models.ServingRow, error) {
	if err := def.Validate(); err != nil {
		return nil, utils.NewEvalError("evaluate", def.Key, err)
	}
	asOf = utils.Day(asOf)

	baseline := EvaluateBaseline(def, series, asOf, e.rollingWindow)
	if def.Mode == models.ModeStatic && (def.Static.Lower.Defined || def.Static.Upper.Defined) {
		// Fixed bounds replace the rolling pair wholesale; a side left
		// unset stays undefined rather than borrowing a rolling bound.
		baseline.LowerThreshold = def.Static.Lower
		baseline.UpperThreshold = def.Static.Upper
	}
	decision := Decide(def, baseline)

	rows := make([]models.ServingRow, 0, len(e.windows))
	for _, windowDays := range e.windows {
		agg := AggregateWindow(series, asOf, windowDays, def.ValueType)

		row := models.ServingRow{
			MetricKey:            def.Key,
			Label:                def.Label,
			Section:              def.Section,
			WindowDays:           windowDays,
			AsOfDate:             asOf,
			Value:                agg.Value,
			LowerThreshold:       baseline.LowerThreshold,
			UpperThreshold:       baseline.UpperThreshold,
			SeasonalZScore:       baseline.SeasonalZScore,
			PctChange:            baseline.PctChange,
			Signals:              decision.Signals,
			SignalCount:          decision.SignalCount,
			RollingPointsUsed:    baseline.RollingPointsUsed,
			SeasonalPointsUsed:   baseline.SeasonalPointsUsed,
			WeekdayFilterApplied: baseline.WeekdayFilterApplied,
			Status:               decision.Status,
			RefreshedAt:          refreshedAt,
		}
		if !agg.Value.Defined {
			row.Status = models.StatusUnknown
		}
		rows = append(rows, row)
	}
	return rows, nil
}

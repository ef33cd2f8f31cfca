package engine

import (
	"math"
	"time"

	"github.com/loonielabs/kpi-sentinel/internal/models"
	"github.com/loonielabs/kpi-sentinel/internal/utils"
)

// Baseline is the statistical context for one metric at a reference day.
// All statistics are computed on the raw daily series; the reported window
// value never feeds back into its own bounds.
type Baseline struct {
	// TodayValue is the raw daily value recorded for the reference day itself,
	// taken from the unfiltered series.
	TodayValue models.Stat

	LowerThreshold models.Stat
	UpperThreshold models.Stat
	SeasonalZScore models.Stat
	PctChange      models.Stat

	RollingPointsUsed    int
	SeasonalPointsUsed   int
	WeekdayFilterApplied bool
}

// EvaluateBaseline derives rolling bounds, the same-weekday seasonal z-score
// and the day-over-day percent change for a metric at asOf.
//
// Weekday exclusion applies to the comparison baselines only: the rolling
// set, the seasonal set and the percent-change prior come from the filtered
// series, while the reference day's own value is read from the raw series.
// defaultRollingWindow is used when the definition carries no override.
func EvaluateBaseline(def models.MetricDefinition, series []models.HistoryPoint, asOf time.Time, defaultRollingWindow int) Baseline {
	asOf = utils.Day(asOf)

	var b Baseline
	for _, p := range series {
		if utils.Day(p.Day).Equal(asOf) {
			b.TodayValue = models.DefinedStat(p.Value)
			break
		}
	}

	filtered := make([]models.HistoryPoint, 0, len(series))
	for _, p := range series {
		if def.WeekdayExcluded(p.Day.Weekday()) {
			b.WeekdayFilterApplied = true
			continue
		}
		filtered = append(filtered, p)
	}

	rollingWindow := defaultRollingWindow
	if def.RollingWindow > 0 {
		rollingWindow = def.RollingWindow
	}

	b.rollingBounds(def, filtered, asOf, rollingWindow)
	b.seasonalZ(def, filtered, asOf)
	b.pctChange(filtered, asOf)
	return b
}

// rollingBounds computes mean +/- k*std over the lookback ending the day
// before asOf. The reference day never influences its own bound.
func (b *Baseline) rollingBounds(def models.MetricDefinition, filtered []models.HistoryPoint, asOf time.Time, rollingWindow int) {
	start := asOf.AddDate(0, 0, -rollingWindow)
	var values []float64
	for _, p := range filtered {
		d := utils.Day(p.Day)
		if d.Before(start) || !d.Before(asOf) {
			continue
		}
		values = append(values, p.Value)
	}
	b.RollingPointsUsed = len(values)

	if len(values) < minPoints(def.MinRollingPoints) {
		return
	}
	mean, std := meanStd(values)
	b.LowerThreshold = models.DefinedStat(mean - def.K*std)
	b.UpperThreshold = models.DefinedStat(mean + def.K*std)
}

// seasonalZ compares the reference day against all prior points sharing its
// weekday. Undefined when the seasonal spread is zero, when too few points
// qualify, or when the reference day itself has no value.
func (b *Baseline) seasonalZ(def models.MetricDefinition, filtered []models.HistoryPoint, asOf time.Time) {
	weekday := asOf.Weekday()
	var values []float64
	for _, p := range filtered {
		d := utils.Day(p.Day)
		if !d.Before(asOf) || d.Weekday() != weekday {
			continue
		}
		values = append(values, p.Value)
	}
	b.SeasonalPointsUsed = len(values)

	if !b.TodayValue.Defined || len(values) < minPoints(def.MinSeasonalPoints) {
		return
	}
	mean, std := meanStd(values)
	if std == 0 {
		return
	}
	b.SeasonalZScore = models.DefinedStat((b.TodayValue.Value - mean) / std)
}

// pctChange compares the reference day against the immediately preceding
// point of the filtered series. Undefined when the prior is zero or absent.
func (b *Baseline) pctChange(filtered []models.HistoryPoint, asOf time.Time) {
	var (
		prior    float64
		hasPrior bool
	)
	for _, p := range filtered {
		if utils.Day(p.Day).Before(asOf) {
			prior = p.Value
			hasPrior = true
		}
	}
	if !hasPrior || prior == 0 || !b.TodayValue.Defined {
		return
	}
	b.PctChange = models.DefinedStat((b.TodayValue.Value - prior) / math.Abs(prior))
}

// minPoints floors a configured minimum at the two points a sample standard
// deviation needs.
func minPoints(configured int) int {
	if configured < 2 {
		return 2
	}
	return configured
}

// meanStd returns the arithmetic mean and sample standard deviation.
// Callers guarantee at least two values.
func meanStd(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)
	return mean, math.Sqrt(variance)
}

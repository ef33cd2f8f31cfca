package engine

import (
	"math"

	"github.com/loonielabs/kpi-sentinel/internal/models"
)

// Decision is the signal and status outcome for one metric at one reference day.
type Decision struct {
	Signals     []models.SignalCode
	SignalCount int
	Status      models.Status
}

// Decide fires signals against the baseline and maps them onto a status.
//
// A signal is evaluated only when every input it needs is defined; an
// undefined statistic can never fire. Bound comparisons are inclusive, so a
// zero-spread baseline where the value sits exactly on the mean raises
// neither L nor U. Status is Unknown when the reference day's value is
// missing or when a bound the metric's direction and signal set require is
// undefined.
func Decide(def models.MetricDefinition, b Baseline) Decision {
	var d Decision

	fired := map[models.SignalCode]bool{}
	if b.TodayValue.Defined {
		v := b.TodayValue.Value
		if b.LowerThreshold.Defined && v <= b.LowerThreshold.Value {
			fired[models.SignalBreachLow] = true
		}
		if b.UpperThreshold.Defined && v >= b.UpperThreshold.Value {
			fired[models.SignalBreachHigh] = true
		}
		// Zero spread puts both bounds on the mean; a value sitting exactly
		// there deviates in neither direction.
		if fired[models.SignalBreachLow] && fired[models.SignalBreachHigh] &&
			b.LowerThreshold.Value == b.UpperThreshold.Value && v == b.LowerThreshold.Value {
			delete(fired, models.SignalBreachLow)
			delete(fired, models.SignalBreachHigh)
		}
	}
	if b.SeasonalZScore.Defined && math.Abs(b.SeasonalZScore.Value) >= def.ZScoreLimit {
		fired[models.SignalSeasonalOutlier] = true
	}
	if b.PctChange.Defined && math.Abs(b.PctChange.Value) >= def.PercentDrop {
		fired[models.SignalPercentSwing] = true
	}

	for _, code := range models.SignalOrder {
		if !fired[code] || !def.SignalEnabled(code) || !def.Direction.Allows(code) {
			continue
		}
		d.Signals = append(d.Signals, code)
	}
	d.SignalCount = len(d.Signals)
	d.Status = status(def, b, d)
	return d
}

func status(def models.MetricDefinition, b Baseline, d Decision) models.Status {
	needLower := def.SignalEnabled(models.SignalBreachLow) && def.Direction.Allows(models.SignalBreachLow)
	needUpper := def.SignalEnabled(models.SignalBreachHigh) && def.Direction.Allows(models.SignalBreachHigh)

	switch {
	case !b.TodayValue.Defined:
		return models.StatusUnknown
	case needLower && !b.LowerThreshold.Defined:
		return models.StatusUnknown
	case needUpper && !b.UpperThreshold.Defined:
		return models.StatusUnknown
	}

	if def.Mode == models.ModeStatic {
		// Static mode is binary: a bound breach is Red, anything else Green.
		for _, code := range d.Signals {
			if code == models.SignalBreachLow || code == models.SignalBreachHigh {
				return models.StatusRed
			}
		}
		return models.StatusGreen
	}

	switch {
	case d.SignalCount >= def.Policy.RedAt:
		return models.StatusRed
	case d.SignalCount >= def.Policy.YellowAt:
		return models.StatusYellow
	}
	return models.StatusGreen
}

// Package engine turns raw daily KPI history into signal and status
// decisions per trailing window.
package engine

import (
	"time"

	"github.com/loonielabs/kpi-sentinel/internal/models"
	"github.com/loonielabs/kpi-sentinel/internal/utils"
)

// WindowAggregate is the reported value for one trailing window.
type WindowAggregate struct {
	Value      models.Stat
	PointsUsed int
}

// AggregateWindow computes the reported value over the trailing windowDays
// ending at asOf, inclusive. Count metrics sum their daily values; every
// other value type averages over the days actually present. Missing days
// reduce PointsUsed; with zero points the value is undefined.
func AggregateWindow(series []models.HistoryPoint, asOf time.Time, windowDays int, valueType models.ValueType) WindowAggregate {
	asOf = utils.Day(asOf)
	start := asOf.AddDate(0, 0, -(windowDays - 1))

	var (
		sum    float64
		points int
	)
	for _, p := range series {
		d := utils.Day(p.Day)
		if d.Before(start) || d.After(asOf) {
			continue
		}
		sum += p.Value
		points++
	}

	if points == 0 {
		return WindowAggregate{Value: models.UndefinedStat()}
	}
	if valueType.SumsOverWindow() {
		return WindowAggregate{Value: models.DefinedStat(sum), PointsUsed: points}
	}
	return WindowAggregate{Value: models.DefinedStat(sum / float64(points)), PointsUsed: points}
}

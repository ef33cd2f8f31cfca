// Package serving publishes the evaluation result set as an atomically
// replaced snapshot for the presentation layer.
package serving

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/loonielabs/kpi-sentinel/internal/models"
	"github.com/loonielabs/kpi-sentinel/internal/utils"
)

// NA marks an undefined statistic. Downstream must never read it as zero.
const NA = "NA"

// Header is the snapshot column set. New KPIs append rows, never columns.
var Header = []string{
	"metric_key", "label", "section",
	"value", "window_days", "as_of_date",
	"lower_threshold", "upper_threshold", "seasonal_zscore", "pct_change",
	"signal_count", "signals",
	"rolling_points_used", "seasonal_points_used", "weekday_filter_applied",
	"status", "refreshed_at",
}

// Writer publishes serving snapshots to a fixed path.
type Writer struct {
	path string
}

// NewWriter returns a writer publishing to path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path reports the publish destination.
func (w *Writer) Path() string {
	return w.path
}

// Publish writes the full row set and swaps it into place. The snapshot is
// built in a temp file and renamed over the destination, so a concurrent
// reader sees either the previous generation or the new one, never a mix.
// Rows are sorted before writing; unchanged inputs produce identical bytes.
func (w *Writer) Publish(rows []models.ServingRow) error {
	sorted := append([]models.ServingRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.MetricKey != b.MetricKey {
			return a.MetricKey < b.MetricKey
		}
		return a.WindowDays < b.WindowDays
	})

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.Write(Header); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot header: %w", err)
	}
	for _, row := range sorted {
		if err := cw.Write(record(row)); err != nil {
			tmp.Close()
			return fmt.Errorf("write snapshot row %s/%d: %w", row.MetricKey, row.WindowDays, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("swap snapshot into place: %w", err)
	}
	return nil
}

func record(row models.ServingRow) []string {
	return []string{
		row.MetricKey,
		row.Label,
		row.Section,
		stat(row.Value),
		strconv.Itoa(row.WindowDays),
		utils.FormatDay(row.AsOfDate),
		stat(row.LowerThreshold),
		stat(row.UpperThreshold),
		stat(row.SeasonalZScore),
		stat(row.PctChange),
		strconv.Itoa(row.SignalCount),
		row.SignalsString(),
		strconv.Itoa(row.RollingPointsUsed),
		strconv.Itoa(row.SeasonalPointsUsed),
		strconv.FormatBool(row.WeekdayFilterApplied),
		string(row.Status),
		row.RefreshedAt.UTC().Format(time.RFC3339),
	}
}

func stat(s models.Stat) string {
	if !s.Defined {
		return NA
	}
	return strconv.FormatFloat(s.Value, 'g', -1, 64)
}

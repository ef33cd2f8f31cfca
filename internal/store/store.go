// Package store persists daily KPI history in SQLite and moves expired
// rows into monthly archive partitions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loonielabs/kpi-sentinel/internal/models"
	"github.com/loonielabs/kpi-sentinel/internal/utils"
)

// ErrNonFinite is returned when a write carries NaN or an infinity.
var ErrNonFinite = errors.New("non-finite value")

const schema = `
CREATE TABLE IF NOT EXISTS history (
	metric_key TEXT NOT NULL,
	day        TEXT NOT NULL,
	value      REAL NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (metric_key, day)
);

CREATE INDEX IF NOT EXISTS idx_history_day ON history(day);

CREATE TABLE IF NOT EXISTS history_archive (
	month_partition TEXT NOT NULL,
	metric_key TEXT NOT NULL,
	day        TEXT NOT NULL,
	value      REAL NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (month_partition, metric_key, day)
);
`

// Store is a single-writer handle over the history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	// Pragmas ride the DSN so every pool connection is configured.
	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(ON)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// SQLite allows one writer; a larger pool only produces busy errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes facts into history. A later write for the same metric and day
// replaces the earlier value. Facts carrying non-finite values are rejected
// before anything is written.
func (s *Store) Upsert(ctx context.Context, facts []models.Fact) error {
	for _, f := range facts {
		if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
			return fmt.Errorf("metric %s day %s: %w", f.MetricKey, utils.FormatDay(f.Day), ErrNonFinite)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history (metric_key, day, value, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (metric_key, day) DO UPDATE SET
			value = excluded.value,
			source = excluded.source`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, f := range facts {
		if _, err := stmt.ExecContext(ctx, f.MetricKey, utils.FormatDay(f.Day), f.Value, f.Source); err != nil {
			return fmt.Errorf("upsert %s %s: %w", f.MetricKey, utils.FormatDay(f.Day), err)
		}
	}
	return tx.Commit()
}

// ReadSeries returns the daily points for a metric with from <= day <= to,
// in ascending day order. Days with no row are simply absent.
func (s *Store) ReadSeries(ctx context.Context, metricKey string, from, to time.Time) ([]models.HistoryPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, value FROM history
		WHERE metric_key = ? AND day >= ? AND day <= ?
		ORDER BY day ASC`,
		metricKey, utils.FormatDay(from), utils.FormatDay(to))
	if err != nil {
		return nil, fmt.Errorf("read series %s: %w", metricKey, err)
	}
	defer rows.Close()

	var points []models.HistoryPoint
	for rows.Next() {
		var (
			day   string
			value float64
		)
		if err := rows.Scan(&day, &value); err != nil {
			return nil, fmt.Errorf("scan series %s: %w", metricKey, err)
		}
		d, err := utils.ParseDay(day)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", metricKey, err)
		}
		points = append(points, models.HistoryPoint{Day: d, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read series %s: %w", metricKey, err)
	}
	return points, nil
}

// Retain moves every history row strictly older than cutoff into
// history_archive, partitioned by the row's calendar month. The move is
// transactional: rows are archived and deleted together or not at all.
// It returns the number of rows moved.
func (s *Store) Retain(ctx context.Context, cutoff time.Time) (int, error) {
	cut := utils.FormatDay(cutoff)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin retention: %w", err)
	}
	defer tx.Rollback()

	// Day is ISO formatted, so substr(day,1,7) is the calendar month and a
	// simple replace yields the partition label.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO history_archive (month_partition, metric_key, day, value, source)
		SELECT replace(substr(day, 1, 7), '-', '_'), metric_key, day, value, source
		FROM history
		WHERE day < ?
		ON CONFLICT (month_partition, metric_key, day) DO UPDATE SET
			value = excluded.value,
			source = excluded.source`, cut)
	if err != nil {
		return 0, fmt.Errorf("archive expired rows: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive expired rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE day < ?`, cut); err != nil {
		return 0, fmt.Errorf("delete expired rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit retention: %w", err)
	}
	return int(moved), nil
}

// ReadArchive returns archived points for a metric within one monthly
// partition (e.g. "2025_07"), in ascending day order.
func (s *Store) ReadArchive(ctx context.Context, metricKey, partition string) ([]models.HistoryPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, value FROM history_archive
		WHERE month_partition = ? AND metric_key = ?
		ORDER BY day ASC`, partition, metricKey)
	if err != nil {
		return nil, fmt.Errorf("read archive %s/%s: %w", partition, metricKey, err)
	}
	defer rows.Close()

	var points []models.HistoryPoint
	for rows.Next() {
		var (
			day   string
			value float64
		)
		if err := rows.Scan(&day, &value); err != nil {
			return nil, fmt.Errorf("scan archive %s/%s: %w", partition, metricKey, err)
		}
		d, err := utils.ParseDay(day)
		if err != nil {
			return nil, fmt.Errorf("archive %s/%s: %w", partition, metricKey, err)
		}
		points = append(points, models.HistoryPoint{Day: d, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read archive %s/%s: %w", partition, metricKey, err)
	}
	return points, nil
}

// Partitions lists the distinct archive partitions for a metric, ascending.
func (s *Store) Partitions(ctx context.Context, metricKey string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT month_partition FROM history_archive
		WHERE metric_key = ?
		ORDER BY month_partition ASC`, metricKey)
	if err != nil {
		return nil, fmt.Errorf("list partitions %s: %w", metricKey, err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan partition %s: %w", metricKey, err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list partitions %s: %w", metricKey, err)
	}
	return parts, nil
}

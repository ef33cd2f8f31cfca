// Package runner orchestrates one evaluation pass: ingest facts, evaluate
// every metric, publish the serving snapshot, then apply retention.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/loonielabs/kpi-sentinel/internal/engine"
	"github.com/loonielabs/kpi-sentinel/internal/metrics"
	"github.com/loonielabs/kpi-sentinel/internal/models"
	"github.com/loonielabs/kpi-sentinel/internal/utils"
)

// Source supplies daily facts from the measurement feed.
type Source interface {
	Facts(ctx context.Context) ([]models.Fact, int, error)
}

// HistoryStore persists raw daily history and serves it back for evaluation.
type HistoryStore interface {
	Upsert(ctx context.Context, facts []models.Fact) error
	ReadSeries(ctx context.Context, metricKey string, from, to time.Time) ([]models.HistoryPoint, error)
	Retain(ctx context.Context, cutoff time.Time) (int, error)
}

// Snapshot publishes a full serving row set atomically.
type Snapshot interface {
	Publish(rows []models.ServingRow) error
}

// Options tunes a Runner.
type Options struct {
	Parallelism   int
	RetentionDays int
	// RetainAfterEvaluation applies retention after the snapshot is
	// published, so evaluation always sees the full retained history.
	RetainAfterEvaluation bool
}

// Runner executes evaluation passes. Metrics are independent, so they are
// evaluated concurrently; a per-metric failure is collected, never fatal.
type Runner struct {
	logger    *slog.Logger
	store     HistoryStore
	source    Source
	snapshot  Snapshot
	evaluator *engine.Evaluator
	opts      Options

	// now stamps serving rows; injectable so reruns stay byte-identical.
	now func() time.Time
}

// New constructs a Runner.
func New(logger *slog.Logger, store HistoryStore, source Source, snapshot Snapshot, evaluator *engine.Evaluator, opts Options) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Runner{
		logger:    logger,
		store:     store,
		source:    source,
		snapshot:  snapshot,
		evaluator: evaluator,
		opts:      opts,
		now:       time.Now,
	}
}

// SetClock overrides the row timestamp source.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// MetricFailure records one metric dropped from a run.
type MetricFailure struct {
	Key string
	Err error
}

// Summary is the end-of-run report.
type Summary struct {
	RunID uuid.UUID
	AsOf  time.Time

	FactsIngested int
	FactsDropped  int

	MetricsEvaluated int
	MetricsSkipped   int
	RowsPublished    int
	RowsArchived     int

	Failures []MetricFailure
	Duration time.Duration
}

// Run executes one pass over defs at asOf. It returns the summary together
// with the first store-level failure, if any; per-metric failures live in
// the summary only. On failure the previously published snapshot is left
// untouched.
func (r *Runner) Run(ctx context.Context, defs []models.MetricDefinition, asOf time.Time) (*Summary, error) {
	start := time.Now()
	asOf = utils.Day(asOf)
	summary := &Summary{RunID: uuid.New(), AsOf: asOf}
	log := r.logger.With(slog.String("run_id", summary.RunID.String()), slog.String("as_of", utils.FormatDay(asOf)))

	fail := func(err error) (*Summary, error) {
		summary.Duration = time.Since(start)
		metrics.ObserveRun(summary.Duration, metrics.OutcomeError)
		log.Error("run failed", slog.Any("error", err))
		return summary, err
	}

	known := make(map[string]bool, len(defs))
	for _, def := range defs {
		known[def.Key] = true
	}
	if err := r.ingest(ctx, summary, known, log); err != nil {
		return fail(err)
	}

	cutoff := asOf.AddDate(0, 0, -r.opts.RetentionDays)
	if !r.opts.RetainAfterEvaluation {
		moved, err := r.store.Retain(ctx, cutoff)
		if err != nil {
			return fail(fmt.Errorf("retention: %w", err))
		}
		summary.RowsArchived = moved
	}

	rows := r.evaluate(ctx, defs, asOf, summary, log)

	if err := r.snapshot.Publish(rows); err != nil {
		return fail(fmt.Errorf("publish snapshot: %w", err))
	}
	summary.RowsPublished = len(rows)
	for _, row := range rows {
		metrics.ObserveStatus(row.Status)
	}

	if r.opts.RetainAfterEvaluation {
		moved, err := r.store.Retain(ctx, cutoff)
		if err != nil {
			return fail(fmt.Errorf("retention: %w", err))
		}
		summary.RowsArchived = moved
	}

	summary.Duration = time.Since(start)
	metrics.ObserveRun(summary.Duration, metrics.OutcomeSuccess)
	log.Info("run complete",
		slog.Int("metrics_evaluated", summary.MetricsEvaluated),
		slog.Int("metrics_skipped", summary.MetricsSkipped),
		slog.Int("rows_published", summary.RowsPublished),
		slog.Int("rows_archived", summary.RowsArchived),
		slog.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (r *Runner) ingest(ctx context.Context, summary *Summary, known map[string]bool, log *slog.Logger) error {
	if r.source == nil {
		log.Info("no fact source configured, evaluating existing history")
		return nil
	}
	facts, dropped, err := r.source.Facts(ctx)
	if err != nil {
		return fmt.Errorf("read facts: %w", err)
	}

	kept := make([]models.Fact, 0, len(facts))
	unknown := 0
	for _, f := range facts {
		if !known[f.MetricKey] {
			unknown++
			continue
		}
		kept = append(kept, f)
	}
	if unknown > 0 {
		log.Warn("facts for unconfigured metrics skipped", slog.Int("count", unknown))
	}
	dropped += unknown

	if err := r.store.Upsert(ctx, kept); err != nil {
		return fmt.Errorf("persist facts: %w", err)
	}
	summary.FactsIngested = len(kept)
	summary.FactsDropped = dropped
	metrics.ObserveIngest(len(kept), dropped)
	return nil
}

// evaluate runs every metric, isolating per-metric failures. Row order is
// irrelevant here; the snapshot writer sorts before publishing.
func (r *Runner) evaluate(ctx context.Context, defs []models.MetricDefinition, asOf time.Time, summary *Summary, log *slog.Logger) []models.ServingRow {
	var (
		mu        sync.Mutex
		rows      []models.ServingRow
		durations = utils.NewDurationTracker()
	)
	refreshedAt := r.now().UTC()
	from := asOf.AddDate(0, 0, -r.opts.RetentionDays)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)
	for _, def := range defs {
		def := def
		g.Go(func() error {
			evalStart := time.Now()
			series, err := r.store.ReadSeries(gctx, def.Key, from, asOf)
			if err == nil {
				var metricRows []models.ServingRow
				metricRows, err = r.evaluator.EvaluateMetric(def, series, asOf, refreshedAt)
				if err == nil {
					mu.Lock()
					rows = append(rows, metricRows...)
					summary.MetricsEvaluated++
					mu.Unlock()
					durations.Observe(time.Since(evalStart))
					return nil
				}
			}

			mu.Lock()
			summary.MetricsSkipped++
			summary.Failures = append(summary.Failures, MetricFailure{Key: def.Key, Err: err})
			mu.Unlock()
			metrics.ObserveMetricSkipped()
			log.Warn("metric skipped", slog.String("metric", def.Key), slog.Any("error", err))
			return nil
		})
	}
	g.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool { return summary.Failures[i].Key < summary.Failures[j].Key })

	if durations.Count() > 0 {
		p50, p95, max := durations.Summary()
		log.Debug("evaluation latency",
			slog.Duration("p50", p50),
			slog.Duration("p95", p95),
			slog.Duration("max", max),
			slog.Int("samples", durations.Count()),
		)
	}
	return rows
}

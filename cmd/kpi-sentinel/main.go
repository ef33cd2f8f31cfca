package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loonielabs/kpi-sentinel/internal/config"
	"github.com/loonielabs/kpi-sentinel/internal/engine"
	"github.com/loonielabs/kpi-sentinel/internal/ingest"
	"github.com/loonielabs/kpi-sentinel/internal/metrics"
	"github.com/loonielabs/kpi-sentinel/internal/models"
	"github.com/loonielabs/kpi-sentinel/internal/runner"
	"github.com/loonielabs/kpi-sentinel/internal/serving"
	"github.com/loonielabs/kpi-sentinel/internal/store"
	"github.com/loonielabs/kpi-sentinel/internal/utils"
)

func main() {
	var (
		configPath string
		factsPath  string
		asOfFlag   string
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&factsPath, "facts", "", "Path to the daily facts feed (overrides config)")
	flag.StringVar(&asOfFlag, "as-of", "", "Evaluation reference day, YYYY-MM-DD (default: yesterday UTC)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}
	if factsPath != "" {
		cfg.Ingest.FactsPath = factsPath
	}

	asOf := utils.Day(time.Now().UTC().AddDate(0, 0, -1))
	if asOfFlag != "" {
		asOf, err = utils.ParseDay(asOfFlag)
		if err != nil {
			slog.Error("invalid -as-of day", slog.String("value", asOfFlag), slog.Any("error", err))
			os.Exit(1)
		}
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting kpi-sentinel", slog.String("as_of", utils.FormatDay(asOf)))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	defs, defErrs := cfg.BuildDefinitions()
	for _, derr := range defErrs {
		logger.Warn("metric definition rejected", slog.Any("error", derr))
	}
	if len(defs) == 0 {
		logger.Error("no usable metric definitions")
		os.Exit(1)
	}

	historyStore, err := store.Open(cfg.History.DBPath)
	if err != nil {
		logger.Error("failed to open history store", slog.Any("error", err))
		os.Exit(1)
	}
	defer historyStore.Close()

	run := runner.New(
		logger,
		historyStore,
		ingest.NewCSVSource(cfg.Ingest.FactsPath),
		serving.NewWriter(cfg.Run.ServingPath),
		engine.NewEvaluator(cfg.Run.Windows, cfg.Run.RollingWindow),
		runner.Options{
			Parallelism:           cfg.Run.Parallelism,
			RetentionDays:         cfg.History.RetentionDays,
			RetainAfterEvaluation: cfg.History.RetainAfterEvaluation,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Interval <= 0 {
		if !runOnce(ctx, run, defs, asOf) {
			os.Exit(1)
		}
		return
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	ticker := time.NewTicker(cfg.Server.Interval)
	defer ticker.Stop()

	runOnce(ctx, run, defs, asOf)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
				if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Warn("metrics server shutdown", slog.Any("error", err))
				}
				cancel()
			}
			logger.Info("kpi-sentinel stopped")
			return
		case <-ticker.C:
			// Scheduled passes re-anchor on the current day.
			runOnce(ctx, run, defs, utils.Day(time.Now().UTC().AddDate(0, 0, -1)))
		}
	}
}

// runOnce reports whether the pass published a snapshot. The runner logs
// per-metric skips itself; only the outcome matters here.
func runOnce(ctx context.Context, run *runner.Runner, defs []models.MetricDefinition, asOf time.Time) bool {
	_, err := run.Run(ctx, defs, asOf)
	return err == nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to run the evaluation engine.
type Config struct {
	Run     RunConfig      `yaml:"run"`
	Ingest  IngestConfig   `yaml:"ingest"`
	History HistoryConfig  `yaml:"history"`
	Server  ServerConfig   `yaml:"server"`
	Logging LoggingConfig  `yaml:"logging"`
	Metrics []MetricConfig `yaml:"metrics"`
}

// RunConfig controls one evaluation pass.
type RunConfig struct {
	// Windows are the trailing window lengths, in days, evaluated per metric.
	Windows []int `yaml:"windows"`
	// RollingWindow is the default lookback, in days, for rolling statistics.
	RollingWindow int    `yaml:"rollingWindow"`
	Parallelism   int    `yaml:"parallelism"`
	ServingPath   string `yaml:"servingPath"`
}

// IngestConfig locates the daily fact feed.
type IngestConfig struct {
	FactsPath string `yaml:"factsPath"`
}

// HistoryConfig controls the KPI history database and its retention.
type HistoryConfig struct {
	DBPath        string `yaml:"dbPath"`
	RetentionDays int    `yaml:"retentionDays"`
	// RetainAfterEvaluation moves expired rows to the archive only after the
	// serving snapshot has been published, so a run never evaluates against
	// a history it just truncated.
	RetainAfterEvaluation bool `yaml:"retainAfterEvaluation"`
}

// ServerConfig controls the optional long-running mode.
type ServerConfig struct {
	MetricsAddress string `yaml:"metricsAddress"`
	// Interval between evaluation passes; zero means run once and exit.
	Interval        time.Duration `yaml:"interval"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("KPI_SENTINEL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Run: RunConfig{
			Windows:       []int{1, 7, 30, 60},
			RollingWindow: 28,
			Parallelism:   4,
			ServingPath:   "data/serving/kpi_status.csv",
		},
		Ingest: IngestConfig{
			FactsPath: "data/facts/daily.csv",
		},
		History: HistoryConfig{
			DBPath:                "data/history.db",
			RetentionDays:         730,
			RetainAfterEvaluation: true,
		},
		Server: ServerConfig{
			MetricsAddress:  ":2112",
			Interval:        0,
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func (c *Config) validate() error {
	if len(c.Run.Windows) == 0 {
		return fmt.Errorf("run.windows must name at least one window")
	}
	for _, w := range c.Run.Windows {
		if w <= 0 {
			return fmt.Errorf("run.windows contains non-positive window %d", w)
		}
	}
	if c.Run.RollingWindow <= 0 {
		return fmt.Errorf("run.rollingWindow must be positive, got %d", c.Run.RollingWindow)
	}
	if c.Run.Parallelism <= 0 {
		return fmt.Errorf("run.parallelism must be positive, got %d", c.Run.Parallelism)
	}
	if c.Run.ServingPath == "" {
		return fmt.Errorf("run.servingPath is empty")
	}
	if c.History.DBPath == "" {
		return fmt.Errorf("history.dbPath is empty")
	}
	if c.History.RetentionDays <= 0 {
		return fmt.Errorf("history.retentionDays must be positive, got %d", c.History.RetentionDays)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KPI_SENTINEL_FACTS_PATH"); v != "" {
		cfg.Ingest.FactsPath = v
	}
	if v := os.Getenv("KPI_SENTINEL_SERVING_PATH"); v != "" {
		cfg.Run.ServingPath = v
	}
	if v := os.Getenv("KPI_SENTINEL_DB_PATH"); v != "" {
		cfg.History.DBPath = v
	}
	if v := os.Getenv("KPI_SENTINEL_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.History.RetentionDays = days
		}
	}
	if v := os.Getenv("KPI_SENTINEL_ROLLING_WINDOW"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Run.RollingWindow = days
		}
	}
	if v := os.Getenv("KPI_SENTINEL_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Run.Parallelism = n
		}
	}
	if v := os.Getenv("KPI_SENTINEL_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("KPI_SENTINEL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.Interval = d
		}
	}
	if v := os.Getenv("KPI_SENTINEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KPI_SENTINEL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("KPI_SENTINEL_RETAIN_AFTER_EVAL"); v != "" {
		cfg.History.RetainAfterEvaluation = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
}

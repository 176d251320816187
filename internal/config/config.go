// Package config loads runtime settings from LEDGER_* environment variables
// and an optional YAML file. Values from the file override the environment;
// command-line flags override both and are applied by the commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "LEDGER"

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendBigQuery = "bigquery"
)

// Config is the complete runtime configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Harvest HarvestConfig `yaml:"harvest" envconfig:"HARVEST"`
	Store   StoreConfig   `yaml:"store" envconfig:"STORE"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Publish PublishConfig `yaml:"publish" envconfig:"PUBLISH"`
	Export  ExportConfig  `yaml:"export" envconfig:"EXPORT"`
	Worker  WorkerConfig  `yaml:"worker" envconfig:"WORKER"`
}

// PathsConfig holds the per-report directory roots.
type PathsConfig struct {
	OutputDir   string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"output"`
	LogsDir     string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
	DatabaseDir string `yaml:"database_dir" envconfig:"DATABASE_DIR" default:"database"`
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// HarvestConfig controls page discovery and the worker pool.
type HarvestConfig struct {
	// Workers defaults to the number of CPUs when zero.
	Workers int `yaml:"workers" envconfig:"WORKERS" default:"0"`
}

// StoreConfig selects and configures the relational store.
type StoreConfig struct {
	Backend       string `yaml:"backend" envconfig:"BACKEND" default:"sqlite"`
	PostgresDSN   string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	BigQueryProj  string `yaml:"bigquery_project" envconfig:"BIGQUERY_PROJECT"`
	DatasetPrefix string `yaml:"dataset_prefix" envconfig:"DATASET_PREFIX" default:"ledger"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"console"`
}

// PublishConfig holds the optional GCS destination for report artifacts.
type PublishConfig struct {
	Bucket string `yaml:"bucket" envconfig:"BUCKET"`
	Prefix string `yaml:"prefix" envconfig:"PREFIX" default:"reports"`
}

// ExportConfig toggles the spreadsheet export written next to the CSV outputs.
type ExportConfig struct {
	Workbook bool `yaml:"workbook" envconfig:"WORKBOOK" default:"false"`
}

// WorkerConfig sizes the batch worker.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" envconfig:"CONCURRENCY" default:"2"`
	QueueSize   int `yaml:"queue_size" envconfig:"QUEUE_SIZE" default:"100"`
}

// Load reads the environment, then the YAML file at path when it exists.
// An empty path falls back to $LEDGER_CONFIG.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: load from env: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// mergeFile decodes the YAML file on top of cfg. Keys absent from the file
// keep their environment values.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Harvest.Workers <= 0 {
		c.Harvest.Workers = runtime.NumCPU()
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.QueueSize <= 0 {
		c.Worker.QueueSize = 1
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
}

// Validate checks backend-specific requirements.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Paths.DatabaseDir == "" {
			return fmt.Errorf("database_dir is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is required for the postgres backend")
		}
	case BackendBigQuery:
		if c.Store.BigQueryProj == "" {
			return fmt.Errorf("bigquery_project is required for the bigquery backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Paths.OutputDir == "" || c.Paths.LogsDir == "" {
		return fmt.Errorf("output_dir and logs_dir are required")
	}
	return nil
}

// ReportDirs returns the output, intermediate and database directories of a report.
func (c *Config) ReportDirs(report string) (output, logs, database string) {
	return filepath.Join(c.Paths.OutputDir, report),
		filepath.Join(c.Paths.LogsDir, report),
		filepath.Join(c.Paths.DatabaseDir, report)
}

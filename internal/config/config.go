// Package config provides configuration for the lakestage binary.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "LAKESTAGE_"

// Config holds the configuration shared by every lakestage run.
// Per-run parameters (partition key, source key, execution id) come from
// command flags, not from this file.
type Config struct {
	// DataDir is the base directory for local state
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Catalog configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Results store configuration (DQ results, lineage, token store)
	Results ResultsConfig `json:"results" yaml:"results"`

	// Artifacts configuration
	Artifacts ArtifactsConfig `json:"artifacts" yaml:"artifacts"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Purge configuration
	Purge PurgeConfig `json:"purge" yaml:"purge"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing, needed by most S3-compatible servers
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// CatalogConfig holds catalog configuration.
type CatalogConfig struct {
	// Path is the SQLite catalog file
	Path string `json:"path" yaml:"path"`
}

// ResultsConfig holds results store configuration.
type ResultsConfig struct {
	// Driver is sqlite3 or postgres
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the data source name passed to database/sql
	DSN string `json:"dsn" yaml:"dsn"`

	// DQTable receives one row per evaluated quality rule
	DQTable string `json:"dq_table" yaml:"dq_table"`

	// TokenTable receives tokenize transform output
	TokenTable string `json:"token_table" yaml:"token_table"`
}

// ArtifactsConfig holds object key prefixes for operator-maintained artifacts.
type ArtifactsConfig struct {
	// SpecPrefix is the default location of mapping and transformation specs
	SpecPrefix string `json:"spec_prefix" yaml:"spec_prefix"`

	// DQRulesPrefix is the location of quality rule files
	DQRulesPrefix string `json:"dq_rules_prefix" yaml:"dq_rules_prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// PushgatewayURL enables metrics push when set
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`

	// JobName is the Pushgateway job label
	JobName string `json:"job_name" yaml:"job_name"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// PurgeConfig holds partition purge configuration.
type PurgeConfig struct {
	// Concurrency is the number of parallel object deletes
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/lakestage",
		Storage: StorageConfig{
			Type: "local",
		},
		Results: ResultsConfig{
			Driver:     "sqlite3",
			DQTable:    "dq_results",
			TokenTable: "token_store",
		},
		Artifacts: ArtifactsConfig{
			SpecPrefix:    "etl/transformation-spec",
			DQRulesPrefix: "etl/dq-rules",
		},
		Metrics: MetricsConfig{
			JobName: "lakestage",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Purge: PurgeConfig{
			Concurrency: 8,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/lakestage"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = filepath.Join(c.DataDir, "catalog.db")
	}
	if c.Results.DSN == "" && c.Results.Driver == "sqlite3" {
		c.Results.DSN = filepath.Join(c.DataDir, "results.db")
	}
	if c.Purge.Concurrency <= 0 {
		c.Purge.Concurrency = 8
	}
}

// Validate validates the configuration and reports every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.DataDir == "" {
		result = multierror.Append(result, fmt.Errorf("data_dir is required"))
	}

	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("s3.bucket is required when storage type is s3"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type))
	}

	switch c.Results.Driver {
	case "sqlite3", "postgres":
	default:
		result = multierror.Append(result, fmt.Errorf("invalid results driver: %s (must be sqlite3 or postgres)", c.Results.Driver))
	}
	if c.Results.Driver == "postgres" && c.Results.DSN == "" {
		result = multierror.Append(result, fmt.Errorf("results.dsn is required when driver is postgres"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("invalid log level: %s", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if c.Purge.Concurrency < 1 || c.Purge.Concurrency > 64 {
		result = multierror.Append(result, fmt.Errorf("purge.concurrency must be between 1 and 64, got %d", c.Purge.Concurrency))
	}

	return result.ErrorOrNil()
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv applies LAKESTAGE_* environment overrides.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Storage configuration
	if v := os.Getenv(EnvPrefix + "STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(EnvPrefix + "S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv(EnvPrefix + "S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv(EnvPrefix + "S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv(EnvPrefix + "S3_USE_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}

	// Catalog and results
	if v := os.Getenv(EnvPrefix + "CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv(EnvPrefix + "RESULTS_DRIVER"); v != "" {
		cfg.Results.Driver = v
	}
	if v := os.Getenv(EnvPrefix + "RESULTS_DSN"); v != "" {
		cfg.Results.DSN = v
	}

	// Metrics and logging
	if v := os.Getenv(EnvPrefix + "PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv(EnvPrefix + "PURGE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Purge.Concurrency = n
		}
	}
}

// EnsureDirectories creates all required local directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, filepath.Dir(c.Catalog.Path)}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

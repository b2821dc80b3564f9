// Package app builds the shared resources of a lakestage process from
// configuration and releases them on Close.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/arkilian/lakestage/internal/catalog"
	"github.com/arkilian/lakestage/internal/config"
	"github.com/arkilian/lakestage/internal/metrics"
	"github.com/arkilian/lakestage/internal/pipeline"
	"github.com/arkilian/lakestage/internal/results"
	"github.com/arkilian/lakestage/internal/storage"
	"github.com/arkilian/lakestage/internal/transform"
)

// App owns storage, catalog, results store and metrics for one process.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	storage  storage.ObjectStorage
	catalog  *catalog.Catalog
	results  *results.Store
	registry *transform.Registry

	closers []io.Closer
}

// New validates cfg and opens every shared resource.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, registry: transform.DefaultRegistry()}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	var err error

	switch a.cfg.Storage.Type {
	case "local":
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		a.storage, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.UsePathStyle,
		})
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.logger.Info("storage initialized", "type", a.cfg.Storage.Type)
	if a.cfg.Storage.Type == "s3" {
		a.logger.Info("s3 config", "bucket", a.cfg.Storage.S3.Bucket,
			"region", a.cfg.Storage.S3.Region, "endpoint", a.cfg.Storage.S3.Endpoint)
	}

	a.catalog, err = catalog.Open(a.cfg.Catalog.Path, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize catalog: %w", err)
	}
	a.closers = append(a.closers, a.catalog)
	a.logger.Info("catalog initialized", "path", a.cfg.Catalog.Path)

	a.results, err = results.Open(a.cfg.Results.Driver, a.cfg.Results.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize results store: %w", err)
	}
	a.closers = append(a.closers, a.results)
	a.logger.Info("results store initialized", "driver", a.cfg.Results.Driver)

	return nil
}

// Catalog returns the table catalog.
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Storage returns the object store.
func (a *App) Storage() storage.ObjectStorage {
	return a.storage
}

// Metrics returns a recorder for one run. grouping labels the push.
func (a *App) Metrics(grouping map[string]string) (metrics.Recorder, error) {
	if a.cfg.Metrics.PushgatewayURL == "" {
		return metrics.NopRecorder{}, nil
	}
	return metrics.NewPushRecorder(a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.JobName, grouping)
}

// Pipeline builds a pipeline over the shared resources.
func (a *App) Pipeline(rec metrics.Recorder) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Config{
		Store:            a.storage,
		Catalog:          a.catalog,
		Results:          a.results,
		Registry:         a.registry,
		Metrics:          rec,
		SpecPrefix:       a.cfg.Artifacts.SpecPrefix,
		DQRulesPrefix:    a.cfg.Artifacts.DQRulesPrefix,
		DQTable:          a.cfg.Results.DQTable,
		TokenTable:       a.cfg.Results.TokenTable,
		ScratchDir:       a.cfg.DataDir,
		PurgeConcurrency: a.cfg.Purge.Concurrency,
		Logger:           a.logger,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// NewLogger builds the process logger from the log configuration.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arkilian/lakestage/internal/catalog"
	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/storage"
	"github.com/arkilian/lakestage/pkg/types"
)

// PurgeOutcome tells whether a purge found anything to remove.
type PurgeOutcome string

const (
	// PurgeNoPartitions means the table had no partitions yet.
	PurgeNoPartitions PurgeOutcome = "no_partitions"
	// PurgeCleared means the partition key was cleared.
	PurgeCleared PurgeOutcome = "cleared"
)

// PurgeResult is the outcome of Purge.
type PurgeResult struct {
	Outcome        PurgeOutcome
	FilesRemoved   int
	RecordsRemoved int64
}

// Catalog is the part of the table catalog the writer needs.
type Catalog interface {
	PartitionCount(ctx context.Context, database, table string) (int, error)
	ListPartitions(ctx context.Context, database, table string, key types.PartitionKey) ([]*catalog.PartitionRecord, error)
	DeletePartitions(ctx context.Context, database, table string, key types.PartitionKey) (int64, error)
	RegisterPartition(ctx context.Context, rec *catalog.PartitionRecord) error
}

// Target names the table being written.
type Target struct {
	Database      string
	Table         string
	Location      string
	SchemaVersion int
}

// Prefix returns the storage prefix of key under the table location.
func (t Target) Prefix(key types.PartitionKey) string {
	return storage.Join(t.Location, key.Path())
}

// Writer purges and appends partitions.
type Writer struct {
	store       storage.ObjectStorage
	catalog     Catalog
	scratchDir  string
	concurrency int
	logger      *slog.Logger
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	Store   storage.ObjectStorage
	Catalog Catalog
	// ScratchDir holds data files between build and upload
	ScratchDir string
	// Concurrency bounds parallel object deletes during a purge
	Concurrency int
	Logger      *slog.Logger
}

// NewWriter creates a partition writer.
func NewWriter(cfg WriterConfig) *Writer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scratch := cfg.ScratchDir
	if scratch == "" {
		scratch = os.TempDir()
	}
	return &Writer{
		store:       cfg.Store,
		catalog:     cfg.Catalog,
		scratchDir:  scratch,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// Purge removes every data file of key, in storage and in the catalog.
// A table that has no partitions at all is reported as PurgeNoPartitions.
func (w *Writer) Purge(ctx context.Context, target Target, key types.PartitionKey) (PurgeResult, error) {
	log := w.logger.With("database", target.Database, "table", target.Table, "partition", key.String())
	fail := func(err error) (PurgeResult, error) {
		return PurgeResult{}, lserrors.NewPartitionError(lserrors.CodePurgeFailed,
			fmt.Sprintf("purge %s.%s partition %s", target.Database, target.Table, key), err)
	}

	count, err := w.catalog.PartitionCount(ctx, target.Database, target.Table)
	if err != nil {
		return fail(err)
	}

	records, err := w.catalog.ListPartitions(ctx, target.Database, target.Table, key)
	if err != nil {
		return fail(err)
	}
	// Files left behind by an upload that was never registered are swept too.
	listed, err := w.store.ListObjects(ctx, target.Prefix(key)+"/")
	if err != nil {
		return fail(err)
	}

	paths := make(map[string]struct{}, len(records)+len(listed))
	for _, r := range records {
		paths[r.ObjectPath] = struct{}{}
	}
	for _, p := range listed {
		paths[p] = struct{}{}
	}
	objects := make([]string, 0, len(paths))
	for p := range paths {
		objects = append(objects, p)
	}
	sort.Strings(objects)

	if err := storage.DeleteAll(ctx, w.store, objects, w.concurrency); err != nil {
		return fail(err)
	}
	removed, err := w.catalog.DeletePartitions(ctx, target.Database, target.Table, key)
	if err != nil {
		return fail(err)
	}

	if count == 0 {
		log.Warn("no partitions to purge", "orphans_removed", len(objects))
		return PurgeResult{Outcome: PurgeNoPartitions, FilesRemoved: len(objects)}, nil
	}
	log.Info("purged partition", "files", len(objects), "records", removed)
	return PurgeResult{Outcome: PurgeCleared, FilesRemoved: len(objects), RecordsRemoved: removed}, nil
}

// Append writes ds as a new data file under key and registers it. Every
// row's year, month and day must equal key.
func (w *Writer) Append(ctx context.Context, target Target, key types.PartitionKey, ds *dataset.Dataset, executionID string) (*catalog.PartitionRecord, error) {
	fail := func(code string, err error) (*catalog.PartitionRecord, error) {
		return nil, lserrors.NewPartitionError(code,
			fmt.Sprintf("append %s.%s partition %s", target.Database, target.Table, key), err)
	}

	if err := ValidateKey(ds, key); err != nil {
		return fail(lserrors.CodeKeyMismatch, err)
	}

	dir, err := os.MkdirTemp(w.scratchDir, "lakestage-part-")
	if err != nil {
		return fail(lserrors.CodeAppendFailed, err)
	}
	defer os.RemoveAll(dir)

	info, err := NewBuilder(dir).Build(ctx, ds, key)
	if err != nil {
		return fail(lserrors.CodeAppendFailed, err)
	}

	objectPath := storage.Join(target.Prefix(key), filepath.Base(info.LocalPath))
	if err := w.store.Upload(ctx, info.LocalPath, objectPath); err != nil {
		return fail(lserrors.CodeAppendFailed, err)
	}

	rec := &catalog.PartitionRecord{
		PartitionID:   info.PartitionID,
		Database:      target.Database,
		Table:         target.Table,
		Key:           key,
		ObjectPath:    objectPath,
		RowCount:      info.RowCount,
		SizeBytes:     info.SizeBytes,
		SchemaVersion: target.SchemaVersion,
		ExecutionID:   executionID,
		CreatedAt:     info.CreatedAt,
	}
	if err := w.catalog.RegisterPartition(ctx, rec); err != nil {
		return fail(lserrors.CodeAppendFailed, err)
	}

	w.logger.Info("appended partition",
		"database", target.Database, "table", target.Table, "partition", key.String(),
		"rows", info.RowCount, "bytes", info.SizeBytes, "object", objectPath)
	return rec, nil
}

// ReadPartition reads back every data file registered under key, oldest first.
func (w *Writer) ReadPartition(ctx context.Context, target Target, key types.PartitionKey) (*dataset.Dataset, error) {
	records, err := w.catalog.ListPartitions(ctx, target.Database, target.Table, key)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("partition: %s.%s has no data for %s", target.Database, target.Table, key)
	}

	dir, err := os.MkdirTemp(w.scratchDir, "lakestage-read-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	var (
		schema dataset.Schema
		rows   []dataset.Row
	)
	for i, rec := range records {
		local := filepath.Join(dir, fmt.Sprintf("%d.sqlite", i))
		if err := w.store.Download(ctx, rec.ObjectPath, local); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return nil, lserrors.NewStorageError(lserrors.CodeObjectNotFound, "partition file "+rec.ObjectPath, err)
			}
			return nil, lserrors.NewStorageError(lserrors.CodeDownloadFailed, "partition file "+rec.ObjectPath, err)
		}
		part, err := ReadFile(ctx, local)
		if err != nil {
			return nil, err
		}
		if schema == nil {
			schema = part.Schema()
		} else if !schema.Equal(part.Schema()) {
			return nil, fmt.Errorf("partition: %s has files with different schemas: %s",
				key, strings.Join(part.Schema().Names(), ","))
		}
		_ = part.Each(func(_ int, r dataset.Row) error {
			rows = append(rows, r)
			return nil
		})
	}
	return dataset.New(schema, rows)
}

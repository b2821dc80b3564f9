// Package partition writes datasets into hive-style year/month/day
// partitions as SQLite data files and reads them back.
package partition

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/arkilian/lakestage/internal/dataset"
	"github.com/arkilian/lakestage/pkg/types"
)

// Table names inside a data file.
const (
	dataTable   = "data"
	schemaTable = "_lakestage_schema"
	statsTable  = "_lakestage_stats"
)

// FileInfo describes a built data file.
type FileInfo struct {
	PartitionID string
	Key         types.PartitionKey
	LocalPath   string
	RowCount    int64
	SizeBytes   int64
	Stats       []ColumnStats
	CreatedAt   time.Time
}

// Builder creates SQLite data files from datasets.
type Builder struct {
	outputDir string
}

// NewBuilder creates a builder writing into outputDir.
func NewBuilder(outputDir string) *Builder {
	return &Builder{outputDir: outputDir}
}

// Build writes ds to a new data file. Column names and types are kept in
// the schema table so the file can be read back without the catalog.
func (b *Builder) Build(ctx context.Context, ds *dataset.Dataset, key types.PartitionKey) (*FileInfo, error) {
	partitionID := uuid.New().String()
	createdAt := time.Now()

	if err := os.MkdirAll(b.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("partition: failed to create output directory: %w", err)
	}
	sqlitePath := filepath.Clean(filepath.Join(b.outputDir, "part-"+partitionID+".sqlite"))

	db, err := sql.Open("sqlite3", sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to create SQLite database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("partition: failed to set journal mode: %w", err)
	}

	schema := ds.Schema()
	if err := createTables(ctx, db, schema); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to begin transaction: %w", err)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(schema)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", dataTable, placeholders))
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("partition: failed to prepare insert statement: %w", err)
	}

	stats := NewStatsTracker(schema)
	err = ds.Each(func(i int, r dataset.Row) error {
		args := make([]interface{}, len(r))
		for j, v := range r {
			args[j] = encodeValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("partition: failed to insert row %d: %w", i, err)
		}
		stats.Update(r)
		return nil
	})
	stmt.Close()
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("partition: failed to commit rows: %w", err)
	}

	if err := writeStats(ctx, db, stats.Columns()); err != nil {
		return nil, err
	}

	// Checkpoint WAL and switch to DELETE mode so the file is self-contained.
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("partition: failed to checkpoint WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return nil, fmt.Errorf("partition: failed to set journal mode to DELETE: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("partition: failed to close database: %w", err)
	}

	fileInfo, err := os.Stat(sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to stat SQLite file: %w", err)
	}

	return &FileInfo{
		PartitionID: partitionID,
		Key:         key,
		LocalPath:   sqlitePath,
		RowCount:    int64(ds.NumRows()),
		SizeBytes:   fileInfo.Size(),
		Stats:       stats.Columns(),
		CreatedAt:   createdAt,
	}, nil
}

func createTables(ctx context.Context, db *sql.DB, schema dataset.Schema) error {
	defs := make([]string, len(schema))
	for i, c := range schema {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(c.Name), storageType(c.Type))
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (%s)", dataTable, strings.Join(defs, ", ")),
		fmt.Sprintf(`CREATE TABLE %s (
			position INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL
		)`, schemaTable),
		fmt.Sprintf(`CREATE TABLE %s (
			column_name TEXT PRIMARY KEY,
			null_count INTEGER NOT NULL,
			min_value TEXT,
			max_value TEXT
		) WITHOUT ROWID`, statsTable),
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("partition: failed to create table: %w", err)
		}
	}
	for i, c := range schema {
		if _, err := db.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (position, name, type) VALUES (?, ?, ?)", schemaTable),
			i, c.Name, c.Type.String(),
		); err != nil {
			return fmt.Errorf("partition: failed to record schema: %w", err)
		}
	}
	return nil
}

func writeStats(ctx context.Context, db *sql.DB, cols []ColumnStats) error {
	for _, c := range cols {
		if _, err := db.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (column_name, null_count, min_value, max_value) VALUES (?, ?, ?, ?)", statsTable),
			c.Name, c.NullCount, c.Min, c.Max,
		); err != nil {
			return fmt.Errorf("partition: failed to write stats: %w", err)
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func storageType(t dataset.Type) string {
	switch t.Kind {
	case dataset.KindInt, dataset.KindBigInt, dataset.KindBoolean:
		return "INTEGER"
	case dataset.KindDouble:
		return "REAL"
	}
	return "TEXT"
}

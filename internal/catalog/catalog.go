package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/pkg/types"
)

// Catalog manages table and partition metadata in catalog.db.
type Catalog struct {
	db     *sql.DB // single writer
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

// SchemaVersionRecord is one entry of a table's schema history.
type SchemaVersionRecord struct {
	Version   int
	Columns   []types.ColumnDef
	Policy    string
	CreatedAt time.Time
}

// Open opens or creates the catalog at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{db: db, logger: logger, now: time.Now}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to initialize schema: %w", err)
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func writeErr(msg string, err error) error {
	return lserrors.NewCatalogError(lserrors.CodeCatalogWrite, msg, err)
}

// EnsureDatabase creates the database entry if it does not exist.
func (c *Catalog) EnsureDatabase(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx,
		"INSERT INTO databases (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		name, c.now().Unix())
	if err != nil {
		return writeErr("create database "+name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		c.logger.Info("created catalog database", "database", name)
	}
	return nil
}

// GetTable returns the table definition or a TABLE_NOT_FOUND error.
func (c *Catalog) GetTable(ctx context.Context, database, table string) (*types.TableSchema, error) {
	var (
		def                    types.TableSchema
		columnsJSON, partsJSON string
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT database_name, table_name, location, description, columns_json, partition_keys_json, version
		FROM tables WHERE database_name = ? AND table_name = ?`,
		database, table,
	).Scan(&def.Database, &def.Name, &def.Location, &def.Description, &columnsJSON, &partsJSON, &def.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lserrors.NewCatalogError(lserrors.CodeTableNotFound,
			fmt.Sprintf("table %s.%s not found", database, table), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to get table %s.%s: %w", database, table, err)
	}
	if err := json.Unmarshal([]byte(columnsJSON), &def.Columns); err != nil {
		return nil, fmt.Errorf("catalog: corrupt columns for %s.%s: %w", database, table, err)
	}
	if err := json.Unmarshal([]byte(partsJSON), &def.PartitionKeys); err != nil {
		return nil, fmt.Errorf("catalog: corrupt partition keys for %s.%s: %w", database, table, err)
	}
	return &def, nil
}

// TableExists reports whether the table is registered.
func (c *Catalog) TableExists(ctx context.Context, database, table string) (bool, error) {
	_, err := c.GetTable(ctx, database, table)
	if lserrors.GetCode(err) == lserrors.CodeTableNotFound {
		return false, nil
	}
	return err == nil, err
}

// CreateTable registers a new table at version 1.
func (c *Catalog) CreateTable(ctx context.Context, def *types.TableSchema, policy string) error {
	columnsJSON, partsJSON, err := encodeColumns(def)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now().Unix()

	return c.inTx(ctx, "create table "+def.QualifiedName(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tables (database_name, table_name, location, description, columns_json,
				partition_keys_json, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			def.Database, def.Name, def.Location, def.Description, columnsJSON, partsJSON, now, now,
		); err != nil {
			return err
		}
		def.Version = 1
		return insertSchemaVersion(ctx, tx, def, columnsJSON, policy, now)
	})
}

// UpdateTable replaces the table definition and bumps its version.
func (c *Catalog) UpdateTable(ctx context.Context, def *types.TableSchema, policy string) error {
	columnsJSON, partsJSON, err := encodeColumns(def)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now().Unix()

	return c.inTx(ctx, "update table "+def.QualifiedName(), func(tx *sql.Tx) error {
		var version int
		if err := tx.QueryRowContext(ctx,
			"SELECT version FROM tables WHERE database_name = ? AND table_name = ?",
			def.Database, def.Name,
		).Scan(&version); err != nil {
			return err
		}
		version++
		if _, err := tx.ExecContext(ctx, `
			UPDATE tables SET location = ?, description = ?, columns_json = ?, partition_keys_json = ?,
				version = ?, updated_at = ?
			WHERE database_name = ? AND table_name = ?`,
			def.Location, def.Description, columnsJSON, partsJSON, version, now, def.Database, def.Name,
		); err != nil {
			return err
		}
		def.Version = version
		return insertSchemaVersion(ctx, tx, def, columnsJSON, policy, now)
	})
}

// SchemaVersions returns a table's schema history, oldest first.
func (c *Catalog) SchemaVersions(ctx context.Context, database, table string) ([]SchemaVersionRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT version, columns_json, policy, created_at FROM schema_versions
		WHERE database_name = ? AND table_name = ? ORDER BY version ASC`,
		database, table)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to list schema versions: %w", err)
	}
	defer rows.Close()

	var out []SchemaVersionRecord
	for rows.Next() {
		var (
			rec         SchemaVersionRecord
			columnsJSON string
			createdAt   int64
		)
		if err := rows.Scan(&rec.Version, &columnsJSON, &rec.Policy, &createdAt); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan schema version: %w", err)
		}
		if err := json.Unmarshal([]byte(columnsJSON), &rec.Columns); err != nil {
			return nil, fmt.Errorf("catalog: corrupt schema version %d: %w", rec.Version, err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func insertSchemaVersion(ctx context.Context, tx *sql.Tx, def *types.TableSchema, columnsJSON, policy string, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO schema_versions (database_name, table_name, version, columns_json, policy, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		def.Database, def.Name, def.Version, columnsJSON, policy, now)
	return err
}

func encodeColumns(def *types.TableSchema) (string, string, error) {
	columns, err := json.Marshal(def.Columns)
	if err != nil {
		return "", "", fmt.Errorf("catalog: failed to marshal columns: %w", err)
	}
	parts, err := json.Marshal(def.PartitionKeys)
	if err != nil {
		return "", "", fmt.Errorf("catalog: failed to marshal partition keys: %w", err)
	}
	return string(columns), string(parts), nil
}

func (c *Catalog) inTx(ctx context.Context, what string, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr(what, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return writeErr(what, err)
	}
	if err := tx.Commit(); err != nil {
		return writeErr(what, err)
	}
	return nil
}

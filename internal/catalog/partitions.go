package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/arkilian/lakestage/pkg/types"
)

// PartitionRecord is one data file registered under a partition key.
type PartitionRecord struct {
	PartitionID   string
	Database      string
	Table         string
	Key           types.PartitionKey
	ObjectPath    string
	RowCount      int64
	SizeBytes     int64
	SchemaVersion int
	ExecutionID   string
	CreatedAt     time.Time
}

// RegisterPartition records a data file.
func (c *Catalog) RegisterPartition(ctx context.Context, rec *PartitionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = c.now()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO partitions (partition_id, database_name, table_name, year, month, day,
			object_path, row_count, size_bytes, schema_version, execution_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PartitionID, rec.Database, rec.Table, rec.Key.Year, rec.Key.Month, rec.Key.Day,
		rec.ObjectPath, rec.RowCount, rec.SizeBytes, rec.SchemaVersion, rec.ExecutionID, createdAt.Unix(),
	)
	if err != nil {
		return writeErr("register partition "+rec.PartitionID, err)
	}
	return nil
}

// ListPartitions returns the files registered under key.
func (c *Catalog) ListPartitions(ctx context.Context, database, table string, key types.PartitionKey) ([]*PartitionRecord, error) {
	return c.queryPartitions(ctx, `
		SELECT partition_id, database_name, table_name, year, month, day, object_path,
			row_count, size_bytes, schema_version, execution_id, created_at
		FROM partitions
		WHERE database_name = ? AND table_name = ? AND year = ? AND month = ? AND day = ?
		ORDER BY created_at, partition_id`,
		database, table, key.Year, key.Month, key.Day)
}

// AllPartitions returns every file of the table ordered by key.
func (c *Catalog) AllPartitions(ctx context.Context, database, table string) ([]*PartitionRecord, error) {
	return c.queryPartitions(ctx, `
		SELECT partition_id, database_name, table_name, year, month, day, object_path,
			row_count, size_bytes, schema_version, execution_id, created_at
		FROM partitions
		WHERE database_name = ? AND table_name = ?
		ORDER BY year, month, day, created_at, partition_id`,
		database, table)
}

func (c *Catalog) queryPartitions(ctx context.Context, query string, args ...interface{}) ([]*PartitionRecord, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query partitions: %w", err)
	}
	defer rows.Close()

	var out []*PartitionRecord
	for rows.Next() {
		var (
			rec       PartitionRecord
			createdAt int64
		)
		if err := rows.Scan(&rec.PartitionID, &rec.Database, &rec.Table,
			&rec.Key.Year, &rec.Key.Month, &rec.Key.Day, &rec.ObjectPath,
			&rec.RowCount, &rec.SizeBytes, &rec.SchemaVersion, &rec.ExecutionID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan partition: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// DeletePartitions removes every file record under key and returns how many
// were removed.
func (c *Catalog) DeletePartitions(ctx context.Context, database, table string, key types.PartitionKey) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, `
		DELETE FROM partitions
		WHERE database_name = ? AND table_name = ? AND year = ? AND month = ? AND day = ?`,
		database, table, key.Year, key.Month, key.Day)
	if err != nil {
		return 0, writeErr("delete partitions "+key.String(), err)
	}
	return res.RowsAffected()
}

// PartitionCount returns the number of files registered for the table.
func (c *Catalog) PartitionCount(ctx context.Context, database, table string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM partitions WHERE database_name = ? AND table_name = ?",
		database, table,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to count partitions: %w", err)
	}
	return n, nil
}

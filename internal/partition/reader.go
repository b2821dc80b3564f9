package partition

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arkilian/lakestage/internal/dataset"
)

// ReadFile loads a data file written by Builder.
func ReadFile(ctx context.Context, path string) (*dataset.Dataset, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to open %s: %w", path, err)
	}
	defer db.Close()

	schema, err := readSchema(ctx, db)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", dataTable))
	if err != nil {
		return nil, fmt.Errorf("partition: failed to query data: %w", err)
	}
	defer rows.Close()

	var out []dataset.Row
	raw := make([]interface{}, len(schema))
	ptrs := make([]interface{}, len(schema))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("partition: failed to scan row: %w", err)
		}
		r := make(dataset.Row, len(schema))
		for i, c := range schema {
			v, err := decodeValue(raw[i], c.Type)
			if err != nil {
				return nil, fmt.Errorf("partition: column %q: %w", c.Name, err)
			}
			r[i] = v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("partition: failed to read rows: %w", err)
	}
	return dataset.New(schema, out)
}

func readSchema(ctx context.Context, db *sql.DB) (dataset.Schema, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT name, type FROM %s ORDER BY position", schemaTable))
	if err != nil {
		return nil, fmt.Errorf("partition: failed to read schema: %w", err)
	}
	defer rows.Close()

	var schema dataset.Schema
	for rows.Next() {
		var name, typeName string
		if err := rows.Scan(&name, &typeName); err != nil {
			return nil, fmt.Errorf("partition: failed to scan schema: %w", err)
		}
		t, err := dataset.ParseType(typeName)
		if err != nil {
			return nil, fmt.Errorf("partition: column %q: %w", name, err)
		}
		schema = append(schema, dataset.Column{Name: name, Type: t})
	}
	return schema, rows.Err()
}

// ReadStats loads the per-column statistics of a data file.
func ReadStats(ctx context.Context, path string) ([]ColumnStats, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to open %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT s.column_name, s.null_count, s.min_value, s.max_value
		FROM %s s JOIN %s c ON c.name = s.column_name
		ORDER BY c.position`, statsTable, schemaTable))
	if err != nil {
		return nil, fmt.Errorf("partition: failed to read stats: %w", err)
	}
	defer rows.Close()

	var out []ColumnStats
	for rows.Next() {
		var (
			cs     ColumnStats
			lo, hi sql.NullString
		)
		if err := rows.Scan(&cs.Name, &cs.NullCount, &lo, &hi); err != nil {
			return nil, fmt.Errorf("partition: failed to scan stats: %w", err)
		}
		if lo.Valid {
			cs.Min = &lo.String
		}
		if hi.Valid {
			cs.Max = &hi.String
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// Package results persists quality rule outcomes, lineage events and
// tokenized values to a SQL database (SQLite or Postgres).
package results

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// QualityResult is the outcome of one rule at one checkpoint.
type QualityResult struct {
	ExecutionID   string
	Database      string
	Table         string
	Checkpoint    string
	Action        string
	Rule          string
	Outcome       string
	FailureReason string
	FailedRows    int
	EvaluatedAt   time.Time
}

// LineageRecord is a stored lineage event. Snapshot is snappy-compressed JSON.
type LineageRecord struct {
	ExecutionID string
	SourceKey   string
	Stage       string
	Snapshot    []byte
	Params      string
	RecordedAt  time.Time
}

// Token is one tokenized value.
type Token struct {
	HashKey string
	RawData string
}

// Store writes result rows. Tables are created on first use.
type Store struct {
	db     *sql.DB
	driver string

	mu      sync.Mutex
	ensured map[string]bool
}

// Open connects to the results database.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("results: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("results: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(10 * time.Minute)
	}

	return &Store{db: db, driver: driver, ensured: make(map[string]bool)}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordQuality inserts rule outcomes.
func (s *Store) RecordQuality(ctx context.Context, table string, results []QualityResult) error {
	if len(results) == 0 {
		return nil
	}
	if err := s.ensureTable(ctx, table, s.qualityDDL(table)); err != nil {
		return err
	}

	query := s.rebind(fmt.Sprintf(`INSERT INTO %s
		(execution_id, database_name, table_name, checkpoint, action, rule, outcome, failure_reason, failed_rows, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table))

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range results {
			_, err := stmt.ExecContext(ctx, r.ExecutionID, r.Database, r.Table, r.Checkpoint, r.Action,
				r.Rule, r.Outcome, r.FailureReason, r.FailedRows, r.EvaluatedAt.UTC().Format(time.RFC3339Nano))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// QualityResults returns the outcomes recorded for one execution.
func (s *Store) QualityResults(ctx context.Context, table, executionID string) ([]QualityResult, error) {
	if err := validateIdent(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(fmt.Sprintf(`SELECT execution_id, database_name, table_name,
		checkpoint, action, rule, outcome, failure_reason, failed_rows, evaluated_at
		FROM %s WHERE execution_id = ? ORDER BY id`, table)), executionID)
	if err != nil {
		return nil, fmt.Errorf("results: query %s: %w", table, err)
	}
	defer rows.Close()

	var out []QualityResult
	for rows.Next() {
		var r QualityResult
		var at string
		if err := rows.Scan(&r.ExecutionID, &r.Database, &r.Table, &r.Checkpoint, &r.Action,
			&r.Rule, &r.Outcome, &r.FailureReason, &r.FailedRows, &at); err != nil {
			return nil, fmt.Errorf("results: scan: %w", err)
		}
		r.EvaluatedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordLineage inserts one lineage event.
func (s *Store) RecordLineage(ctx context.Context, table string, rec LineageRecord) error {
	if err := s.ensureTable(ctx, table, s.lineageDDL(table)); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(fmt.Sprintf(`INSERT INTO %s
		(execution_id, source_key, stage, snapshot, params, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`, table)),
		rec.ExecutionID, rec.SourceKey, rec.Stage, rec.Snapshot, rec.Params, rec.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("results: insert lineage: %w", err)
	}
	return nil
}

// LineageRecords returns the events recorded for one execution in order.
func (s *Store) LineageRecords(ctx context.Context, table, executionID string) ([]LineageRecord, error) {
	if err := validateIdent(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(fmt.Sprintf(`SELECT execution_id, source_key, stage, snapshot, params, recorded_at
		FROM %s WHERE execution_id = ? ORDER BY id`, table)), executionID)
	if err != nil {
		return nil, fmt.Errorf("results: query %s: %w", table, err)
	}
	defer rows.Close()

	var out []LineageRecord
	for rows.Next() {
		var r LineageRecord
		var at string
		if err := rows.Scan(&r.ExecutionID, &r.SourceKey, &r.Stage, &r.Snapshot, &r.Params, &at); err != nil {
			return nil, fmt.Errorf("results: scan: %w", err)
		}
		r.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// StoreTokens inserts tokens, ignoring hash keys that already exist.
func (s *Store) StoreTokens(ctx context.Context, table string, tokens []Token) error {
	if len(tokens) == 0 {
		return nil
	}
	if err := s.ensureTable(ctx, table, s.tokenDDL(table)); err != nil {
		return err
	}

	query := s.rebind(fmt.Sprintf(`INSERT INTO %s (hash_key, raw_data) VALUES (?, ?)
		ON CONFLICT (hash_key) DO NOTHING`, table))

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, t := range tokens {
			if _, err := stmt.ExecContext(ctx, t.HashKey, t.RawData); err != nil {
				return err
			}
		}
		return nil
	})
}

// TokenCount returns the number of stored tokens.
func (s *Store) TokenCount(ctx context.Context, table string) (int, error) {
	if err := validateIdent(table); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("results: count %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) ensureTable(ctx context.Context, table, ddl string) error {
	if err := validateIdent(table); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[table] {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("results: create %s: %w", table, err)
	}
	s.ensured[table] = true
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("results: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("results: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("results: commit: %w", err)
	}
	return nil
}

func (s *Store) idColumn() string {
	if s.driver == DriverPostgres {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (s *Store) blobType() string {
	if s.driver == DriverPostgres {
		return "BYTEA"
	}
	return "BLOB"
}

func (s *Store) qualityDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s,
    execution_id TEXT NOT NULL,
    database_name TEXT NOT NULL,
    table_name TEXT NOT NULL,
    checkpoint TEXT NOT NULL,
    action TEXT NOT NULL,
    rule TEXT NOT NULL,
    outcome TEXT NOT NULL,
    failure_reason TEXT NOT NULL,
    failed_rows INTEGER NOT NULL,
    evaluated_at TEXT NOT NULL
)`, table, s.idColumn())
}

func (s *Store) lineageDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s,
    execution_id TEXT NOT NULL,
    source_key TEXT NOT NULL,
    stage TEXT NOT NULL,
    snapshot %s NOT NULL,
    params TEXT NOT NULL,
    recorded_at TEXT NOT NULL
)`, table, s.idColumn(), s.blobType())
}

func (s *Store) tokenDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    hash_key TEXT PRIMARY KEY,
    raw_data TEXT NOT NULL
)`, table)
}

// rebind converts ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("results: invalid table name %q", name)
	}
	return nil
}

// Package catalog is the table catalog: databases, table definitions,
// schema versions and registered partitions, kept in SQLite.
package catalog

// CreateDatabasesTableSQL creates the databases table.
const CreateDatabasesTableSQL = `
CREATE TABLE IF NOT EXISTS databases (
    name TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL
)`

// CreateTablesTableSQL creates the table definitions table. Columns and
// partition keys are stored as JSON arrays of {name, type}.
const CreateTablesTableSQL = `
CREATE TABLE IF NOT EXISTS tables (
    database_name TEXT NOT NULL,
    table_name TEXT NOT NULL,
    location TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    columns_json TEXT NOT NULL,
    partition_keys_json TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (database_name, table_name),
    FOREIGN KEY (database_name) REFERENCES databases(name)
)`

// CreateSchemaVersionsTableSQL creates the schema version history.
const CreateSchemaVersionsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_versions (
    database_name TEXT NOT NULL,
    table_name TEXT NOT NULL,
    version INTEGER NOT NULL,
    columns_json TEXT NOT NULL,
    policy TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (database_name, table_name, version)
)`

// CreatePartitionsTableSQL creates the partition file registry. A partition
// key may hold several files.
const CreatePartitionsTableSQL = `
CREATE TABLE IF NOT EXISTS partitions (
    partition_id TEXT PRIMARY KEY,
    database_name TEXT NOT NULL,
    table_name TEXT NOT NULL,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL,
    day INTEGER NOT NULL,
    object_path TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    size_bytes INTEGER NOT NULL,
    schema_version INTEGER NOT NULL,
    execution_id TEXT NOT NULL,
    created_at INTEGER NOT NULL
)`

// CreatePartitionsIndexSQL indexes partition key lookups.
const CreatePartitionsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_partitions_key ON partitions(database_name, table_name, year, month, day)`

// AllSchemaSQL returns all statements needed to initialize the catalog.
func AllSchemaSQL() []string {
	return []string{
		CreateDatabasesTableSQL,
		CreateTablesTableSQL,
		CreateSchemaVersionsTableSQL,
		CreatePartitionsTableSQL,
		CreatePartitionsIndexSQL,
	}
}

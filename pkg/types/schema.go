// Package types provides value types shared between lakestage packages.
package types

import "strings"

// TableSchema describes a catalog table.
type TableSchema struct {
	// Database is the catalog database the table belongs to
	Database string `json:"database"`

	// Name is the table name
	Name string `json:"name"`

	// Location is the storage prefix holding the table's partitions
	Location string `json:"location"`

	// Description is free text, usually taken from input_spec.table_description
	Description string `json:"description,omitempty"`

	// Version is incremented on every accepted schema change
	Version int `json:"version"`

	// Columns are the non-partition columns in table order
	Columns []ColumnDef `json:"columns"`

	// PartitionKeys are the partition columns, always year, month, day
	PartitionKeys []ColumnDef `json:"partition_keys"`
}

// ColumnDef defines a single column in the schema.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the dataset type name, e.g. string, bigint, decimal(16,2)
	Type string `json:"type"`
}

// QualifiedName returns database.table.
func (s *TableSchema) QualifiedName() string {
	return s.Database + "." + s.Name
}

// ColumnNames returns the column names in order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnsEqual reports whether two column lists match by name, type and order.
// Type names are compared case-insensitively.
func ColumnsEqual(a, b []ColumnDef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !strings.EqualFold(a[i].Type, b[i].Type) {
			return false
		}
	}
	return true
}

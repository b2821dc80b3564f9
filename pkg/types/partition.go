package types

import (
	"fmt"
	"time"
)

// Partition column names. Every table written by lakestage is physically
// partitioned by these three integer columns, in this order.
const (
	ColumnYear  = "year"
	ColumnMonth = "month"
	ColumnDay   = "day"
)

// PartitionColumns lists the partition key columns in key order.
var PartitionColumns = []string{ColumnYear, ColumnMonth, ColumnDay}

// PartitionKey identifies the single partition a run is responsible for.
type PartitionKey struct {
	// Year is the four digit calendar year
	Year int `json:"year"`

	// Month is 1-12
	Month int `json:"month"`

	// Day is 1-31
	Day int `json:"day"`
}

// Validate checks that the key names a real calendar date.
func (k PartitionKey) Validate() error {
	if k.Year < 1 || k.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPartitionKey, k.Year)
	}
	if k.Month < 1 || k.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPartitionKey, k.Month)
	}
	t := time.Date(k.Year, time.Month(k.Month), k.Day, 0, 0, 0, 0, time.UTC)
	if k.Day < 1 || t.Day() != k.Day {
		return fmt.Errorf("%w: day %d for %04d-%02d", ErrInvalidPartitionKey, k.Day, k.Year, k.Month)
	}
	return nil
}

// Path returns the hive-style storage segment, e.g. year=2024/month=01/day=05.
func (k PartitionKey) Path() string {
	return fmt.Sprintf("year=%04d/month=%02d/day=%02d", k.Year, k.Month, k.Day)
}

// String returns the key as YYYY-MM-DD.
func (k PartitionKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, k.Month, k.Day)
}

// Values returns the key components in PartitionColumns order.
func (k PartitionKey) Values() []int {
	return []int{k.Year, k.Month, k.Day}
}

// IsPartitionColumn reports whether name is one of the partition key columns.
func IsPartitionColumn(name string) bool {
	switch name {
	case ColumnYear, ColumnMonth, ColumnDay:
		return true
	}
	return false
}

package types

import "errors"

// Partition key errors
var (
	// ErrInvalidPartitionKey is returned when a year, month or day is out of range
	ErrInvalidPartitionKey = errors.New("invalid partition key")
)

// Package target talks to the append-only analytical store. The core never
// updates or deletes there: logical updates are expressed by inserting a
// compensating negative-sign record plus a higher-versioned positive one, and
// reads resolve the live row either by an explicit version column or by the
// store's native last-wins merge.
package target

import (
	"context"
	"errors"
)

var ErrUnknownTable = errors.New("unknown table")

// Record is one row headed for, or read back from, the analytical store.
type Record map[string]interface{}

// IntValue reads a column as int64, tolerating the numeric types drivers
// hand back. Missing or non-numeric values read as 0.
func (r Record) IntValue(column string) int64 {
	switch v := r[column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Query selects rows by primary key set, optionally narrowed to a date range
// and resolved to one live record per key.
type Query struct {
	Table    string
	Columns  []string
	PKColumn string
	PKs      []string

	// optional partition narrowing
	DateColumn string
	MinDate    interface{}
	MaxDate    interface{}

	// VersionColumn resolves the highest version per key explicitly;
	// Final asks the store for its native last-wins view instead.
	VersionColumn string
	Final         bool
}

// Client is one connection to a target database alias.
type Client interface {
	Insert(ctx context.Context, table string, columns []string, records []Record) error
	Select(ctx context.Context, q Query) ([]Record, error)
	// Exec runs DDL or bare statements, used by the migration runner.
	Exec(ctx context.Context, stmt string, args ...interface{}) error
	Close() error
}

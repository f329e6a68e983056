// Package table streams MIMIC-IV tables from CSV, Parquet or PostgreSQL
// sources into schema-projected, filtered in-memory tables.
package table

import "context"

// Request names a table and the columns to project. Filter is advisory to
// the source: a source may push it down, and the loader re-applies it to
// every row regardless.
type Request struct {
	Table   string
	Columns []string
	Filter  Filter
}

// Source opens named tables for streaming.
type Source interface {
	Open(ctx context.Context, req Request) (RowReader, error)
}

// RowReader streams raw rows. Columns describes the header of the
// underlying table; it may contain more columns than were requested.
// Next returns nil, io.EOF when done.
type RowReader interface {
	Columns() []string
	Next() ([]string, error)
	Close() error
}

package table

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource streams tables from a PostgreSQL schema, as built by the
// MIMIC-IV load scripts (mimiciv_hosp by default). Columns are cast to text
// so every source yields the same row representation.
type PostgresSource struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresSource connects to connStr.
func NewPostgresSource(ctx context.Context, connStr, schema string) (*PostgresSource, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PostgresSource{pool: pool, schema: schema}, nil
}

// Close releases the connection pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}

func (s *PostgresSource) Open(ctx context.Context, req Request) (RowReader, error) {
	existing, err := s.tableColumns(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, &SourceNotFoundError{Table: req.Table, Location: s.schema}
	}

	var cols []string
	for _, c := range req.Columns {
		if existing[c] {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		// Nothing requested exists; report the header so the loader can name
		// the missing required columns.
		return &pgRows{}, nil
	}

	query, args := s.selectQuery(req.Table, cols, req.Filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", req.Table, err)
	}
	return &pgRows{rows: rows, columns: cols, dest: make([]pgtype.Text, len(cols))}, nil
}

func (s *PostgresSource) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`, s.schema, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s.%s: %w", s.schema, table, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("describe %s.%s: %w", s.schema, table, err)
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[strings.ToLower(n)] = true
	}
	return out, nil
}

func (s *PostgresSource) selectQuery(table string, cols []string, filter Filter) (string, []any) {
	quote := func(c string) string { return pgx.Identifier{c}.Sanitize() }

	selects := make([]string, len(cols))
	for i, c := range cols {
		selects[i] = quote(c) + "::text"
	}

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(selects, ", "), pgx.Identifier{s.schema, table}.Sanitize())
	if where, ok := whereClause(filter, quote, arg); ok {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	return b.String(), args
}

type pgRows struct {
	rows    pgx.Rows
	columns []string
	dest    []pgtype.Text
}

func (r *pgRows) Columns() []string { return r.columns }

func (r *pgRows) Next() ([]string, error) {
	if r.rows == nil {
		return nil, io.EOF
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	targets := make([]any, len(r.dest))
	for i := range r.dest {
		targets[i] = &r.dest[i]
	}
	if err := r.rows.Scan(targets...); err != nil {
		return nil, err
	}
	out := make([]string, len(r.dest))
	for i, t := range r.dest {
		if t.Valid {
			out[i] = t.String
		}
	}
	return out, nil
}

func (r *pgRows) Close() error {
	if r.rows != nil {
		r.rows.Close()
	}
	return nil
}

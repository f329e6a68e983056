package table

import (
	"strings"
	"time"
)

// Table is a fully materialized, schema-projected table. Rows hold only the
// schema's columns, in Columns order.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string

	index map[string]int
}

func newTable(name string, columns []string) *Table {
	t := &Table{Name: name, Columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		t.index[c] = i
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Has reports whether the column was projected.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Row returns an accessor for row i.
func (t *Table) Row(i int) Row {
	return Row{values: t.Rows[i], index: t.index}
}

// Row reads columns of one projected row by name. Absent columns read as
// blank.
type Row struct {
	values []string
	index  map[string]int
}

// Str returns the trimmed value of col, with invalid UTF-8 replaced.
func (r Row) Str(col string) string {
	if i, ok := r.index[col]; ok && i < len(r.values) {
		return strings.ToValidUTF8(strings.TrimSpace(r.values[i]), "\uFFFD")
	}
	return ""
}

// Opt returns nil when col is blank.
func (r Row) Opt(col string) *string {
	s := r.Str(col)
	if s == "" {
		return nil
	}
	return &s
}

// ID parses col as an integer identifier.
func (r Row) ID(col string) (int64, bool) {
	return ParseID(r.Str(col))
}

// Int parses col as an integer; blank or invalid values yield 0, false.
func (r Row) Int(col string) (int, bool) {
	n, ok := ParseID(r.Str(col))
	return int(n), ok
}

// Float returns nil when col is blank or not numeric.
func (r Row) Float(col string) *float64 {
	return ParseFloat(r.Str(col))
}

// Time returns nil when col is blank or not a recognized timestamp.
func (r Row) Time(col string) *time.Time {
	t, ok := ParseTime(r.Str(col))
	if !ok {
		return nil
	}
	return &t
}

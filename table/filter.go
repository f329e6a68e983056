package table

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Filter decides per row whether it is kept. A nil Filter keeps every row.
type Filter interface {
	// Columns lists the columns Match reads.
	Columns() []string
	Match(r Row) bool
}

// pushdown is implemented by filters a SQL source can evaluate server side.
// col quotes a column name, arg binds a parameter and returns its
// placeholder.
type pushdown interface {
	where(col func(string) string, arg func(any) string) (string, bool)
}

type inSet struct {
	col string
	ids map[int64]struct{}
}

// InSet keeps rows whose col parses to an id in ids. An empty set keeps
// nothing.
func InSet(col string, ids map[int64]struct{}) Filter {
	return &inSet{col: col, ids: ids}
}

func (f *inSet) Columns() []string { return []string{f.col} }

func (f *inSet) Match(r Row) bool {
	id, ok := r.ID(f.col)
	if !ok {
		return false
	}
	_, ok = f.ids[id]
	return ok
}

func (f *inSet) where(col func(string) string, arg func(any) string) (string, bool) {
	ids := make([]int64, 0, len(f.ids))
	for id := range f.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return fmt.Sprintf("%s::bigint = ANY(%s)", col(f.col), arg(ids)), true
}

type equals struct {
	col    string
	values map[string]struct{}
}

// Equals keeps rows whose col equals one of values, ignoring case and
// surrounding space.
func Equals(col string, values ...string) Filter {
	f := &equals{col: col, values: make(map[string]struct{}, len(values))}
	for _, v := range values {
		f.values[strings.ToUpper(strings.TrimSpace(v))] = struct{}{}
	}
	return f
}

func (f *equals) Columns() []string { return []string{f.col} }

func (f *equals) Match(r Row) bool {
	_, ok := f.values[strings.ToUpper(r.Str(f.col))]
	return ok
}

func (f *equals) where(col func(string) string, arg func(any) string) (string, bool) {
	values := make([]string, 0, len(f.values))
	for v := range f.values {
		values = append(values, v)
	}
	sort.Strings(values)
	return fmt.Sprintf("upper(trim(%s::text)) = ANY(%s)", col(f.col), arg(values)), true
}

type timeRange struct {
	col      string
	from, to time.Time
}

// TimeRange keeps rows whose col falls within [from, to]. A zero bound is
// open. Rows with a blank or unparsable time are dropped unless both bounds
// are open.
func TimeRange(col string, from, to time.Time) Filter {
	return &timeRange{col: col, from: from, to: to}
}

func (f *timeRange) Columns() []string { return []string{f.col} }

func (f *timeRange) Match(r Row) bool {
	if f.from.IsZero() && f.to.IsZero() {
		return true
	}
	t := r.Time(f.col)
	if t == nil {
		return false
	}
	if !f.from.IsZero() && t.Before(f.from) {
		return false
	}
	if !f.to.IsZero() && t.After(f.to) {
		return false
	}
	return true
}

type pattern struct {
	col string
	re  *regexp.Regexp
}

// Regexp keeps rows whose trimmed col matches re. It is never pushed down
// because Go and PostgreSQL regular expression dialects differ.
func Regexp(col string, re *regexp.Regexp) Filter {
	return &pattern{col: col, re: re}
}

func (f *pattern) Columns() []string { return []string{f.col} }

func (f *pattern) Match(r Row) bool { return f.re.MatchString(r.Str(f.col)) }

type and []Filter

// And keeps rows matched by every non-nil filter. It returns nil when no
// filter is given.
func And(filters ...Filter) Filter {
	var out and
	for _, f := range filters {
		switch f := f.(type) {
		case nil:
		case and:
			out = append(out, f...)
		default:
			out = append(out, f)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (f and) Columns() []string {
	var cols []string
	seen := make(map[string]bool)
	for _, sub := range f {
		for _, c := range sub.Columns() {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}

func (f and) Match(r Row) bool {
	for _, sub := range f {
		if !sub.Match(r) {
			return false
		}
	}
	return true
}

func (f and) where(col func(string) string, arg func(any) string) (string, bool) {
	var parts []string
	for _, sub := range f {
		p, ok := sub.(pushdown)
		if !ok {
			continue
		}
		if clause, ok := p.where(col, arg); ok {
			parts = append(parts, clause)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " AND "), true
}

// whereClause renders the pushable part of f, if any.
func whereClause(f Filter, col func(string) string, arg func(any) string) (string, bool) {
	if f == nil {
		return "", false
	}
	p, ok := f.(pushdown)
	if !ok {
		return "", false
	}
	return p.where(col, arg)
}

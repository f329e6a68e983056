package index

import "fmt"

// NotFoundError reports a query for an id the index does not hold.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// DataQualityWarning counts source rows that were skipped or repaired
// because a field was missing or inconsistent.
type DataQualityWarning struct {
	Table  string
	Field  string
	Reason string
	Count  int
}

func (w DataQualityWarning) String() string {
	return fmt.Sprintf("%s.%s: %s (%d rows)", w.Table, w.Field, w.Reason, w.Count)
}

type warningKey struct {
	table, field, reason string
}

// Warnings aggregates DataQualityWarnings by table, field and reason, in
// first-seen order. The zero value is ready to use; it is not safe for
// concurrent use.
type Warnings struct {
	order  []warningKey
	counts map[warningKey]int
}

// Add counts one occurrence.
func (w *Warnings) Add(table, field, reason string) {
	w.AddN(table, field, reason, 1)
}

// AddN counts n occurrences.
func (w *Warnings) AddN(table, field, reason string, n int) {
	if n <= 0 {
		return
	}
	if w.counts == nil {
		w.counts = make(map[warningKey]int)
	}
	k := warningKey{table, field, reason}
	if _, ok := w.counts[k]; !ok {
		w.order = append(w.order, k)
	}
	w.counts[k] += n
}

// Merge adds every warning in other.
func (w *Warnings) Merge(other *Warnings) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		w.AddN(k.table, k.field, k.reason, other.counts[k])
	}
}

// Total returns the number of counted rows.
func (w *Warnings) Total() int {
	n := 0
	for _, c := range w.counts {
		n += c
	}
	return n
}

// List returns the aggregated warnings.
func (w *Warnings) List() []DataQualityWarning {
	out := make([]DataQualityWarning, 0, len(w.order))
	for _, k := range w.order {
		out = append(out, DataQualityWarning{Table: k.table, Field: k.field, Reason: k.reason, Count: w.counts[k]})
	}
	return out
}

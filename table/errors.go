package table

import (
	"fmt"
	"strings"
)

// SourceNotFoundError reports a table whose backing file or relation does
// not exist.
type SourceNotFoundError struct {
	Table    string
	Location string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("table %s: source not found (looked in %s)", e.Table, e.Location)
}

// SchemaError reports required columns missing from a table's header.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s: missing required columns: %s", e.Table, strings.Join(e.Missing, ", "))
}

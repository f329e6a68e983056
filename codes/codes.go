// Package codes resolves ICD diagnosis and procedure codes and lab item ids
// to display text.
package codes

import (
	"fmt"
	"strings"

	"chartindex/table"
)

// Unknown is the description of a code missing from the lookup tables.
const Unknown = "Unknown"

// Key identifies an ICD code within its revision.
type Key struct {
	Code    string
	Version int
}

func (k Key) String() string {
	return fmt.Sprintf("ICD-%d: %s", k.Version, k.Code)
}

// Lookup maps ICD codes to long titles. It is read-only after New and safe
// for concurrent use.
type Lookup struct {
	diagnoses  map[Key]string
	procedures map[Key]string
}

// New builds a Lookup from d_icd_diagnoses and d_icd_procedures rows.
// Either table may be nil.
func New(diagnoses, procedures *table.Table) *Lookup {
	return &Lookup{
		diagnoses:  titles(diagnoses),
		procedures: titles(procedures),
	}
}

func titles(t *table.Table) map[Key]string {
	out := make(map[Key]string, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		v, ok := r.Int("icd_version")
		if !ok {
			continue
		}
		k := Key{Code: r.Str("icd_code"), Version: v}
		if _, dup := out[k]; !dup {
			out[k] = r.Str("long_title")
		}
	}
	return out
}

// Describe returns the diagnosis title for code, or Unknown.
func (l *Lookup) Describe(code string, version int) string {
	if l == nil {
		return Unknown
	}
	return describe(l.diagnoses, code, version)
}

// DescribeProcedure returns the procedure title for code, or Unknown.
func (l *Lookup) DescribeProcedure(code string, version int) string {
	if l == nil {
		return Unknown
	}
	return describe(l.procedures, code, version)
}

func describe(m map[Key]string, code string, version int) string {
	if d, ok := m[Key{Code: strings.TrimSpace(code), Version: version}]; ok && d != "" {
		return d
	}
	return Unknown
}

// Len returns the number of diagnosis and procedure titles.
func (l *Lookup) Len() (diagnoses, procedures int) {
	if l == nil {
		return 0, 0
	}
	return len(l.diagnoses), len(l.procedures)
}

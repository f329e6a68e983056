package table

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"
)

func testRow(cols []string, values ...string) Row {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c] = i
	}
	return Row{values: values, index: idx}
}

func TestFilters(t *testing.T) {
	cols := []string{"hadm_id", "admission_type", "admittime", "icd_code"}
	row := testRow(cols, "22595853.0", " urgent ", "2180-05-06 22:23:00", "5723")
	from := time.Date(2180, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2180, 12, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"in set", InSet("hadm_id", map[int64]struct{}{22595853: {}}), true},
		{"not in set", InSet("hadm_id", map[int64]struct{}{1: {}}), false},
		{"empty set", InSet("hadm_id", map[int64]struct{}{}), false},
		{"equals ignores case", Equals("admission_type", "URGENT", "ELECTIVE"), true},
		{"equals miss", Equals("admission_type", "ELECTIVE"), false},
		{"time in range", TimeRange("admittime", from, to), true},
		{"time before range", TimeRange("admittime", to, time.Time{}), false},
		{"open range", TimeRange("admittime", time.Time{}, time.Time{}), true},
		{"regexp", Regexp("icd_code", regexp.MustCompile(`^57`)), true},
		{"regexp miss", Regexp("icd_code", regexp.MustCompile(`^I`)), false},
		{"and all", And(Equals("admission_type", "urgent"), nil, Regexp("icd_code", regexp.MustCompile(`23$`))), true},
		{"and one fails", And(Equals("admission_type", "urgent"), InSet("hadm_id", nil)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(row); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeRangeBlank(t *testing.T) {
	row := testRow([]string{"admittime"}, "")
	if TimeRange("admittime", time.Date(2180, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{}).Match(row) {
		t.Error("blank time should not match a bounded range")
	}
}

func TestAndFlattens(t *testing.T) {
	if And() != nil || And(nil, nil) != nil {
		t.Error("And of nothing should be nil")
	}
	single := Equals("a", "x")
	if And(nil, single) != single {
		t.Error("And of one filter should return it")
	}
	f := And(And(Equals("a", "x"), Equals("b", "y")), Equals("a", "z"))
	if got := strings.Join(f.Columns(), ","); got != "a,b" {
		t.Errorf("Columns = %q", got)
	}
}

func TestWhereClause(t *testing.T) {
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	quote := func(c string) string { return `"` + c + `"` }

	f := And(
		InSet("hadm_id", map[int64]struct{}{3: {}, 1: {}}),
		Regexp("icd_code", regexp.MustCompile(`^I`)),
		Equals("admission_type", "urgent"),
	)
	where, ok := whereClause(f, quote, arg)
	if !ok {
		t.Fatal("expected a pushable clause")
	}
	want := `"hadm_id"::bigint = ANY($1) AND upper(trim("admission_type"::text)) = ANY($2)`
	if where != want {
		t.Errorf("where = %s\nwant    %s", where, want)
	}
	if ids := args[0].([]int64); len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("ids arg = %v", args[0])
	}
	if vals := args[1].([]string); len(vals) != 1 || vals[0] != "URGENT" {
		t.Errorf("values arg = %v", args[1])
	}

	if _, ok := whereClause(Regexp("icd_code", regexp.MustCompile(`x`)), quote, arg); ok {
		t.Error("regexp must not push down")
	}
	if _, ok := whereClause(nil, quote, arg); ok {
		t.Error("nil filter must not push down")
	}
}

package codes

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"chartindex/internal/fixture"
	"chartindex/table"
)

func loadTable(t *testing.T, dir string, s table.Schema) *table.Table {
	t.Helper()
	tbl, err := table.NewLoader(table.NewCSVSource(dir), zerolog.Nop()).Load(context.Background(), s, nil, 0)
	require.NoError(t, err)
	return tbl
}

func TestDescribe(t *testing.T) {
	dir := fixture.WriteDefault(t)
	l := New(loadTable(t, dir, table.DiagnosisCodes), loadTable(t, dir, table.ProcedureCodes))

	require.Equal(t, "Portal hypertension", l.Describe("5723", 9))
	require.Equal(t, "Portal hypertension", l.Describe(" 5723 ", 9))
	require.Equal(t, "Unstable angina", l.Describe("I200", 10))
	require.Equal(t, Unknown, l.Describe("5723", 10), "version is part of the key")
	require.Equal(t, Unknown, l.Describe("ZZZ99", 10))
	require.Equal(t, "Unspecified viral hepatitis C without hepatic coma", l.Describe("07071", 9),
		"leading zeros are preserved")

	require.Equal(t, "Percutaneous abdominal drainage", l.DescribeProcedure("5491", 9))
	require.Equal(t, Unknown, l.DescribeProcedure("5723", 9), "diagnosis codes do not leak into procedures")

	dx, px := l.Len()
	require.Equal(t, 7, dx)
	require.Equal(t, 2, px)
}

func TestNilLookup(t *testing.T) {
	var l *Lookup
	require.Equal(t, Unknown, l.Describe("5723", 9))
	require.Equal(t, Unknown, New(nil, nil).DescribeProcedure("5491", 9))
}

func TestKeyString(t *testing.T) {
	require.Equal(t, "ICD-10: ZZZ99", Key{Code: "ZZZ99", Version: 10}.String())
}

func TestLabItems(t *testing.T) {
	dir := fixture.WriteDefault(t)
	li := NewLabItems(loadTable(t, dir, table.LabItems))

	require.Equal(t, 5, li.Len())
	require.Equal(t, "Glucose", li.Label(50931))
	require.Equal(t, "Chemistry", li.Category(50931))
	require.Equal(t, "Blood", li.Fluid(51237))
	require.Equal(t, "Item 50912", li.Label(50912))
	require.Equal(t, UnknownCategory, li.Category(50912))

	empty := NewLabItems(nil)
	require.Equal(t, "Item 1", empty.Label(1))
	require.Equal(t, UnknownCategory, empty.Category(1))
}

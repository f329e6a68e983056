package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chartindex/index"
	"chartindex/internal/fixture"
	"chartindex/table"
)

func buildIndex(t *testing.T, tables map[string]string) *index.Index {
	t.Helper()
	dir := t.TempDir()
	fixture.Write(t, dir, tables)
	idx, err := index.Build(context.Background(), table.NewCSVSource(dir), index.Options{})
	require.NoError(t, err)
	return idx
}

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, ok := table.ParseTime(s)
	require.True(t, ok, "bad time %q", s)
	return ts
}

func drugs(rxs []*index.PrescriptionEntry) []string {
	out := []string{}
	for _, rx := range rxs {
		out = append(out, rx.Drug)
	}
	return out
}

func labels(labs []*index.LabEvent) []string {
	out := []string{}
	for _, l := range labs {
		out = append(out, l.Label)
	}
	return out
}

func subjects(ps []*index.PatientRecord) []int64 {
	out := []int64{}
	for _, p := range ps {
		out = append(out, p.SubjectID)
	}
	return out
}

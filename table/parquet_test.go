package table

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/rs/zerolog"
)

type parquetLabRow struct {
	SubjectID int64     `parquet:"subject_id"`
	HadmID    *int64    `parquet:"hadm_id,optional"`
	ItemID    int32     `parquet:"itemid"`
	ChartTime time.Time `parquet:"charttime,timestamp(microsecond)"`
	Value     string    `parquet:"value"`
	ValueNum  *float64  `parquet:"valuenum,optional"`
	ValueUOM  string    `parquet:"valueuom"`
	RefLower  *float64  `parquet:"ref_range_lower,optional"`
	RefUpper  *float64  `parquet:"ref_range_upper,optional"`
	Flag      *string   `parquet:"flag,optional"`
}

func i64Ptr(n int64) *int64 { return &n }

// f64Ptr returns a pointer to f.
func f64Ptr(f float64) *float64 { return &f }

// strPtr returns a pointer to s.
func strPtr(s string) *string { return &s }

func writeParquet(t *testing.T, path string, rows []parquetLabRow) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := parquet.NewGenericWriter[parquetLabRow](f, parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}))
	if _, err := w.Write(rows); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestParquetSource(t *testing.T) {
	dir := t.TempDir()
	charted := time.Date(2180, 5, 7, 0, 10, 0, 0, time.UTC)
	writeParquet(t, filepath.Join(dir, "labevents.parquet"), []parquetLabRow{
		{SubjectID: 10000032, HadmID: i64Ptr(22595853), ItemID: 50931, ChartTime: charted,
			Value: "120.5", ValueNum: f64Ptr(120.5), ValueUOM: "mg/dL",
			RefLower: f64Ptr(70), RefUpper: f64Ptr(100), Flag: strPtr("abnormal")},
		{SubjectID: 10000032, ItemID: 50931, ChartTime: charted.Add(-24 * time.Hour),
			Value: "99", ValueNum: f64Ptr(99), ValueUOM: "mg/dL"},
		{SubjectID: 10000032, HadmID: i64Ptr(22595853), ItemID: 51006, ChartTime: charted.Add(30 * time.Hour),
			Value: "___", ValueUOM: "mg/dL", Flag: strPtr("delta")},
	})

	loader := NewLoader(NewParquetSource(dir), zerolog.Nop())
	tbl, err := loader.Load(context.Background(), LabEvents,
		InSet("hadm_id", map[int64]struct{}{22595853: {}}), 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}

	r := tbl.Row(0)
	if got := r.Str("charttime"); got != "2180-05-07 00:10:00" {
		t.Errorf("charttime = %q", got)
	}
	if v := r.Float("valuenum"); v == nil || *v != 120.5 {
		t.Errorf("valuenum = %v", v)
	}
	if got := r.Str("flag"); got != "abnormal" {
		t.Errorf("flag = %q", got)
	}
	if got := r.Str("priority"); got != "" {
		t.Errorf("absent optional column = %q", got)
	}

	r = tbl.Row(1)
	if r.Float("valuenum") != nil {
		t.Error("null valuenum should read as nil")
	}
	if id, _ := r.ID("itemid"); id != 51006 {
		t.Errorf("itemid = %d", id)
	}
}

func TestParquetSourceNotFound(t *testing.T) {
	_, err := NewLoader(NewParquetSource(t.TempDir()), zerolog.Nop()).
		Load(context.Background(), LabEvents, nil, 0)
	var nf *SourceNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected SourceNotFoundError, got %v", err)
	}
}

package table

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

const parquetBatch = 1024

// ParquetSource reads tables stored as flat <dir>/<name>.parquet files,
// the layout produced when MIMIC-IV is converted for columnar engines.
type ParquetSource struct {
	dir string
}

// NewParquetSource returns a source rooted at dir.
func NewParquetSource(dir string) *ParquetSource {
	return &ParquetSource{dir: dir}
}

func (s *ParquetSource) Open(_ context.Context, req Request) (RowReader, error) {
	var path string
	for _, d := range []string{s.dir, filepath.Join(s.dir, "hosp")} {
		p := filepath.Join(d, req.Table+".parquet")
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			path = p
			break
		}
	}
	if path == "" {
		return nil, &SourceNotFoundError{Table: req.Table, Location: s.dir}
	}
	return OpenParquet(path)
}

// ParquetReader streams a flat Parquet file as text records.
type ParquetReader struct {
	file    *os.File
	reader  *parquet.Reader
	headers []string
	convs   []func(parquet.Value) string

	buf  []parquet.Row
	n    int
	pos  int
	done bool
}

// OpenParquet opens path and reads its schema.
func OpenParquet(path string) (*ParquetReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(file, st.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	r := &ParquetReader{
		file:   file,
		reader: parquet.NewReader(pf),
		buf:    make([]parquet.Row, parquetBatch),
	}
	for _, f := range r.reader.Schema().Fields() {
		if !f.Leaf() {
			r.Close()
			return nil, fmt.Errorf("parquet %s: nested column %q not supported", path, f.Name())
		}
		r.headers = append(r.headers, f.Name())
		r.convs = append(r.convs, valueFormatter(f.Type().LogicalType()))
	}
	return r, nil
}

func (r *ParquetReader) Columns() []string { return r.headers }

// Next returns the next row rendered as text. Nulls become empty strings.
func (r *ParquetReader) Next() ([]string, error) {
	if r.pos >= r.n {
		if r.done {
			return nil, io.EOF
		}
		n, err := r.reader.ReadRows(r.buf)
		r.n, r.pos = n, 0
		if errors.Is(err, io.EOF) {
			r.done = true
		} else if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			return nil, io.EOF
		}
	}
	row := r.buf[r.pos]
	r.pos++

	out := make([]string, len(r.headers))
	for _, v := range row {
		c := v.Column()
		if c < 0 || c >= len(out) || v.IsNull() {
			continue
		}
		out[c] = r.convs[c](v)
	}
	return out, nil
}

func (r *ParquetReader) Close() error {
	if r.reader != nil {
		r.reader.Close()
	}
	return r.file.Close()
}

func valueFormatter(lt *format.LogicalType) func(parquet.Value) string {
	switch {
	case lt != nil && lt.Timestamp != nil:
		unit := lt.Timestamp.Unit
		return func(v parquet.Value) string {
			n := v.Int64()
			var t time.Time
			switch {
			case unit.Millis != nil:
				t = time.UnixMilli(n)
			case unit.Nanos != nil:
				t = time.Unix(0, n)
			default:
				t = time.UnixMicro(n)
			}
			return t.UTC().Format("2006-01-02 15:04:05")
		}
	case lt != nil && lt.Date != nil:
		return func(v parquet.Value) string {
			return time.Unix(int64(v.Int32())*86400, 0).UTC().Format("2006-01-02")
		}
	}
	return formatValue
}

func formatValue(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return v.String()
}

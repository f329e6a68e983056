package table

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/xi2/xz"
)

// csvExtensions are tried in order for each table.
var csvExtensions = []string{".csv.gz", ".csv.zst", ".csv.xz", ".csv"}

// CSVSource reads tables from a MIMIC-IV download directory. A table is
// found as <dir>/<name><ext> or <dir>/hosp/<name><ext>.
type CSVSource struct {
	dir string
}

// NewCSVSource returns a source rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// Path returns the file backing table, or a SourceNotFoundError.
func (s *CSVSource) Path(table string) (string, error) {
	for _, d := range []string{s.dir, filepath.Join(s.dir, "hosp")} {
		for _, ext := range csvExtensions {
			p := filepath.Join(d, table+ext)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p, nil
			}
		}
	}
	return "", &SourceNotFoundError{Table: table, Location: s.dir}
}

func (s *CSVSource) Open(_ context.Context, req Request) (RowReader, error) {
	p, err := s.Path(req.Table)
	if err != nil {
		return nil, err
	}
	r, err := OpenCSV(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &SourceNotFoundError{Table: req.Table, Location: p}
	}
	return r, err
}

// CSVReader streams a delimited table, decompressing by file suffix.
type CSVReader struct {
	file    *os.File
	decomp  io.Closer
	csv     *csv.Reader
	headers []string
}

// OpenCSV opens path and reads its header row.
func OpenCSV(path string) (*CSVReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var (
		src    io.Reader = file
		decomp io.Closer
	)
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("gzip reader %s: %w", path, err)
		}
		src, decomp = gz, gz
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("zstd reader %s: %w", path, err)
		}
		rc := zr.IOReadCloser()
		src, decomp = rc, rc
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(file, 0)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("xz reader %s: %w", path, err)
		}
		src = xr
	}

	bufReader := bufio.NewReaderSize(src, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := bufReader.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		bufReader.Discard(3)
	}

	reader := csv.NewReader(bufReader)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	r := &CSVReader{file: file, decomp: decomp, csv: reader}
	r.headers, err = reader.Read()
	if err != nil {
		r.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header %s: empty file", path)
		}
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	return r, nil
}

func (r *CSVReader) Columns() []string { return r.headers }

// Next returns the next record, or nil, io.EOF when done.
func (r *CSVReader) Next() ([]string, error) {
	return r.csv.Read()
}

func (r *CSVReader) Close() error {
	if r.decomp != nil {
		r.decomp.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

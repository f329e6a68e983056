package table

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultChunkSize is the number of raw rows read between filter passes.
const DefaultChunkSize = 100000

// Stats summarizes one table scan.
type Stats struct {
	Table   string
	Read    int64
	Kept    int64
	Elapsed time.Duration
}

// Loader reads schema-validated tables from a Source.
type Loader struct {
	src           Source
	logger        zerolog.Logger
	progressEvery time.Duration
}

// NewLoader returns a Loader over src.
func NewLoader(src Source, logger zerolog.Logger) *Loader {
	return &Loader{src: src, logger: logger, progressEvery: 5 * time.Second}
}

// Load materializes the rows of s that pass filter.
func (l *Loader) Load(ctx context.Context, s Schema, filter Filter, chunkSize int) (*Table, error) {
	t := newTable(s.Name, s.Columns())
	_, err := l.Scan(ctx, s, filter, chunkSize, func(r Row) error {
		t.Rows = append(t.Rows, r.values)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Scan streams s in chunks of chunkSize raw rows, calling fn for every row
// that passes filter. Rows handed to fn are not reused.
func (l *Loader) Scan(ctx context.Context, s Schema, filter Filter, chunkSize int, fn func(Row) error) (Stats, error) {
	start := time.Now()
	stats := Stats{Table: s.Name}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	cols := s.Columns()
	rr, err := l.src.Open(ctx, Request{Table: s.Name, Columns: cols, Filter: filter})
	if err != nil {
		return stats, err
	}
	defer rr.Close()

	positions, err := project(s, rr.Columns())
	if err != nil {
		return stats, err
	}
	projIdx := make(map[string]int, len(cols))
	for i, c := range cols {
		projIdx[c] = i
	}
	if filter != nil {
		var missing []string
		for _, c := range filter.Columns() {
			if _, ok := projIdx[c]; !ok || positions[projIdx[c]] < 0 {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return stats, &SchemaError{Table: s.Name, Missing: missing}
		}
	}

	l.logger.Debug().Str("table", s.Name).Int("chunk_size", chunkSize).Msg("scanning table")

	lastProgress := start
	chunk := make([][]string, 0, min(chunkSize, 4096))
	for {
		chunk = chunk[:0]
		eof := false
		for len(chunk) < chunkSize {
			raw, err := rr.Next()
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if err != nil {
				return stats, fmt.Errorf("read %s row %d: %w", s.Name, stats.Read+1, err)
			}
			// Skip empty rows
			if len(raw) == 0 || (len(raw) == 1 && raw[0] == "") {
				continue
			}
			stats.Read++
			chunk = append(chunk, projectRow(raw, positions))
		}

		if err := ctx.Err(); err != nil {
			return stats, err
		}
		for _, values := range chunk {
			r := Row{values: values, index: projIdx}
			if filter != nil && !filter.Match(r) {
				continue
			}
			stats.Kept++
			if err := fn(r); err != nil {
				return stats, err
			}
		}

		if time.Since(lastProgress) > l.progressEvery {
			elapsed := time.Since(start)
			l.logger.Info().
				Str("table", s.Name).
				Int64("read", stats.Read).
				Int64("kept", stats.Kept).
				Float64("rows_per_sec", float64(stats.Read)/elapsed.Seconds()).
				Msg("progress")
			lastProgress = time.Now()
		}
		if eof {
			break
		}
	}

	stats.Elapsed = time.Since(start)
	l.logger.Info().
		Str("table", s.Name).
		Int64("read", stats.Read).
		Int64("kept", stats.Kept).
		Dur("elapsed", stats.Elapsed).
		Msg("table loaded")
	return stats, nil
}

// project maps each schema column to its position in header, -1 for absent
// optional columns. Header names compare case-insensitively.
func project(s Schema, header []string) ([]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, c := range s.Required {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Table: s.Name, Missing: missing}
	}
	cols := s.Columns()
	positions := make([]int, len(cols))
	for i, c := range cols {
		p, ok := idx[c]
		if !ok {
			p = -1
		}
		positions[i] = p
	}
	return positions, nil
}

func projectRow(raw []string, positions []int) []string {
	out := make([]string, len(positions))
	for i, p := range positions {
		if p >= 0 && p < len(raw) {
			out[i] = raw[p]
		}
	}
	return out
}

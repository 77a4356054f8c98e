// Package ingest turns uploaded CSV files, or ZIP archives of CSV files, into
// cleaned records for the analytics services.
package ingest

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

var (
	ErrEmptyFile       = errors.New("empty file")
	ErrMissingColumn   = errors.New("missing required column")
	ErrNoCSVInArchive  = errors.New("archive contains no csv files")
	ErrUnsupportedFile = errors.New("unsupported file type, expected .csv or .zip")
	ErrNoValidRows     = errors.New("no valid records found")
	ErrBadArchive      = errors.New("unreadable zip archive")
)

// Report describes what an ingest call read and kept.
type Report struct {
	Files    []string
	RowsRead int
	RowsKept int
}

type csvSource struct {
	name string
	open func() (io.ReadCloser, error)
}

// sources expands an upload into the CSV files it contains.
func sources(name string, r io.ReaderAt, size int64) ([]csvSource, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return []csvSource{{
			name: name,
			open: func() (io.ReadCloser, error) {
				return io.NopCloser(io.NewSectionReader(r, 0, size)), nil
			},
		}}, nil

	case ".zip":
		zr, err := zip.NewReader(r, size)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
		}
		var out []csvSource
		for _, f := range zr.File {
			if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
				continue
			}
			if !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
				continue
			}
			out = append(out, csvSource{name: f.Name, open: f.Open})
		}
		if len(out) == 0 {
			return nil, ErrNoCSVInArchive
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
	}
}

func openFile(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat file: %w", err)
	}
	return f, info.Size(), nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader
}

// columnIndex maps required header names to their positions.
func columnIndex(header []string, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	var missing []string
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// readBatches streams records after the header to fn in chunks of batchSize.
func readBatches(ctx context.Context, reader *csv.Reader, fn func([][]string) error) (int, error) {
	batch := make([][]string, 0, batchSize)
	read := 0
	for {
		select {
		case <-ctx.Done():
			return read, ctx.Err()
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				read++
				continue
			}
			return read, fmt.Errorf("read csv: %w", err)
		}

		read++
		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := fn(batch); err != nil {
				return read, err
			}
			batch = make([][]string, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return read, err
		}
	}
	return read, nil
}

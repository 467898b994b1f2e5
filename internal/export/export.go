// Package export writes transformed collections out as Parquet files, one row
// per object per output timestamp.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/trajstore-lab/trajstore/internal/core/interval"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"github.com/trajstore-lab/trajstore/internal/rangeread"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const timestampField = "timestamp"

// Options shapes one export.
type Options struct {
	// Compression is one of zstd, snappy or none.
	Compression string

	// RowGroupSize is the number of rows buffered before a row group is flushed.
	RowGroupSize int

	// Increment walks the collection in timestamp steps of this size; 0 reads it in one query.
	Increment float64

	Lower *interval.Bound
	Upper *interval.Bound
}

// Result summarizes one export.
type Result struct {
	Documents int64
	Rows      int64
	RowGroups int
	Duration  time.Duration
}

// Write walks the transformed collection behind finder in timestamp order and
// writes its rows to w. An empty collection produces a valid file with no rows.
func Write(ctx context.Context, finder storage.Finder, w io.Writer, opts Options) (*Result, error) {
	codec, err := codecFor(opts.Compression)
	if err != nil {
		return nil, err
	}
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = 100000
	}

	start := time.Now()
	res := &Result{}
	pw := parquet.NewGenericWriter[Row](w, parquet.Compression(codec))

	q := rangeread.Query{
		Parameter: timestampField,
		Lower:     opts.Lower,
		Upper:     opts.Upper,
		Increment: opts.Increment,
	}
	it, err := rangeread.Open(ctx, finder, q)
	switch {
	case errors.Is(err, storage.ErrNoData):
		slog.Info("[Export] Collection is empty, writing file with no rows")
	case err != nil:
		return nil, fmt.Errorf("export: open range: %w", err)
	default:
		buffered := 0
		_, err = rangeread.Drain(ctx, it, func(doc bson.Raw) error {
			rows, err := rowsOf(doc)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			res.Documents++
			if len(rows) == 0 {
				return nil
			}
			if _, err := pw.Write(rows); err != nil {
				return fmt.Errorf("export: write rows: %w", err)
			}
			res.Rows += int64(len(rows))
			buffered += len(rows)
			if buffered >= opts.RowGroupSize {
				if err := pw.Flush(); err != nil {
					return fmt.Errorf("export: flush row group: %w", err)
				}
				res.RowGroups++
				buffered = 0
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if buffered > 0 {
			res.RowGroups++
		}
	}

	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("export: close writer: %w", err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// WriteFile exports into path, creating parent directories as needed. A
// failed export removes the partial file.
func WriteFile(ctx context.Context, finder storage.Finder, path string, opts Options) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("export: create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("export: create file: %w", err)
	}

	res, err := Write(ctx, finder, f, opts)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("export: close file: %w", err)
	}

	slog.Info("[Export] Wrote parquet file",
		"path", path,
		"documents", res.Documents,
		"rows", res.Rows,
		"row_groups", res.RowGroups,
		"duration", res.Duration,
	)
	return res, nil
}

func codecFor(name string) (compress.Codec, error) {
	switch name {
	case "zstd", "":
		return &parquet.Zstd, nil
	case "snappy":
		return &parquet.Snappy, nil
	case "none":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("export: unsupported compression %q", name)
	}
}

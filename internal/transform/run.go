package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"github.com/trajstore-lab/trajstore/internal/core/aggregation"
	"github.com/trajstore-lab/trajstore/internal/core/interval"
	"github.com/trajstore-lab/trajstore/internal/core/partition"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"github.com/trajstore-lab/trajstore/internal/metrics"
	"github.com/trajstore-lab/trajstore/internal/rangeread"
	"golang.org/x/sync/errgroup"
)

// Deps are the stores a run reads from and writes to.
// Metadata, Runs and Metrics are optional.
type Deps struct {
	Source   storage.Finder
	Output   storage.BulkWriter
	Metadata storage.MetadataWriter
	Runs     storage.RunStore
	Metrics  *metrics.Collectors
}

// Run transforms the source collection into the output collection.
//
// One pipeline runs per (direction, chunk); pipelines share nothing but the
// writer. Pipelines of both directions, and of neighbouring chunks, upsert the
// same output timestamps concurrently, so an output that implements
// storage.KeyIndexer gets a unique index on KeyField before anything is
// written. The run ends once every pipeline has drained its cache and the
// writer has written every queued upsert. Cancelling ctx stops reading but
// still flushes everything already read; the report is returned in that case
// together with ctx's error.
func Run(ctx context.Context, deps Deps, opts Options) (*Report, error) {
	opts = opts.normalized()
	if deps.Source == nil || deps.Output == nil {
		return nil, errors.New("transform: source and output are required")
	}
	grid, err := aggregation.NewGrid(opts.Period)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	run := &v1.TransformRun{
		ID:               uuid.New(),
		SourceCollection: opts.SourceCollection,
		OutputCollection: opts.OutputCollection,
		StartedAt:        time.Now().UTC(),
	}

	chunks, err := chunkRanges(ctx, deps.Source, opts)
	if err != nil {
		return nil, fmt.Errorf("transform: resolve %s range: %w", opts.PartitionKey, err)
	}

	slog.Info("[Transform] Starting run",
		"run_id", run.ID,
		"source", opts.SourceCollection,
		"output", opts.OutputCollection,
		"directions", opts.Directions,
		"chunks", len(chunks),
		"period", opts.Period,
		"stale_threshold", opts.StaleThreshold,
		"batch_size", opts.BatchSize,
		"writers", opts.WriterCount,
	)

	if ix, ok := deps.Output.(storage.KeyIndexer); ok {
		if err := ix.EnsureUniqueKey(ctx, KeyField); err != nil {
			return nil, fmt.Errorf("transform: index %s.%s: %w", opts.OutputCollection, KeyField, err)
		}
	}

	writer := NewWriter(ctx, deps.Output, WriterOptions{
		Collection:    opts.OutputCollection,
		BatchSize:     opts.BatchSize,
		QueueSize:     opts.QueueSize,
		Workers:       opts.WriterCount,
		MaxRetries:    opts.MaxRetries,
		RetryInterval: opts.RetryInterval,
		Metrics:       deps.Metrics,
	})

	var pipelines []*Pipeline
	g, gctx := errgroup.WithContext(ctx)
	for _, dir := range opts.Directions {
		for i, chunk := range chunks {
			p, err := NewPipeline(PipelineConfig{
				Direction:      dir,
				Chunk:          i,
				Grid:           grid,
				Layout:         opts.layout(),
				StaleThreshold: opts.StaleThreshold,
				LatePolicy:     opts.LatePolicy,
				MaxSamples:     opts.MaxSamples,
				Metrics:        deps.Metrics,
			}, writer)
			if err != nil {
				writer.Close()
				return nil, fmt.Errorf("transform: %w", err)
			}
			pipelines = append(pipelines, p)

			q := rangeread.Query{
				Parameter:  opts.PartitionKey,
				Lower:      chunk.lower,
				Upper:      chunk.upper,
				Increment:  opts.ReadIncrement,
				Predicates: append([]rangeread.Predicate{rangeread.Eq("direction", dir)}, opts.Predicates...),
			}
			g.Go(func() error {
				it, err := rangeread.Open(gctx, deps.Source, q)
				if errors.Is(err, storage.ErrNoData) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("open %s chunk %d: %w", p.label, p.cfg.Chunk, err)
				}
				return p.Consume(gctx, it)
			})
		}
	}

	pipeErr := g.Wait()
	writes, writeErr := writer.Close()

	report := newReport(run.ID, opts, grid, pipelines, writes)
	run.FinishedAt = time.Now().UTC()
	report.Duration = run.Duration()

	runErr := errors.Join(pipeErr, writeErr)
	switch {
	case runErr == nil:
		run.Status = v1.RunStatusSucceeded
	case ctx.Err() != nil:
		run.Status = v1.RunStatusCancelled
		runErr = errors.Join(ctx.Err(), writeErr)
	default:
		run.Status = v1.RunStatusFailed
	}
	report.Status = run.Status

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalDrainTimeout)
	defer cancel()

	if run.Status == v1.RunStatusSucceeded && deps.Metadata != nil {
		if err := deps.Metadata.UpsertMetadata(finishCtx, report.Metadata); err != nil {
			runErr = fmt.Errorf("upsert metadata: %w", err)
			run.Status = v1.RunStatusFailed
			report.Status = run.Status
		}
	}

	run.RecordsProcessed = report.RecordsProcessed
	run.RecordsSkipped = report.RecordsSkipped
	run.KeysFlushed = report.KeysFlushed
	run.LateSamples = report.LateSamples
	run.ValidationBypassed = report.Writes.ValidationBypassed
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if deps.Runs != nil {
		if err := deps.Runs.RecordRun(finishCtx, run); err != nil {
			slog.Warn("[Transform] Failed to record run in ledger", "run_id", run.ID, "error", err)
		}
	}

	logFinished(report)
	if runErr != nil {
		return report, fmt.Errorf("transform: %w", runErr)
	}
	return report, nil
}

type chunkRange struct {
	lower *interval.Bound
	upper *interval.Bound
}

// chunkRanges returns the key ranges pipelines run over. A single chunk keeps
// the caller's bounds as given; several chunks need both bounds, so missing
// ones are resolved from the source first.
func chunkRanges(ctx context.Context, source storage.Finder, opts Options) ([]chunkRange, error) {
	if opts.Chunks == 1 {
		var c chunkRange
		if opts.Lower != nil {
			b := interval.Closed(*opts.Lower)
			c.lower = &b
		}
		if opts.Upper != nil {
			b := interval.Closed(*opts.Upper)
			c.upper = &b
		}
		return []chunkRange{c}, nil
	}

	lo, hi := 0.0, 0.0
	var err error
	if opts.Lower != nil {
		lo = *opts.Lower
	} else if lo, err = source.ResolveExtremum(ctx, opts.PartitionKey, storage.Ascending); err != nil {
		return nil, err
	}
	if opts.Upper != nil {
		hi = *opts.Upper
	} else if hi, err = source.ResolveExtremum(ctx, opts.PartitionKey, storage.Descending); err != nil {
		return nil, err
	}

	parts, err := partition.Split(lo, hi, opts.Chunks)
	if err != nil {
		return nil, err
	}
	out := make([]chunkRange, len(parts))
	for i, iv := range parts {
		lower, upper := iv.Lower, iv.Upper
		out[i] = chunkRange{lower: &lower, upper: &upper}
	}
	return out, nil
}

func finiteOr(v, fallback float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fallback
	}
	return v
}

package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"github.com/trajstore-lab/trajstore/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// ErrWriterClosed is returned by Submit once the writer has stopped accepting work.
var ErrWriterClosed = errors.New("writer closed")

// WriteStats summarizes everything a Writer sent to the store.
type WriteStats struct {
	Batches            int64 `json:"batches"`
	Upserts            int64 `json:"upserts"`
	Matched            int64 `json:"matched"`
	Modified           int64 `json:"modified"`
	Upserted           int64 `json:"upserted"`
	Retries            int64 `json:"retries"`
	ValidationBypassed int64 `json:"validation_bypassed"`
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	Collection    string
	BatchSize     int
	QueueSize     int
	Workers       int
	MaxRetries    int
	RetryInterval time.Duration
	Metrics       *metrics.Collectors
}

// Writer is the single consumer side of the transform: pipelines submit
// upserts into a bounded queue and a fixed set of workers group them into
// unordered bulk writes.
//
// Close is the only completion signal. Workers write their last partial batch
// once the queue is closed and drained.
type Writer struct {
	out  storage.BulkWriter
	opts WriterOptions

	queue chan storage.Upsert
	group *errgroup.Group
	gctx  context.Context

	closeOnce sync.Once
	mu        sync.Mutex
	stats     WriteStats
}

// NewWriter starts the writer workers. The workers are detached from ctx
// cancellation so pipelines can still flush their final drain after a
// shutdown request; they stop on the first permanent write failure.
func NewWriter(ctx context.Context, out storage.BulkWriter, opts WriterOptions) *Writer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWriterCount
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.BatchSize * opts.Workers
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}

	group, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	w := &Writer{
		out:   out,
		opts:  opts,
		queue: make(chan storage.Upsert, opts.QueueSize),
		group: group,
		gctx:  gctx,
	}
	for i := 0; i < opts.Workers; i++ {
		worker := i
		group.Go(func() error { return w.work(worker) })
	}

	slog.Debug("[Writer] Started",
		"collection", opts.Collection,
		"workers", opts.Workers,
		"batch_size", opts.BatchSize,
		"queue_size", opts.QueueSize,
	)
	return w
}

// Submit enqueues one upsert, blocking while the queue is full.
// It must not be called after Close.
func (w *Writer) Submit(ctx context.Context, op storage.Upsert) error {
	select {
	case w.queue <- op:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.gctx.Done():
		return ErrWriterClosed
	}
}

// Close stops accepting work, waits for every queued upsert to be written and
// returns the accumulated stats with the first write failure, if any.
func (w *Writer) Close() (WriteStats, error) {
	w.closeOnce.Do(func() { close(w.queue) })
	err := w.group.Wait()
	return w.Stats(), err
}

// Stats returns a snapshot of the counters.
func (w *Writer) Stats() WriteStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Writer) work(worker int) error {
	batch := make([]storage.Upsert, 0, w.opts.BatchSize)
	for op := range w.queue {
		if w.gctx.Err() != nil {
			// Another worker failed; keep draining so producers never block.
			continue
		}
		batch = append(batch, op)
		if len(batch) < w.opts.BatchSize {
			continue
		}
		if err := w.flush(batch); err != nil {
			return fmt.Errorf("writer %d: %w", worker, err)
		}
		batch = make([]storage.Upsert, 0, w.opts.BatchSize)
	}
	if len(batch) > 0 && w.gctx.Err() == nil {
		if err := w.flush(batch); err != nil {
			return fmt.Errorf("writer %d: final batch: %w", worker, err)
		}
	}
	return nil
}

func (w *Writer) flush(batch []storage.Upsert) error {
	var res storage.BulkResult
	operation := func() error {
		start := time.Now()
		r, err := w.out.BulkUpsert(w.gctx, batch)
		if err != nil {
			w.opts.Metrics.BulkWrite("error", time.Since(start))
			if errors.Is(err, storage.ErrTransient) {
				return err
			}
			return backoff.Permanent(err)
		}
		w.opts.Metrics.BulkWrite("ok", time.Since(start))
		res = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.opts.RetryInterval
	retries := int64(0)
	notify := func(err error, wait time.Duration) {
		retries++
		w.opts.Metrics.BulkRetry()
		slog.Warn("[Writer] Bulk upsert failed, retrying",
			"collection", w.opts.Collection,
			"batch_size", len(batch),
			"attempt", retries,
			"wait", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(w.opts.MaxRetries)), w.gctx), notify)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Retries += retries
	if err != nil {
		return fmt.Errorf("bulk upsert %d ops: %w", len(batch), err)
	}

	w.stats.Batches++
	w.stats.Upserts += int64(len(batch))
	w.stats.Matched += res.Matched
	w.stats.Modified += res.Modified
	w.stats.Upserted += res.Upserted
	if res.ValidationBypassed {
		w.stats.ValidationBypassed++
		w.opts.Metrics.ValidationBypass(w.opts.Collection)
		slog.Warn("[Writer] Batch rejected by validator, written with validation bypassed",
			"collection", w.opts.Collection,
			"batch_size", len(batch),
		)
	}
	return nil
}

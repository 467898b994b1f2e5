package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/DataDog/sketches-go/ddsketch"
	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"github.com/trajstore-lab/trajstore/internal/core/aggregation"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"github.com/trajstore-lab/trajstore/internal/metrics"
	"github.com/trajstore-lab/trajstore/internal/rangeread"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Sink receives the upserts a pipeline produces. *Writer is the production sink.
type Sink interface {
	Submit(ctx context.Context, op storage.Upsert) error
}

// PipelineStats counts what one pipeline did.
type PipelineStats struct {
	RecordsProcessed int64
	RecordsSkipped   int64
	KeysFlushed      int64
	LateSamples      int64
	LateWritten      int64

	// Output range covered by the flushed keys and the merged samples.
	MinTime float64
	MaxTime float64
	MinX    float64
	MaxX    float64
}

func (s *PipelineStats) observe(t, x float64) {
	s.MinTime = math.Min(s.MinTime, t)
	s.MaxTime = math.Max(s.MaxTime, t)
	s.MinX = math.Min(s.MinX, x)
	s.MaxX = math.Max(s.MaxX, x)
}

// PipelineConfig describes the slice of the source one pipeline owns.
// MaxSamples caps the ticks one record resamples onto; zero means the default.
type PipelineConfig struct {
	Direction      int
	Chunk          int
	Grid           aggregation.Grid
	Layout         aggregation.Layout
	StaleThreshold int64
	LatePolicy     LatePolicy
	MaxSamples     int
	Metrics        *metrics.Collectors
}

// Pipeline turns source trajectories of one direction into per-timestamp upserts.
//
// Records must arrive in ascending partition-key order. Each record advances
// the cache clock once, its resampled points are merged under their output
// timestamps, and any timestamp that has gone untouched for more than the
// stale threshold is flushed to the sink. A Pipeline is not safe for
// concurrent use.
type Pipeline struct {
	cfg   PipelineConfig
	label string
	chunk string
	cache *aggregation.Cache[aggregation.Attributes]
	sink  Sink
	gaps  *ddsketch.DDSketch
	stats PipelineStats
}

// NewPipeline creates a pipeline that forwards flushed timestamps to sink.
func NewPipeline(cfg PipelineConfig, sink Sink) (*Pipeline, error) {
	label, err := v1.DirectionLabel(cfg.Direction)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.Grid.Period <= 0 {
		return nil, fmt.Errorf("pipeline: period must be positive, got %v", cfg.Grid.Period)
	}
	if cfg.LatePolicy == "" {
		cfg.LatePolicy = LateDrop
	}
	gaps, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		return nil, fmt.Errorf("pipeline: touch gap sketch: %w", err)
	}
	return &Pipeline{
		cfg:   cfg,
		label: label,
		chunk: strconv.Itoa(cfg.Chunk),
		cache: aggregation.NewCache[aggregation.Attributes](),
		sink:  sink,
		gaps:  gaps,
		stats: PipelineStats{
			MinTime: math.Inf(1), MaxTime: math.Inf(-1),
			MinX: math.Inf(1), MaxX: math.Inf(-1),
		},
	}, nil
}

// Consume feeds every document of it through Process, then drains the cache.
//
// When ctx is cancelled no further records are read, but whatever is resident
// in the cache is still handed to the sink before Consume returns ctx's error.
func (p *Pipeline) Consume(ctx context.Context, it *rangeread.Iterator) error {
	readErr := p.consume(ctx, it)

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalDrainTimeout)
	defer cancel()
	if err := it.Close(drainCtx); err != nil && readErr == nil {
		readErr = fmt.Errorf("close iterator: %w", err)
	}
	if err := p.Finish(drainCtx); err != nil {
		return errors.Join(readErr, err)
	}
	return readErr
}

func (p *Pipeline) consume(ctx context.Context, it *rangeread.Iterator) error {
	// Records already read are always forwarded; cancellation only stops reading.
	sinkCtx := context.WithoutCancel(ctx)
	for it.Next(ctx) {
		cur := it.Batch().Cursor
		for cur.Next(ctx) {
			if err := p.Process(sinkCtx, cur.Current()); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		if err := cur.Err(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read batch %d: %w", it.Batch().Step, err)
		}
	}
	if err := it.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("range read: %w", err)
	}
	return ctx.Err()
}

// Process handles one source document. A document that cannot be decoded or
// resampled is skipped and counted; only sink failures are returned.
func (p *Pipeline) Process(ctx context.Context, raw bson.Raw) error {
	traj, err := v1.DecodeTrajectory(raw)
	if err == nil && traj.Direction != p.cfg.Direction {
		err = fmt.Errorf("%w: direction %d in %s pipeline", v1.ErrMalformedRecord, traj.Direction, p.label)
	}
	var samples []aggregation.Sample
	if err == nil {
		samples, err = Resample(traj, p.cfg.Grid, p.cfg.MaxSamples)
		if err != nil && !errors.Is(err, v1.ErrMalformedRecord) {
			err = fmt.Errorf("%w: id %s: %v", v1.ErrMalformedRecord, traj.ID, err)
		}
	}
	if err != nil {
		p.stats.RecordsSkipped++
		p.cfg.Metrics.RecordSkipped(p.label)
		slog.Warn("[Transform] Skipping malformed record",
			"direction", p.label,
			"chunk", p.cfg.Chunk,
			"error", err,
		)
		return nil
	}

	p.cache.Tick()
	p.stats.RecordsProcessed++
	p.cfg.Metrics.RecordProcessed(p.label)

	late := 0
	for _, s := range samples {
		tuple := p.cfg.Layout.Tuple(s, traj.Direction, traj.Class, traj.Node)
		res, err := p.cache.Merge(s.Tick, traj.ID, tuple)
		if errors.Is(err, aggregation.ErrAlreadyFlushed) {
			late++
			if p.cfg.LatePolicy == LateWrite {
				if err := p.emit(ctx, s.Tick, map[string]aggregation.Attributes{traj.ID: tuple}); err != nil {
					return err
				}
				p.stats.LateWritten++
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("merge tick %d: %w", s.Tick, err)
		}
		if !res.Created {
			p.gaps.Add(float64(res.Gap))
		}
		p.stats.observe(p.cfg.Grid.Key(s.Tick), tuple[0])
	}
	if late > 0 {
		p.stats.LateSamples += int64(late)
		p.cfg.Metrics.LateSample(p.label, late)
		slog.Warn("[Transform] Samples arrived after their timestamp was flushed",
			"direction", p.label,
			"chunk", p.cfg.Chunk,
			"id", traj.ID,
			"late_samples", late,
			"policy", p.cfg.LatePolicy,
			"stale_threshold", p.cfg.StaleThreshold,
		)
	}

	return p.flush(ctx, p.cache.DrainReady(p.cfg.StaleThreshold))
}

// Finish drains every resident timestamp to the sink.
func (p *Pipeline) Finish(ctx context.Context) error {
	entries := p.cache.DrainAll()
	slog.Debug("[Transform] Final drain",
		"direction", p.label,
		"chunk", p.cfg.Chunk,
		"keys", len(entries),
	)
	return p.flush(ctx, entries)
}

// Stats returns the counters accumulated so far.
func (p *Pipeline) Stats() PipelineStats {
	return p.stats
}

// TouchGaps returns the sketch of staleness values observed on re-touched timestamps.
func (p *Pipeline) TouchGaps() *ddsketch.DDSketch {
	return p.gaps
}

func (p *Pipeline) flush(ctx context.Context, entries []aggregation.Entry[aggregation.Attributes]) error {
	for _, e := range entries {
		if err := p.emit(ctx, e.Tick, e.Values); err != nil {
			return err
		}
		p.stats.KeysFlushed++
	}
	p.cfg.Metrics.KeysFlushedAdd(p.label, len(entries))
	p.cfg.Metrics.SetCacheResident(p.label, p.chunk, p.cache.Len())
	return nil
}

func (p *Pipeline) emit(ctx context.Context, tick int64, values map[string]aggregation.Attributes) error {
	if err := p.sink.Submit(ctx, Upsert(p.cfg.Grid, p.label, tick, values)); err != nil {
		return fmt.Errorf("submit timestamp %v: %w", p.cfg.Grid.Key(tick), err)
	}
	return nil
}

// KeyField is the output document field holding the rounded timestamp. Output
// collections carry a unique index on it.
const KeyField = "timestamp"

// Upsert builds the field-level upsert for one output timestamp: the document
// keyed by the rounded timestamp gets <label>.<id> set for every object.
// Fields are ordered by object id.
func Upsert(grid aggregation.Grid, label string, tick int64, values map[string]aggregation.Attributes) storage.Upsert {
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	set := make(bson.D, 0, len(ids))
	for _, id := range ids {
		set = append(set, bson.E{Key: label + "." + id, Value: []float64(values[id])})
	}
	return storage.Upsert{
		Filter: bson.D{{Key: KeyField, Value: grid.Key(tick)}},
		Set:    set,
	}
}

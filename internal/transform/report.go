package transform

import (
	"log/slog"
	"math"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/google/uuid"
	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"github.com/trajstore-lab/trajstore/internal/core/aggregation"
)

// GapSummary describes how stale output timestamps were, in source records,
// at the moment a later record touched them again. A P99 close to the stale
// threshold means the threshold is about to start dropping samples.
type GapSummary struct {
	Count float64 `json:"count"`
	P50   float64 `json:"p50"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// Report is the outcome of one Run.
type Report struct {
	RunID            uuid.UUID     `json:"run_id"`
	Status           string        `json:"status"`
	RecordsProcessed int64         `json:"records_processed"`
	RecordsSkipped   int64         `json:"records_skipped"`
	KeysFlushed      int64         `json:"keys_flushed"`
	LateSamples      int64         `json:"late_samples"`
	LateWritten      int64         `json:"late_written"`
	Writes           WriteStats    `json:"writes"`
	TouchGap         GapSummary    `json:"touch_gap"`
	Duration         time.Duration `json:"duration"`

	Metadata v1.CollectionMetadata `json:"metadata"`
}

func newReport(id uuid.UUID, opts Options, grid aggregation.Grid, pipelines []*Pipeline, writes WriteStats) *Report {
	r := &Report{RunID: id, Writes: writes}

	minT, maxT := math.Inf(1), math.Inf(-1)
	minX, maxX := math.Inf(1), math.Inf(-1)
	gaps, _ := ddsketch.NewDefaultDDSketch(0.01)
	for _, p := range pipelines {
		s := p.Stats()
		r.RecordsProcessed += s.RecordsProcessed
		r.RecordsSkipped += s.RecordsSkipped
		r.KeysFlushed += s.KeysFlushed
		r.LateSamples += s.LateSamples
		r.LateWritten += s.LateWritten
		minT, maxT = math.Min(minT, s.MinTime), math.Max(maxT, s.MaxTime)
		minX, maxX = math.Min(minX, s.MinX), math.Max(maxX, s.MaxX)
		if gaps != nil {
			gaps.MergeWith(p.TouchGaps())
		}
	}
	r.TouchGap = summarize(gaps)

	r.Metadata = v1.CollectionMetadata{
		Collection:        opts.OutputCollection,
		StartTime:         finiteOr(minT, 0),
		EndTime:           finiteOr(maxT, 0),
		NumObjects:        r.RecordsProcessed,
		StartX:            aggregation.RoundFloat(finiteOr(minX, 0), aggregation.TimestampPlaces),
		EndX:              aggregation.RoundFloat(finiteOr(maxX, 0), aggregation.TimestampPlaces),
		RoadSegmentLength: opts.RoadSegmentLength,
		Schema:            opts.layout().Schema(),
		SourceCollection:  opts.SourceCollection,
		Period:            grid.Period,
	}
	return r
}

func summarize(sk *ddsketch.DDSketch) GapSummary {
	if sk == nil || sk.IsEmpty() {
		return GapSummary{}
	}
	s := GapSummary{Count: sk.GetCount()}
	s.P50, _ = sk.GetValueAtQuantile(0.50)
	s.P99, _ = sk.GetValueAtQuantile(0.99)
	s.Max, _ = sk.GetMaxValue()
	return s
}

func logFinished(r *Report) {
	attrs := []any{
		"run_id", r.RunID,
		"status", r.Status,
		"records_processed", r.RecordsProcessed,
		"records_skipped", r.RecordsSkipped,
		"keys_flushed", r.KeysFlushed,
		"batches", r.Writes.Batches,
		"retries", r.Writes.Retries,
		"touch_gap_p99", r.TouchGap.P99,
		"duration", r.Duration,
	}
	if r.LateSamples > 0 {
		// Each late sample is a value that did not make it into its output document.
		slog.Warn("[Transform] Run finished with late samples",
			append(attrs, "late_samples", r.LateSamples, "late_written", r.LateWritten)...)
		return
	}
	slog.Info("[Transform] Run finished", attrs...)
}

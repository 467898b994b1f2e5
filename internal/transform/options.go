package transform

import (
	"time"

	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"github.com/trajstore-lab/trajstore/internal/core/aggregation"
	"github.com/trajstore-lab/trajstore/internal/rangeread"
)

const (
	defaultPartitionKey   = "first_timestamp"
	defaultStaleThreshold = 500
	defaultBatchSize      = 1000
	defaultWriterCount    = 4
	defaultMaxRetries     = 5
	defaultRetryInterval  = 200 * time.Millisecond
	defaultMaxSamples     = 1_000_000
	defaultOutputSuffix   = "_transformed"
	finalDrainTimeout     = 30 * time.Second
)

// LatePolicy decides what happens to a sample whose output timestamp was already flushed.
type LatePolicy string

const (
	// LateDrop counts the sample and discards it.
	LateDrop LatePolicy = "drop"
	// LateWrite counts the sample and writes it as a single field-level upsert.
	LateWrite LatePolicy = "write"
)

// Options controls one transform run.
type Options struct {
	SourceCollection string
	OutputCollection string

	// Directions to transform. Defaults to both.
	Directions []int

	// PartitionKey is the source field the range iterator walks, ascending.
	PartitionKey string
	// Lower and Upper bound the partition key. Missing bounds are resolved from the source.
	Lower *float64
	Upper *float64
	// ReadIncrement splits each chunk into stepped range queries. Zero reads a chunk in one query.
	ReadIncrement float64
	// Chunks is the number of disjoint key ranges processed in parallel per direction.
	Chunks int

	// Period is the resampling grid spacing in seconds.
	Period float64
	// StaleThreshold is the number of source records a timestamp may go untouched before it is flushed.
	StaleThreshold int64
	// Extended adds acceleration, class and node to the output tuple.
	Extended   bool
	LatePolicy LatePolicy

	BatchSize     int
	QueueSize     int
	WriterCount   int
	MaxRetries    int
	RetryInterval time.Duration

	RoadSegmentLength float64

	// MaxSamples caps the grid ticks one source record may resample onto.
	// Records spanning more are skipped as malformed.
	MaxSamples int

	// Predicates are applied to every source query on top of the direction filter.
	Predicates []rangeread.Predicate
}

// DefaultOptions returns defaults for a run over source.
func DefaultOptions(source string) Options {
	return Options{SourceCollection: source}.normalized()
}

func (o Options) normalized() Options {
	n := o
	if n.OutputCollection == "" {
		n.OutputCollection = n.SourceCollection + defaultOutputSuffix
	}
	if len(n.Directions) == 0 {
		n.Directions = []int{v1.Eastbound, v1.Westbound}
	}
	if n.PartitionKey == "" {
		n.PartitionKey = defaultPartitionKey
	}
	if n.Chunks <= 0 {
		n.Chunks = 1
	}
	if n.Period <= 0 {
		n.Period = aggregation.DefaultPeriod
	}
	if n.StaleThreshold <= 0 {
		n.StaleThreshold = defaultStaleThreshold
	}
	if n.LatePolicy == "" {
		n.LatePolicy = LateDrop
	}
	if n.BatchSize <= 0 {
		n.BatchSize = defaultBatchSize
	}
	if n.WriterCount <= 0 {
		n.WriterCount = defaultWriterCount
	}
	if n.QueueSize <= 0 {
		n.QueueSize = n.BatchSize * n.WriterCount
	}
	if n.MaxRetries < 0 {
		n.MaxRetries = 0
	} else if n.MaxRetries == 0 {
		n.MaxRetries = defaultMaxRetries
	}
	if n.RetryInterval <= 0 {
		n.RetryInterval = defaultRetryInterval
	}
	if n.MaxSamples <= 0 {
		n.MaxSamples = defaultMaxSamples
	}
	return n
}

func (o Options) layout() aggregation.Layout {
	return aggregation.Layout{Extended: o.Extended}
}

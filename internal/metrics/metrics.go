package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trajstore"

// Collectors holds every metric the service exports.
// All methods are safe on a nil receiver so components can run without metrics.
type Collectors struct {
	RecordsProcessed   *prometheus.CounterVec
	RecordsSkipped     *prometheus.CounterVec
	LateSamples        *prometheus.CounterVec
	KeysFlushed        *prometheus.CounterVec
	CacheResident      *prometheus.GaugeVec
	BulkWrites         *prometheus.CounterVec
	BulkRetries        prometheus.Counter
	BulkLatency        prometheus.Histogram
	ValidationBypassed *prometheus.CounterVec
	RangeQueries       *prometheus.CounterVec
	RecordsIngested    *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	return &Collectors{
		RecordsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_records_processed_total",
			Help:      "Source records fed through the transform pipeline",
		}, []string{"direction"}),
		RecordsSkipped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_records_skipped_total",
			Help:      "Source records skipped because they were malformed",
		}, []string{"direction"}),
		LateSamples: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_late_samples_total",
			Help:      "Samples that arrived for an output timestamp after it was flushed",
		}, []string{"direction"}),
		KeysFlushed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_keys_flushed_total",
			Help:      "Output timestamps flushed from the aggregation cache",
		}, []string{"direction"}),
		CacheResident: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transform_cache_resident_keys",
			Help:      "Output timestamps currently held in the aggregation cache",
		}, []string{"direction", "chunk"}),
		BulkWrites: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_writes_total",
			Help:      "Bulk upsert batches by outcome",
		}, []string{"outcome"}),
		BulkRetries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_write_retries_total",
			Help:      "Bulk upsert attempts retried after a transient failure",
		}),
		BulkLatency: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_write_duration_seconds",
			Help:      "Latency of one bulk upsert batch",
			Buckets:   prometheus.DefBuckets,
		}),
		ValidationBypassed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_bypass_total",
			Help:      "Writes rejected by a collection validator and retried with validation bypassed",
		}, []string{"collection"}),
		RangeQueries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "range_queries_total",
			Help:      "Range reads served over HTTP by outcome",
		}, []string{"outcome"}),
		RecordsIngested: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Typed record writes received over HTTP by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

func (c *Collectors) RecordProcessed(direction string) {
	if c == nil {
		return
	}
	c.RecordsProcessed.WithLabelValues(direction).Inc()
}

func (c *Collectors) RecordSkipped(direction string) {
	if c == nil {
		return
	}
	c.RecordsSkipped.WithLabelValues(direction).Inc()
}

func (c *Collectors) LateSample(direction string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.LateSamples.WithLabelValues(direction).Add(float64(n))
}

func (c *Collectors) KeysFlushedAdd(direction string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.KeysFlushed.WithLabelValues(direction).Add(float64(n))
}

func (c *Collectors) SetCacheResident(direction, chunk string, n int) {
	if c == nil {
		return
	}
	c.CacheResident.WithLabelValues(direction, chunk).Set(float64(n))
}

func (c *Collectors) BulkWrite(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.BulkWrites.WithLabelValues(outcome).Inc()
	c.BulkLatency.Observe(elapsed.Seconds())
}

func (c *Collectors) BulkRetry() {
	if c == nil {
		return
	}
	c.BulkRetries.Inc()
}

func (c *Collectors) ValidationBypass(collection string) {
	if c == nil {
		return
	}
	c.ValidationBypassed.WithLabelValues(collection).Inc()
}

func (c *Collectors) RangeQuery(outcome string) {
	if c == nil {
		return
	}
	c.RangeQueries.WithLabelValues(outcome).Inc()
}

func (c *Collectors) RecordIngested(kind, outcome string) {
	if c == nil {
		return
	}
	c.RecordsIngested.WithLabelValues(kind, outcome).Inc()
}

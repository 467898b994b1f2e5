package transform

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"github.com/trajstore-lab/trajstore/internal/core/storage/memstore"
	"github.com/trajstore-lab/trajstore/internal/metrics"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type fakeMetadata struct {
	mu   sync.Mutex
	docs []v1.CollectionMetadata
}

func (f *fakeMetadata) UpsertMetadata(ctx context.Context, meta v1.CollectionMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, meta)
	return nil
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []v1.TransformRun
}

func (f *fakeRuns) RecordRun(ctx context.Context, run *v1.TransformRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeRuns) ListRuns(ctx context.Context, limit int) ([]v1.TransformRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]v1.TransformRun(nil), f.runs...), nil
}

func seededSource() *memstore.Collection {
	source := memstore.New("raw")
	source.Insert(
		docM(trajectoryDoc("late", 1, []float64{12, 13}, []float64{0, 1})),
		docM(trajectoryDoc("first", 1, []float64{0, 1, 2}, []float64{0, 1, 2})),
		docM(trajectoryDoc("mid", 1, []float64{5, 6}, []float64{0, 1})),
		docM(trajectoryDoc("west", -1, []float64{0, 1}, []float64{100, 90})),
	)
	return source
}

func byTimestamp(docs []bson.M) map[float64]bson.M {
	out := make(map[float64]bson.M, len(docs))
	for _, d := range docs {
		out[d["timestamp"].(float64)] = d
	}
	return out
}

func testOptions() Options {
	return Options{
		SourceCollection: "raw",
		Period:           1,
		StaleThreshold:   1,
		BatchSize:        2,
		WriterCount:      2,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	ctx := context.Background()
	out := memstore.New("raw_transformed")
	meta := &fakeMetadata{}
	runs := &fakeRuns{}
	reg := prometheus.NewRegistry()
	collectors := metrics.New(reg)

	report, err := Run(ctx, Deps{Source: seededSource(), Output: out, Metadata: meta, Runs: runs, Metrics: collectors}, testOptions())
	require.NoError(t, err)

	assert.Equal(t, v1.RunStatusSucceeded, report.Status)
	assert.EqualValues(t, 4, report.RecordsProcessed)
	assert.EqualValues(t, 9, report.KeysFlushed)
	assert.Zero(t, report.LateSamples)
	assert.EqualValues(t, 9, report.Writes.Upserts)

	docs := byTimestamp(out.Docs())
	require.Len(t, docs, 7)
	zero := docs[0]
	require.NotNil(t, zero)
	assert.Equal(t, []float64{2, 12, 4, 2, 1, 1}, zero["eb"].(bson.M)["first"])
	assert.Equal(t, []float64{98, 12, 4, 2, -1, 10}, zero["wb"].(bson.M)["west"])
	assert.Contains(t, docs[13]["eb"], "late")

	require.Len(t, meta.docs, 1)
	md := meta.docs[0]
	assert.Equal(t, "raw_transformed", md.Collection)
	assert.Equal(t, "raw", md.SourceCollection)
	assert.Equal(t, 0.0, md.StartTime)
	assert.Equal(t, 13.0, md.EndTime)
	assert.Equal(t, 2.0, md.StartX)
	assert.Equal(t, 98.0, md.EndX)
	assert.EqualValues(t, 4, md.NumObjects)
	assert.Equal(t, "xylwdv", md.Schema)

	assert.Equal(t, []string{KeyField}, out.UniqueKeys())

	require.Len(t, runs.runs, 1)
	assert.Equal(t, report.RunID, runs.runs[0].ID)
	assert.Equal(t, v1.RunStatusSucceeded, runs.runs[0].Status)
	assert.EqualValues(t, 9, runs.runs[0].KeysFlushed)

	assert.Equal(t, 3.0, testutil.ToFloat64(collectors.RecordsProcessed.WithLabelValues("eb")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collectors.KeysFlushed.WithLabelValues("wb")))
}

func TestRun_ChunkedMatchesSingle(t *testing.T) {
	ctx := context.Background()

	single := memstore.New("a")
	_, err := Run(ctx, Deps{Source: seededSource(), Output: single}, testOptions())
	require.NoError(t, err)

	chunked := memstore.New("b")
	opts := testOptions()
	opts.Chunks = 2
	opts.ReadIncrement = 4
	report, err := Run(ctx, Deps{Source: seededSource(), Output: chunked}, opts)
	require.NoError(t, err)
	assert.EqualValues(t, 4, report.RecordsProcessed)

	want := byTimestamp(single.Docs())
	got := byTimestamp(chunked.Docs())
	require.Len(t, got, len(want))
	for ts, doc := range want {
		assert.Equal(t, doc["eb"], got[ts]["eb"], "timestamp %v", ts)
		assert.Equal(t, doc["wb"], got[ts]["wb"], "timestamp %v", ts)
	}
}

func TestRun_ExtendedSchema(t *testing.T) {
	ctx := context.Background()
	out := memstore.New("out")
	meta := &fakeMetadata{}
	opts := testOptions()
	opts.Extended = true
	opts.Directions = []int{v1.Westbound}

	_, err := Run(ctx, Deps{Source: seededSource(), Output: out, Metadata: meta}, opts)
	require.NoError(t, err)

	require.Len(t, meta.docs, 1)
	assert.Equal(t, "xylwdvacn", meta.docs[0].Schema)
	docs := byTimestamp(out.Docs())
	require.Len(t, docs, 2)
	assert.Len(t, docs[0]["wb"].(bson.M)["west"], 9)
}

func TestRun_EmptySource(t *testing.T) {
	ctx := context.Background()
	report, err := Run(ctx, Deps{Source: memstore.New("raw"), Output: memstore.New("out")}, testOptions())
	require.NoError(t, err)
	assert.Zero(t, report.RecordsProcessed)
	assert.Zero(t, report.Metadata.StartTime)

	opts := testOptions()
	opts.Chunks = 3
	_, err = Run(ctx, Deps{Source: memstore.New("raw"), Output: memstore.New("out")}, opts)
	assert.ErrorIs(t, err, storage.ErrNoData)
}

func TestRun_WriteFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	out := memstore.New("out")
	boom := errors.New("disk full")
	out.FailBulk(boom)
	meta := &fakeMetadata{}
	runs := &fakeRuns{}

	opts := testOptions()
	opts.BatchSize = 1
	opts.WriterCount = 1
	report, err := Run(ctx, Deps{Source: seededSource(), Output: out, Metadata: meta, Runs: runs}, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, v1.RunStatusFailed, report.Status)
	assert.Empty(t, meta.docs, "no metadata for a failed run")

	require.Len(t, runs.runs, 1)
	assert.Equal(t, v1.RunStatusFailed, runs.runs[0].Status)
	assert.Contains(t, runs.runs[0].Error, "disk full")
}

func TestRun_IndexFailureStopsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	out := memstore.New("out")
	boom := errors.New("index build failed")
	out.FailIndex(boom)

	_, err := Run(ctx, Deps{Source: seededSource(), Output: out}, testOptions())
	require.ErrorIs(t, err, boom)
	assert.Zero(t, out.BulkCalls())
	assert.Empty(t, out.Docs())
}

func TestRun_OverlappingPipelinesShareOneDocumentPerTimestamp(t *testing.T) {
	ctx := context.Background()
	source := memstore.New("raw")
	source.Insert(
		docM(trajectoryDoc("e1", 1, []float64{0, 4}, []float64{0, 4})),
		docM(trajectoryDoc("e2", 1, []float64{3, 8}, []float64{10, 15})),
		docM(trajectoryDoc("w1", -1, []float64{0, 4}, []float64{100, 96})),
		docM(trajectoryDoc("w2", -1, []float64{3, 8}, []float64{90, 85})),
	)
	out := memstore.New("out")
	opts := testOptions()
	opts.Chunks = 2
	opts.BatchSize = 1
	opts.WriterCount = 4

	_, err := Run(ctx, Deps{Source: source, Output: out}, opts)
	require.NoError(t, err)

	docs := out.Docs()
	seen := make(map[float64]int, len(docs))
	for _, d := range docs {
		seen[d["timestamp"].(float64)]++
	}
	require.Len(t, seen, 9)
	for ts, n := range seen {
		assert.Equal(t, 1, n, "timestamp %v", ts)
	}
	at := byTimestamp(docs)
	for _, ts := range []float64{3, 4} {
		assert.Len(t, at[ts]["eb"], 2, "timestamp %v", ts)
		assert.Len(t, at[ts]["wb"], 2, "timestamp %v", ts)
	}
}

func TestRun_RequiresStores(t *testing.T) {
	_, err := Run(context.Background(), Deps{}, testOptions())
	assert.Error(t, err)
}

func TestOptions_Normalized(t *testing.T) {
	o := DefaultOptions("raw")
	assert.Equal(t, "raw_transformed", o.OutputCollection)
	assert.Equal(t, []int{v1.Eastbound, v1.Westbound}, o.Directions)
	assert.Equal(t, "first_timestamp", o.PartitionKey)
	assert.Equal(t, 0.04, o.Period)
	assert.EqualValues(t, 500, o.StaleThreshold)
	assert.Equal(t, LateDrop, o.LatePolicy)
	assert.Equal(t, o.BatchSize*o.WriterCount, o.QueueSize)
}

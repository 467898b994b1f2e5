package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"github.com/trajstore-lab/trajstore/internal/core/aggregation"
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func trajectory(id string, dir int, ts, xs []float64) *v1.Trajectory {
	return &v1.Trajectory{
		ID:        id,
		Direction: dir,
		Timestamp: ts,
		X:         xs,
		Y:         constant(len(ts), 12),
		Length:    constant(len(ts), 4),
		Width:     constant(len(ts), 2),
	}
}

func field(samples []aggregation.Sample, f func(aggregation.Sample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = f(s)
	}
	return out
}

func ticks(samples []aggregation.Sample) []int64 {
	out := make([]int64, len(samples))
	for i, s := range samples {
		out[i] = s.Tick
	}
	return out
}

func TestResample_LinearMotion(t *testing.T) {
	grid := aggregation.Grid{Period: 0.5}
	samples, err := Resample(trajectory("a", v1.Eastbound, []float64{0, 1, 2}, []float64{0, 10, 20}), grid, 0)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, ticks(samples))
	assert.InDeltaSlice(t, []float64{0, 5, 10, 15, 20}, field(samples, func(s aggregation.Sample) float64 { return s.X }), 1e-9)
	assert.InDeltaSlice(t, []float64{10, 10, 10, 10, 10}, field(samples, func(s aggregation.Sample) float64 { return s.Velocity }), 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0, 0}, field(samples, func(s aggregation.Sample) float64 { return s.Acceleration }), 1e-9)
	assert.InDeltaSlice(t, constant(5, 12), field(samples, func(s aggregation.Sample) float64 { return s.Y }), 1e-9)
}

func TestResample_WestboundSpeedIsPositive(t *testing.T) {
	grid := aggregation.Grid{Period: 0.5}
	samples, err := Resample(trajectory("w", v1.Westbound, []float64{0, 1}, []float64{20, 10}), grid, 0)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{10, 10, 10}, field(samples, func(s aggregation.Sample) float64 { return s.Velocity }), 1e-9)
}

func TestResample_NoExtrapolation(t *testing.T) {
	grid := aggregation.Grid{Period: 0.04}
	samples, err := Resample(trajectory("a", v1.Eastbound, []float64{0.03, 0.13}, []float64{3, 13}), grid, 0)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, ticks(samples))
	assert.InDeltaSlice(t, []float64{4, 8, 12}, field(samples, func(s aggregation.Sample) float64 { return s.X }), 1e-9)
}

func TestResample_SingleSample(t *testing.T) {
	grid := aggregation.Grid{Period: 0.04}

	onGrid, err := Resample(trajectory("a", v1.Eastbound, []float64{0.08}, []float64{7}), grid, 0)
	require.NoError(t, err)
	require.Len(t, onGrid, 1)
	assert.Equal(t, int64(2), onGrid[0].Tick)
	assert.Equal(t, 7.0, onGrid[0].X)
	assert.Zero(t, onGrid[0].Velocity)

	offGrid, err := Resample(trajectory("a", v1.Eastbound, []float64{0.05}, []float64{7}), grid, 0)
	require.NoError(t, err)
	assert.Empty(t, offGrid)
}

func TestResample_DuplicateAndUnsortedTimestamps(t *testing.T) {
	grid := aggregation.Grid{Period: 1}
	traj := trajectory("a", v1.Eastbound, []float64{1, 0, 0}, []float64{11, 0, 2})

	samples, err := Resample(traj, grid, 0)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1}, ticks(samples))
	assert.InDeltaSlice(t, []float64{1, 11}, field(samples, func(s aggregation.Sample) float64 { return s.X }), 1e-9)
}

func TestResample_PrecomputedVelocity(t *testing.T) {
	grid := aggregation.Grid{Period: 1}
	traj := trajectory("a", v1.Eastbound, []float64{0, 2}, []float64{0, 100})
	traj.Velocity = []float64{30, 34}

	samples, err := Resample(traj, grid, 0)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{30, 32, 34}, field(samples, func(s aggregation.Sample) float64 { return s.Velocity }), 1e-9)
	assert.InDeltaSlice(t, []float64{2, 2, 2}, field(samples, func(s aggregation.Sample) float64 { return s.Acceleration }), 1e-9)
}

func TestResample_MismatchedVelocityIsDerived(t *testing.T) {
	grid := aggregation.Grid{Period: 1}
	traj := trajectory("a", v1.Eastbound, []float64{0, 1, 2}, []float64{0, 3, 6})
	traj.Velocity = []float64{99}

	samples, err := Resample(traj, grid, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3, 3, 3}, field(samples, func(s aggregation.Sample) float64 { return s.Velocity }), 1e-9)
}

func TestResample_Empty(t *testing.T) {
	_, err := Resample(&v1.Trajectory{ID: "a", Direction: v1.Eastbound}, aggregation.Grid{Period: 1}, 0)
	assert.ErrorIs(t, err, v1.ErrMalformedRecord)
}

func TestResample_RejectsUnsampleableTimestamps(t *testing.T) {
	grid := aggregation.Grid{Period: 0.04}
	tests := []struct {
		name string
		ts   []float64
		max  int
	}{
		{name: "NaN first", ts: []float64{math.NaN(), 0}},
		{name: "NaN inside", ts: []float64{0, math.NaN(), 1}},
		{name: "infinite last", ts: []float64{0, math.Inf(1)}},
		{name: "beyond tick range", ts: []float64{0, 1e18}},
		{name: "far from epoch", ts: []float64{1e18, 1e18 + 1}},
		{name: "span over cap", ts: []float64{0, 1e11}},
		{name: "span over explicit cap", ts: []float64{0, 1}, max: 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			traj := trajectory("a", v1.Eastbound, tc.ts, constant(len(tc.ts), 1))
			samples, err := Resample(traj, grid, tc.max)
			assert.ErrorIs(t, err, v1.ErrMalformedRecord)
			assert.Empty(t, samples)
		})
	}
}

func TestResample_SpanAtCapIsAccepted(t *testing.T) {
	samples, err := Resample(trajectory("a", v1.Eastbound, []float64{0, 10}, []float64{0, 10}), aggregation.Grid{Period: 1}, 10)
	require.NoError(t, err)
	assert.Len(t, samples, 11)
}

package aggregation

import (
	"fmt"
	"math"
)

// DefaultPeriod is the resampling period, in seconds, of the output grid.
const DefaultPeriod = 0.04

// gridEpsilon absorbs float error when a timestamp sits exactly on a grid line.
const gridEpsilon = 1e-9

// Grid discretizes continuous timestamps onto integer multiples of Period.
// Ticks are the aggregation keys: tick k stands for time k*Period.
type Grid struct {
	Period float64
}

// NewGrid validates period and returns a Grid.
func NewGrid(period float64) (Grid, error) {
	if math.IsNaN(period) || math.IsInf(period, 0) || period <= 0 {
		return Grid{}, fmt.Errorf("period must be a positive number, got %v", period)
	}
	return Grid{Period: period}, nil
}

// TickFor returns the nearest tick to ts.
// Example: with Period 0.04, TickFor(1.001) → 25
func (g Grid) TickFor(ts float64) int64 {
	return int64(math.Round(ts / g.Period))
}

// FirstTick returns the smallest tick whose time is >= ts.
func (g Grid) FirstTick(ts float64) int64 {
	return int64(math.Ceil(ts/g.Period - gridEpsilon))
}

// LastTick returns the largest tick whose time is <= ts.
func (g Grid) LastTick(ts float64) int64 {
	return int64(math.Floor(ts/g.Period + gridEpsilon))
}

// Time returns the continuous time of tick.
func (g Grid) Time(tick int64) float64 {
	return float64(tick) * g.Period
}

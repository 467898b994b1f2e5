package transform

import (
	"fmt"
	"math"
	"sort"

	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"github.com/trajstore-lab/trajstore/internal/core/aggregation"
	"gonum.org/v1/gonum/interp"
)

// Resample projects a trajectory onto the grid by linear interpolation.
//
// Samples are produced for every grid tick inside [first timestamp, last
// timestamp]; nothing is extrapolated. Samples sharing a timestamp are
// averaged first. Velocity comes from the record when it carries one value
// per sample, otherwise it is the forward difference of the resampled x
// position, signed by direction, with the last value repeating the one before
// it. Acceleration follows the same rule one level up.
//
// A record whose timestamps fall outside the tick range, or whose span covers
// more than maxSamples ticks, fails with v1.ErrMalformedRecord. maxSamples <= 0
// uses the default cap.
func Resample(traj *v1.Trajectory, grid aggregation.Grid, maxSamples int) ([]aggregation.Sample, error) {
	if maxSamples <= 0 {
		maxSamples = defaultMaxSamples
	}
	pts, err := collapse(traj)
	if err != nil {
		return nil, err
	}

	first, last := pts.t[0], pts.t[len(pts.t)-1]
	if !tickable(first, grid) || !tickable(last, grid) {
		return nil, fmt.Errorf("%w: id %s: timestamps [%v, %v] outside the grid range", v1.ErrMalformedRecord, traj.ID, first, last)
	}
	if span := (last - first) / grid.Period; span > float64(maxSamples) {
		return nil, fmt.Errorf("%w: id %s: timestamps span %v s, more than %d samples", v1.ErrMalformedRecord, traj.ID, last-first, maxSamples)
	}
	lo, hi := grid.FirstTick(first), grid.LastTick(last)
	if hi < lo {
		return nil, nil
	}

	ticks := make([]int64, 0, hi-lo+1)
	times := make([]float64, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		ticks = append(ticks, k)
		times = append(times, grid.Time(k))
	}

	x, err := pts.interpolate(pts.x, times)
	if err != nil {
		return nil, fmt.Errorf("resample x_position: %w", err)
	}
	y, err := pts.interpolate(pts.y, times)
	if err != nil {
		return nil, fmt.Errorf("resample y_position: %w", err)
	}
	length, err := pts.interpolate(pts.length, times)
	if err != nil {
		return nil, fmt.Errorf("resample length: %w", err)
	}
	width, err := pts.interpolate(pts.width, times)
	if err != nil {
		return nil, fmt.Errorf("resample width: %w", err)
	}

	var velocity []float64
	if pts.velocity != nil {
		if velocity, err = pts.interpolate(pts.velocity, times); err != nil {
			return nil, fmt.Errorf("resample velocity: %w", err)
		}
	} else {
		velocity = difference(x, float64(traj.Direction), grid.Period)
	}

	var accel []float64
	if pts.accel != nil {
		if accel, err = pts.interpolate(pts.accel, times); err != nil {
			return nil, fmt.Errorf("resample acceleration: %w", err)
		}
	} else {
		accel = difference(velocity, 1, grid.Period)
	}

	out := make([]aggregation.Sample, len(ticks))
	for i, k := range ticks {
		out[i] = aggregation.Sample{
			Tick:         k,
			X:            x[i],
			Y:            y[i],
			Length:       length[i],
			Width:        width[i],
			Velocity:     velocity[i],
			Acceleration: accel[i],
		}
	}
	return out, nil
}

// maxTick bounds tick indexes so they convert exactly between float64 and int64.
const maxTick = 1 << 53

func tickable(ts float64, grid aggregation.Grid) bool {
	return math.Abs(ts/grid.Period) < maxTick
}

// points is a trajectory with strictly increasing timestamps.
type points struct {
	t        []float64
	x        []float64
	y        []float64
	length   []float64
	width    []float64
	velocity []float64
	accel    []float64
}

// collapse sorts samples by time and averages samples that share a timestamp.
func collapse(traj *v1.Trajectory) (*points, error) {
	n := traj.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: no samples", v1.ErrMalformedRecord)
	}
	for i, ts := range traj.Timestamp {
		if math.IsNaN(ts) || math.IsInf(ts, 0) {
			return nil, fmt.Errorf("%w: id %s: timestamp[%d] is %v", v1.ErrMalformedRecord, traj.ID, i, ts)
		}
	}

	useVelocity := len(traj.Velocity) == n
	useAccel := len(traj.Acceleration) == n

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return traj.Timestamp[order[a]] < traj.Timestamp[order[b]] })

	p := &points{}
	var count []float64
	for _, i := range order {
		last := len(p.t) - 1
		if last >= 0 && p.t[last] == traj.Timestamp[i] {
			p.x[last] += traj.X[i]
			p.y[last] += traj.Y[i]
			p.length[last] += traj.Length[i]
			p.width[last] += traj.Width[i]
			if useVelocity {
				p.velocity[last] += traj.Velocity[i]
			}
			if useAccel {
				p.accel[last] += traj.Acceleration[i]
			}
			count[last]++
			continue
		}
		p.t = append(p.t, traj.Timestamp[i])
		p.x = append(p.x, traj.X[i])
		p.y = append(p.y, traj.Y[i])
		p.length = append(p.length, traj.Length[i])
		p.width = append(p.width, traj.Width[i])
		if useVelocity {
			p.velocity = append(p.velocity, traj.Velocity[i])
		}
		if useAccel {
			p.accel = append(p.accel, traj.Acceleration[i])
		}
		count = append(count, 1)
	}

	for i, c := range count {
		if c == 1 {
			continue
		}
		p.x[i] /= c
		p.y[i] /= c
		p.length[i] /= c
		p.width[i] /= c
		if useVelocity {
			p.velocity[i] /= c
		}
		if useAccel {
			p.accel[i] /= c
		}
	}
	return p, nil
}

// interpolate evaluates the piecewise linear function through (p.t, ys) at times.
// A single point is a constant function.
func (p *points) interpolate(ys []float64, times []float64) ([]float64, error) {
	out := make([]float64, len(times))
	if len(p.t) == 1 {
		for i := range out {
			out[i] = ys[0]
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(p.t, ys); err != nil {
		return nil, err
	}
	for i, t := range times {
		out[i] = pl.Predict(t)
	}
	return out, nil
}

// difference returns sign*diff(values)/dt with the last element repeated.
// A single value has no neighbour and yields zero.
func difference(values []float64, sign, dt float64) []float64 {
	out := make([]float64, len(values))
	if len(values) < 2 {
		return out
	}
	for i := 0; i < len(values)-1; i++ {
		out[i] = sign * (values[i+1] - values[i]) / dt
	}
	out[len(out)-1] = out[len(out)-2]
	return out
}

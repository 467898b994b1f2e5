package partition

import (
	"fmt"

	"github.com/trajstore-lab/trajstore/internal/core/interval"
)

// Split divides [lower, upper] into n contiguous chunks of equal width.
//
// Chunks are [lo, hi) except the last, which is closed so upper itself is
// covered. Adjacent chunks share a boundary value but never a point: every
// value in [lower, upper] belongs to exactly one chunk. n <= 1 and a
// degenerate range both yield a single chunk.
func Split(lower, upper float64, n int) ([]interval.Interval, error) {
	if lower > upper {
		return nil, fmt.Errorf("%w: lower %v above upper %v", interval.ErrInvalidInterval, lower, upper)
	}
	if n <= 1 || lower == upper {
		return []interval.Interval{{Lower: interval.Closed(lower), Upper: interval.Closed(upper)}}, nil
	}

	width := (upper - lower) / float64(n)
	out := make([]interval.Interval, 0, n)
	for i := 0; i < n; i++ {
		lo := lower + float64(i)*width
		hi := lower + float64(i+1)*width
		iv := interval.Interval{Lower: interval.Closed(lo), Upper: interval.Open(hi)}
		if i == n-1 {
			iv.Upper = interval.Closed(upper)
		}
		out = append(out, iv)
	}
	return out, nil
}

package interval

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInterval is returned when a cursor cannot be built from the given bounds.
var ErrInvalidInterval = errors.New("invalid interval")

// Bound is one endpoint of a range over a monotonic key.
type Bound struct {
	Value  float64 `json:"value"`
	Closed bool    `json:"closed"`
}

// Closed returns a closed bound at v.
func Closed(v float64) Bound { return Bound{Value: v, Closed: true} }

// Open returns an open bound at v.
func Open(v float64) Bound { return Bound{Value: v} }

// Interval is one emitted sub-range.
type Interval struct {
	Lower Bound `json:"lower"`
	Upper Bound `json:"upper"`
}

// Contains reports whether v falls inside the interval, honouring both boundary types.
func (iv Interval) Contains(v float64) bool {
	if iv.Lower.Closed {
		if v < iv.Lower.Value {
			return false
		}
	} else if v <= iv.Lower.Value {
		return false
	}
	if iv.Upper.Closed {
		return v <= iv.Upper.Value
	}
	return v < iv.Upper.Value
}

func (iv Interval) String() string {
	lo, hi := "(", ")"
	if iv.Lower.Closed {
		lo = "["
	}
	if iv.Upper.Closed {
		hi = "]"
	}
	return fmt.Sprintf("%s%g, %g%s", lo, iv.Lower.Value, iv.Upper.Value, hi)
}

// Cursor walks [start, stop] in fixed increments.
//
// The first interval takes its lower boundary type from start, the terminal one
// takes its upper boundary type from stop, and every interior boundary is
// closed below and open above, so consecutive intervals never overlap or skip.
// A Cursor is single-use: once exhausted it stays exhausted.
type Cursor struct {
	start     Bound
	stop      Bound
	increment float64
	step      int
	done      bool
}

// NewCursor validates the range and returns a cursor positioned before the first interval.
func NewCursor(start, stop Bound, increment float64) (*Cursor, error) {
	if math.IsNaN(increment) || math.IsInf(increment, 0) || increment <= 0 {
		return nil, fmt.Errorf("%w: increment must be > 0, got %v", ErrInvalidInterval, increment)
	}
	if !finite(start.Value) || !finite(stop.Value) {
		return nil, fmt.Errorf("%w: bounds must be finite", ErrInvalidInterval)
	}
	if start.Value > stop.Value {
		return nil, fmt.Errorf("%w: start %v is after stop %v", ErrInvalidInterval, start.Value, stop.Value)
	}
	return &Cursor{start: start, stop: stop, increment: increment}, nil
}

// Next returns the next interval, or false once the range is exhausted.
func (c *Cursor) Next() (Interval, bool) {
	if c.done {
		return Interval{}, false
	}

	// Multiply instead of accumulating so long walks do not drift.
	lo := c.start.Value + float64(c.step)*c.increment
	hi := c.start.Value + float64(c.step+1)*c.increment

	iv := Interval{
		Lower: Bound{Value: lo, Closed: true},
		Upper: Bound{Value: hi, Closed: false},
	}
	if c.step == 0 {
		iv.Lower = c.start
	}
	if hi >= c.stop.Value {
		iv.Upper = c.stop
		c.done = true
	}

	c.step++
	return iv, true
}

// Exhausted reports whether the terminal interval has been emitted.
func (c *Cursor) Exhausted() bool { return c.done }

// Steps returns how many intervals have been emitted so far.
func (c *Cursor) Steps() int { return c.step }

// Count returns the number of intervals a cursor over [start, stop] emits.
func Count(start, stop, increment float64) int {
	if increment <= 0 || start > stop {
		return 0
	}
	if start == stop {
		return 1
	}
	n := int(math.Ceil((stop - start) / increment))
	// Guard against ceil landing one short because of rounding in the division.
	for start+float64(n)*increment < stop {
		n++
	}
	for n > 1 && start+float64(n-1)*increment >= stop {
		n--
	}
	return n
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

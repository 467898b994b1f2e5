package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Cursor) []Interval {
	var out []Interval
	for {
		iv, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, iv)
	}
}

func TestCursor_LastTimestampExample(t *testing.T) {
	c, err := NewCursor(Closed(300), Open(330), 10)
	require.NoError(t, err)

	got := drain(c)
	require.Len(t, got, 3)
	assert.Equal(t, Interval{Lower: Closed(300), Upper: Open(310)}, got[0])
	assert.Equal(t, Interval{Lower: Closed(310), Upper: Open(320)}, got[1])
	assert.Equal(t, Interval{Lower: Closed(320), Upper: Open(330)}, got[2])
}

func TestCursor_OuterFlagsOnlyAtEnds(t *testing.T) {
	c, err := NewCursor(Open(0), Closed(25), 10)
	require.NoError(t, err)

	got := drain(c)
	require.Len(t, got, 3)

	assert.False(t, got[0].Lower.Closed, "first lower takes the outer start flag")
	assert.True(t, got[1].Lower.Closed)
	assert.True(t, got[2].Lower.Closed)

	assert.False(t, got[0].Upper.Closed)
	assert.False(t, got[1].Upper.Closed)
	assert.True(t, got[2].Upper.Closed, "terminal upper takes the outer stop flag")
	assert.Equal(t, 25.0, got[2].Upper.Value, "terminal upper is clipped to stop")
}

func TestCursor_CoverageWithoutGapOrOverlap(t *testing.T) {
	tests := []struct {
		name      string
		start     float64
		stop      float64
		increment float64
	}{
		{name: "exact multiple", start: 0, stop: 100, increment: 10},
		{name: "remainder", start: 0, stop: 95, increment: 10},
		{name: "fractional", start: 0.1, stop: 1.0, increment: 0.1},
		{name: "increment larger than range", start: 5, stop: 6, increment: 100},
		{name: "negative keys", start: -12.5, stop: 3.25, increment: 2.5},
		{name: "tiny period", start: 0, stop: 4, increment: 0.04},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCursor(Closed(tc.start), Closed(tc.stop), tc.increment)
			require.NoError(t, err)

			got := drain(c)
			require.Len(t, got, Count(tc.start, tc.stop, tc.increment))
			assert.Equal(t, tc.start, got[0].Lower.Value)
			assert.Equal(t, tc.stop, got[len(got)-1].Upper.Value)

			for i := 1; i < len(got); i++ {
				prev, cur := got[i-1], got[i]
				assert.Equal(t, prev.Upper.Value, cur.Lower.Value, "interval %d must start where %d ended", i, i-1)
				assert.False(t, prev.Upper.Closed, "interior upper bound must be open")
				assert.True(t, cur.Lower.Closed, "interior lower bound must be closed")
				assert.Less(t, cur.Lower.Value, cur.Upper.Value)
			}
		})
	}
}

func TestCursor_StepCountMatchesCeil(t *testing.T) {
	assert.Equal(t, 3, Count(300, 330, 10))
	assert.Equal(t, 10, Count(0, 95, 10))
	assert.Equal(t, 1, Count(5, 6, 100))
	assert.Equal(t, 1, Count(7, 7, 1))
	assert.Equal(t, 0, Count(8, 7, 1))
}

func TestCursor_ExhaustionIsIdempotent(t *testing.T) {
	c, err := NewCursor(Closed(0), Open(20), 10)
	require.NoError(t, err)

	_ = drain(c)
	require.True(t, c.Exhausted())
	assert.Equal(t, 2, c.Steps())

	for i := 0; i < 3; i++ {
		iv, ok := c.Next()
		assert.False(t, ok)
		assert.Equal(t, Interval{}, iv)
	}
	assert.Equal(t, 2, c.Steps())
}

func TestCursor_DegenerateRange(t *testing.T) {
	c, err := NewCursor(Closed(7), Closed(7), 1)
	require.NoError(t, err)

	got := drain(c)
	require.Len(t, got, 1)
	assert.Equal(t, Interval{Lower: Closed(7), Upper: Closed(7)}, got[0])
	assert.True(t, got[0].Contains(7))
}

func TestNewCursor_Rejects(t *testing.T) {
	_, err := NewCursor(Closed(0), Closed(10), 0)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewCursor(Closed(0), Closed(10), -1)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewCursor(Closed(10), Closed(0), 1)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestInterval_Contains(t *testing.T) {
	iv := Interval{Lower: Open(1), Upper: Closed(2)}
	assert.False(t, iv.Contains(1))
	assert.True(t, iv.Contains(1.5))
	assert.True(t, iv.Contains(2))
	assert.False(t, iv.Contains(2.1))
	assert.Equal(t, "(1, 2]", iv.String())
}

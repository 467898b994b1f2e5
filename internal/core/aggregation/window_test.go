package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid(t *testing.T) {
	tests := []struct {
		name      string
		period    float64
		wantError bool
	}{
		{name: "default", period: DefaultPeriod},
		{name: "one second", period: 1},
		{name: "zero invalid", period: 0, wantError: true},
		{name: "negative invalid", period: -0.04, wantError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := NewGrid(tc.period)
			if tc.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.period, g.Period)
		})
	}
}

func TestGrid_Ticks(t *testing.T) {
	g := Grid{Period: 0.04}

	assert.Equal(t, int64(25), g.TickFor(1.001))
	assert.Equal(t, int64(3), g.TickFor(0.12))

	// Exactly on a grid line, float error must not push the range inward.
	assert.Equal(t, int64(3), g.FirstTick(0.12))
	assert.Equal(t, int64(3), g.LastTick(0.12))

	assert.Equal(t, int64(3), g.FirstTick(0.1))
	assert.Equal(t, int64(2), g.LastTick(0.1))
	assert.Equal(t, int64(-2), g.LastTick(-0.07))
}

func TestGrid_Key(t *testing.T) {
	g := Grid{Period: 0.04}

	assert.Equal(t, 0.12, g.Key(3))
	assert.Equal(t, 1.0, g.Key(25))
	assert.Equal(t, 4.04, g.Key(101))
	assert.Equal(t, 0.0, g.Key(0))
	assert.Equal(t, -0.08, g.Key(-2))
}

func TestRoundFloat(t *testing.T) {
	assert.Equal(t, 0.13, RoundFloat(0.125, 2))
	assert.Equal(t, 1.0, RoundFloat(0.999, 2))
}

func TestLayout_Tuple(t *testing.T) {
	s := Sample{Tick: 1, X: 100, Y: 12, Length: 10, Width: 6, Velocity: 30, Acceleration: 1.5}

	basic := Layout{}.Tuple(s, -1, 2, 7)
	assert.Equal(t, Attributes{95, 12, 10, 6, -1, 30}, basic)
	assert.Equal(t, 6, Layout{}.Width())
	assert.Equal(t, SchemaBasic, Layout{}.Schema())

	ext := Layout{Extended: true}.Tuple(s, 1, 2, 7)
	assert.Equal(t, Attributes{105, 12, 10, 6, 1, 30, 1.5, 2, 7}, ext)
	assert.Equal(t, 9, Layout{Extended: true}.Width())
}

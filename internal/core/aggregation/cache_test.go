package aggregation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticks[V any](entries []Entry[V]) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Tick
	}
	return out
}

// feed simulates one source record: one Tick, then a Merge per produced tick.
func feed(t *testing.T, c *Cache[int], id string, keys ...int64) {
	t.Helper()
	c.Tick()
	for _, k := range keys {
		_, err := c.Merge(k, id, int(k))
		require.NoError(t, err)
	}
}

func TestCache_DrainReadyFrontOnly(t *testing.T) {
	c := NewCache[int]()

	feed(t, c, "a", 0)
	feed(t, c, "b", 1)
	feed(t, c, "c", 5, 6)

	s0, _ := c.Staleness(0)
	s1, _ := c.Staleness(1)
	assert.Equal(t, int64(2), s0)
	assert.Equal(t, int64(1), s1)

	drained := c.DrainReady(1)
	require.Len(t, drained, 1)
	assert.Equal(t, int64(0), drained[0].Tick)
	assert.Equal(t, map[string]int{"a": 0}, drained[0].Values)
	assert.Equal(t, []int64{1, 5, 6}, c.Keys())
}

// Staleness counts records since a key's last touch, so keys touched by the
// same record always share it: t=0 and t=1 from r1 cannot differ after r2, and
// nothing drains until r3 makes all three keys of r1 stale together.
func TestCache_ThreeRecordScenario(t *testing.T) {
	c := NewCache[int]()

	feed(t, c, "r1", 0, 1, 2)
	assert.Empty(t, c.DrainReady(1))

	feed(t, c, "r2", 5, 6)
	assert.Empty(t, c.DrainReady(1), "staleness of 1 is not above the threshold")

	feed(t, c, "r3", 12, 13)
	assert.Equal(t, []int64{0, 1, 2}, ticks(c.DrainReady(1)))
	assert.Equal(t, []int64{5, 6, 12, 13}, c.Keys())

	assert.Equal(t, []int64{5, 6, 12, 13}, ticks(c.DrainAll()))
	assert.Zero(t, c.Len())
}

func TestCache_MergeMovesToBackAndResetsStaleness(t *testing.T) {
	c := NewCache[int]()

	feed(t, c, "a", 10)
	feed(t, c, "b", 20)
	feed(t, c, "c", 30)

	c.Tick()
	res, err := c.Merge(10, "d", 1)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, int64(3), res.Gap)

	s, ok := c.Staleness(10)
	require.True(t, ok)
	assert.Zero(t, s)
	assert.Equal(t, []int64{20, 30, 10}, c.Keys())

	// 20 and 30 are stale but 10 was just touched; draining stops at it.
	assert.Equal(t, []int64{20, 30}, ticks(c.DrainReady(0)))
	assert.Equal(t, []int64{10}, c.Keys())
}

func TestCache_NewKeyGap(t *testing.T) {
	c := NewCache[int]()
	c.Tick()
	res, err := c.Merge(1, "a", 1)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, int64(-1), res.Gap)
}

func TestCache_LateMergeIsRejected(t *testing.T) {
	c := NewCache[int]()

	feed(t, c, "a", 0)
	feed(t, c, "b", 1)
	require.Equal(t, []int64{0}, ticks(c.DrainReady(0)))

	c.Tick()
	_, err := c.Merge(0, "late", 99)
	assert.ErrorIs(t, err, ErrAlreadyFlushed)
	assert.True(t, c.Flushed(0))
	assert.False(t, c.Flushed(7), "never-seen keys are not reported as flushed")
	assert.Equal(t, []int64{1}, c.Keys(), "late values do not reopen a flushed key")

	_, err = c.Touch(0, nil)
	assert.ErrorIs(t, err, ErrAlreadyFlushed)
}

func TestCache_TouchInsertsDefault(t *testing.T) {
	c := NewCache[int]()

	values, err := c.Touch(3, func() map[string]int { return map[string]int{"seed": 1} })
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"seed": 1}, values)

	c.Tick()
	c.Tick()
	values, err = c.Touch(3, func() map[string]int { return map[string]int{"other": 2} })
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"seed": 1}, values, "default is only used for absent keys")

	s, _ := c.Staleness(3)
	assert.Zero(t, s)
}

func TestCache_NegativeTicks(t *testing.T) {
	c := NewCache[int]()
	feed(t, c, "a", -5, 5)
	c.DrainAll()
	assert.True(t, c.Flushed(-5))
	assert.True(t, c.Flushed(5))
	assert.False(t, c.Flushed(-6))
	assert.Equal(t, 2, c.FlushedCount())
}

// Random merge/tick sequences must never drain a key at or under the
// threshold, must drain in front-to-back order, and must never yield a key twice.
func TestCache_RandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		c := NewCache[int]()
		threshold := int64(rng.Intn(5))
		seen := make(map[int64]bool)
		base := int64(0)

		for rec := 0; rec < 200; rec++ {
			c.Tick()
			base += int64(rng.Intn(3))
			for k := 0; k < 1+rng.Intn(4); k++ {
				tick := base + int64(rng.Intn(6))
				_, err := c.Merge(tick, "obj", rec)
				if err != nil {
					require.ErrorIs(t, err, ErrAlreadyFlushed)
					require.True(t, seen[tick])
				}
			}

			front := c.Keys()
			drained := c.DrainReady(threshold)
			require.Equal(t, front[:len(drained)], ticks(drained), "drain order is front-to-back")
			for _, e := range drained {
				require.False(t, seen[e.Tick], "tick %d drained twice", e.Tick)
				seen[e.Tick] = true
			}
			if next := c.Keys(); len(next) > 0 {
				s, _ := c.Staleness(next[0])
				require.LessOrEqual(t, s, threshold, "front entry left behind must not be ready")
			}
		}

		for _, e := range c.DrainAll() {
			require.False(t, seen[e.Tick], "tick %d drained twice", e.Tick)
			seen[e.Tick] = true
		}
		require.Zero(t, c.Len())
		require.Equal(t, len(seen), c.FlushedCount())
	}
}

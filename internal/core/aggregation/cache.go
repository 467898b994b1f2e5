package aggregation

import (
	"container/list"
	"errors"

	"github.com/weaviate/sroar"
)

// ErrAlreadyFlushed is returned when a value arrives for a tick that has already
// been drained. The value is not merged: each tick leaves the cache exactly once.
var ErrAlreadyFlushed = errors.New("tick already flushed")

// Entry is one drained cache key with the per-object values collected for it.
type Entry[V any] struct {
	Tick   int64
	Values map[string]V
}

// MergeResult describes what a Merge did to the cache.
type MergeResult struct {
	// Created is true when the tick was not resident before this merge.
	Created bool
	// Gap is the staleness the tick had right before this merge, or -1 when it was created.
	Gap int64
}

type cacheEntry[V any] struct {
	tick      int64
	lastTouch int64
	values    map[string]V
}

// Cache is a write-back cache keyed by discretized timestamp.
//
// Keys are kept in touch order: every touch moves a key to the back, and
// draining only ever looks at the front. Staleness is measured in processed
// source records: Tick advances a logical clock, each key remembers the clock
// value of its last touch, and staleness is the difference. Ticks that have
// been drained are remembered in a compressed bitmap so a late value for them
// is reported instead of silently reopening the key.
//
// Cache is not safe for concurrent use. Each pipeline owns its own instance.
type Cache[V any] struct {
	clock   int64
	order   *list.List
	index   map[int64]*list.Element
	flushed *sroar.Bitmap
}

// NewCache creates an empty cache.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{
		order:   list.New(),
		index:   make(map[int64]*list.Element),
		flushed: sroar.NewBitmap(),
	}
}

// Tick records that one more source record has been processed.
// Every resident key ages by one; keys merged after this call start at zero again.
func (c *Cache[V]) Tick() {
	c.clock++
}

// Touch moves tick to the most recently touched position and resets its staleness.
// When the tick is not resident, def supplies its initial value map.
func (c *Cache[V]) Touch(tick int64, def func() map[string]V) (map[string]V, error) {
	if elem, ok := c.index[tick]; ok {
		entry := elem.Value.(*cacheEntry[V])
		entry.lastTouch = c.clock
		c.order.MoveToBack(elem)
		return entry.values, nil
	}
	if c.Flushed(tick) {
		return nil, ErrAlreadyFlushed
	}

	values := map[string]V(nil)
	if def != nil {
		values = def()
	}
	if values == nil {
		values = make(map[string]V)
	}
	c.index[tick] = c.order.PushBack(&cacheEntry[V]{tick: tick, lastTouch: c.clock, values: values})
	return values, nil
}

// Merge sets the value for id under tick, creating the tick when needed, and
// marks the tick as just touched.
func (c *Cache[V]) Merge(tick int64, id string, v V) (MergeResult, error) {
	if elem, ok := c.index[tick]; ok {
		entry := elem.Value.(*cacheEntry[V])
		res := MergeResult{Gap: c.clock - entry.lastTouch}
		entry.values[id] = v
		entry.lastTouch = c.clock
		c.order.MoveToBack(elem)
		return res, nil
	}
	if c.Flushed(tick) {
		return MergeResult{}, ErrAlreadyFlushed
	}

	c.index[tick] = c.order.PushBack(&cacheEntry[V]{
		tick:      tick,
		lastTouch: c.clock,
		values:    map[string]V{id: v},
	})
	return MergeResult{Created: true, Gap: -1}, nil
}

// DrainReady pops entries from the front while the front entry is staler than threshold.
// It stops at the first entry that is not, even if entries behind it are.
func (c *Cache[V]) DrainReady(threshold int64) []Entry[V] {
	var out []Entry[V]
	for {
		front := c.order.Front()
		if front == nil {
			return out
		}
		entry := front.Value.(*cacheEntry[V])
		if c.clock-entry.lastTouch <= threshold {
			return out
		}
		out = append(out, c.pop(front))
	}
}

// DrainAll pops every resident entry in touch order, leaving the cache empty.
func (c *Cache[V]) DrainAll() []Entry[V] {
	out := make([]Entry[V], 0, c.order.Len())
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		out = append(out, c.pop(front))
	}
	return out
}

// Len returns the number of resident ticks.
func (c *Cache[V]) Len() int {
	return c.order.Len()
}

// Staleness returns how many records were processed since tick was last touched.
func (c *Cache[V]) Staleness(tick int64) (int64, bool) {
	elem, ok := c.index[tick]
	if !ok {
		return 0, false
	}
	return c.clock - elem.Value.(*cacheEntry[V]).lastTouch, true
}

// Flushed reports whether tick has already been drained.
func (c *Cache[V]) Flushed(tick int64) bool {
	return c.flushed.Contains(bitmapKey(tick))
}

// FlushedCount returns the number of distinct ticks drained so far.
func (c *Cache[V]) FlushedCount() int {
	return c.flushed.GetCardinality()
}

// Keys returns resident ticks from least to most recently touched.
func (c *Cache[V]) Keys() []int64 {
	keys := make([]int64, 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*cacheEntry[V]).tick)
	}
	return keys
}

func (c *Cache[V]) pop(elem *list.Element) Entry[V] {
	entry := elem.Value.(*cacheEntry[V])
	c.order.Remove(elem)
	delete(c.index, entry.tick)
	c.flushed.Set(bitmapKey(entry.tick))
	return Entry[V]{Tick: entry.tick, Values: entry.values}
}

// bitmapKey maps an int64 onto uint64 preserving order, so negative ticks stay distinct.
func bitmapKey(tick int64) uint64 {
	return uint64(tick) ^ (1 << 63)
}

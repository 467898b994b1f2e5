package rangeread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trajstore-lab/trajstore/internal/core/interval"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Batch is the lazy result set of one step.
// Lower and Upper are nil when the query left that side unbounded.
type Batch struct {
	Step   int
	Lower  *interval.Bound
	Upper  *interval.Bound
	Cursor storage.DocumentCursor
}

// Interval returns the step bounds when both sides are set.
func (b Batch) Interval() (interval.Interval, bool) {
	if b.Lower == nil || b.Upper == nil {
		return interval.Interval{}, false
	}
	return interval.Interval{Lower: *b.Lower, Upper: *b.Upper}, true
}

// Iterator walks one range query as a sequence of batches, one store query per batch.
//
// Each Iterator owns its own interval cursor; nothing is stored on the Finder,
// so any number of iterators can run against the same collection at once.
// The cursor of the previous batch is closed when Next is called again.
type Iterator struct {
	finder storage.Finder
	query  Query
	sort   []storage.SortField

	steps *interval.Cursor
	lower *interval.Bound
	upper *interval.Bound

	issued  int
	done    bool
	current Batch
	err     error
}

// Open validates q and prepares an iterator over it.
// When q has an increment, missing bounds are resolved here, once, to the
// collection's current min/max of the parameter (closed on both ends).
// An empty collection yields storage.ErrNoData.
func Open(ctx context.Context, finder storage.Finder, q Query) (*Iterator, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	it := &Iterator{
		finder: finder,
		query:  q,
		sort:   append([]storage.SortField{{Field: q.Parameter, Direction: storage.Ascending}}, q.Sort...),
		lower:  q.Lower,
		upper:  q.Upper,
	}

	if q.Increment == 0 {
		return it, nil
	}

	if it.lower == nil {
		v, err := finder.ResolveExtremum(ctx, q.Parameter, storage.Ascending)
		if err != nil {
			return nil, fmt.Errorf("rangeread: resolve lower bound of %q: %w", q.Parameter, err)
		}
		b := interval.Closed(v)
		it.lower = &b
	}
	if it.upper == nil {
		v, err := finder.ResolveExtremum(ctx, q.Parameter, storage.Descending)
		if err != nil {
			return nil, fmt.Errorf("rangeread: resolve upper bound of %q: %w", q.Parameter, err)
		}
		b := interval.Closed(v)
		it.upper = &b
	}

	steps, err := interval.NewCursor(*it.lower, *it.upper, q.Increment)
	if err != nil {
		if errors.Is(err, interval.ErrInvalidInterval) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		return nil, err
	}
	it.steps = steps

	slog.Debug("[RangeRead] Opened stepped range",
		"parameter", q.Parameter,
		"lower", it.lower.Value,
		"upper", it.upper.Value,
		"increment", q.Increment,
		"steps", interval.Count(it.lower.Value, it.upper.Value, q.Increment),
	)
	return it, nil
}

// Next issues the query for the next step. It returns false when the range is
// exhausted or a query failed; check Err to tell the two apart.
func (it *Iterator) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}
	it.closeCurrent(ctx)

	lower, upper := it.lower, it.upper
	if it.steps != nil {
		iv, ok := it.steps.Next()
		if !ok {
			it.done = true
			return false
		}
		lower, upper = &iv.Lower, &iv.Upper
	} else if it.issued > 0 {
		it.done = true
		return false
	}

	filter := Filter(it.query.Parameter, lower, upper, it.query.Predicates)
	cur, err := it.finder.Find(ctx, filter, storage.FindOptions{Sort: it.sort, Limit: it.query.Limit})
	if err != nil {
		it.err = fmt.Errorf("rangeread: query step %d of %q: %w", it.issued, it.query.Parameter, err)
		return false
	}

	it.current = Batch{Step: it.issued, Lower: lower, Upper: upper, Cursor: cur}
	it.issued++
	return true
}

// Batch returns the batch produced by the last successful Next.
func (it *Iterator) Batch() Batch {
	return it.current
}

// Err returns the first query error, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Issued returns how many store queries the iterator has issued.
func (it *Iterator) Issued() int {
	return it.issued
}

// Bounds returns the bounds the iterator walks, after resolution.
func (it *Iterator) Bounds() (lower, upper *interval.Bound) {
	return it.lower, it.upper
}

// Close releases the current batch cursor and ends the iteration.
func (it *Iterator) Close(ctx context.Context) error {
	it.done = true
	return it.closeCurrent(ctx)
}

func (it *Iterator) closeCurrent(ctx context.Context) error {
	if it.current.Cursor == nil {
		return nil
	}
	err := it.current.Cursor.Close(ctx)
	it.current.Cursor = nil
	return err
}

// Drain walks every document of every batch in order and calls fn on each.
// It stops at the first error from fn, a cursor or the iterator, and always closes the iterator.
func Drain(ctx context.Context, it *Iterator, fn func(bson.Raw) error) (int, error) {
	defer it.Close(ctx) //nolint:errcheck

	n := 0
	for it.Next(ctx) {
		cur := it.Batch().Cursor
		for cur.Next(ctx) {
			if err := fn(cur.Current()); err != nil {
				return n, err
			}
			n++
		}
		if err := cur.Err(); err != nil {
			return n, fmt.Errorf("rangeread: read step %d: %w", it.Batch().Step, err)
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
	}
	return n, it.Err()
}

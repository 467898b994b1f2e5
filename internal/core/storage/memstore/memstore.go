package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Collection is an in-memory implementation of storage.Collection.
// It understands the filter shapes the range reader and transform pipeline
// issue: equality, $eq $ne $gt $gte $lt $lte $in on top-level fields, and
// field-level $set with dotted paths. Useful for testing and development.
type Collection struct {
	mu        sync.Mutex
	name      string
	docs      []bson.M
	finds     []bson.D
	bulkCalls int
	bulkErrs  []error
	unique    []string
	indexErr  error
}

var (
	_ storage.Collection = (*Collection)(nil)
	_ storage.KeyIndexer = (*Collection)(nil)
)

// New creates an empty collection.
func New(name string) *Collection {
	return &Collection{name: name}
}

func (c *Collection) Name() string {
	return c.name
}

// Insert adds documents as-is. Documents without _id get a fresh ObjectID.
func (c *Collection) Insert(docs ...bson.M) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		cp := cloneDoc(d)
		if _, ok := cp["_id"]; !ok {
			cp["_id"] = bson.NewObjectID()
		}
		c.docs = append(c.docs, cp)
	}
}

// Docs returns copies of every stored document in insertion order.
func (c *Collection) Docs() []bson.M {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bson.M, len(c.docs))
	for i, d := range c.docs {
		out[i] = cloneDoc(d)
	}
	return out
}

// FindCalls returns the filters of every Find issued so far.
func (c *Collection) FindCalls() []bson.D {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bson.D(nil), c.finds...)
}

// BulkCalls returns how many BulkUpsert calls were made, including failed ones.
func (c *Collection) BulkCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bulkCalls
}

// FailBulk queues errors returned by the next BulkUpsert calls, one per call.
func (c *Collection) FailBulk(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bulkErrs = append(c.bulkErrs, errs...)
}

// EnsureUniqueKey records field as unique. Like the server, it refuses when
// stored documents already repeat a value of field.
func (c *Collection) EnsureUniqueKey(ctx context.Context, field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexErr != nil {
		return c.indexErr
	}
	var seen []any
	for _, d := range c.docs {
		v, ok := getPath(d, field)
		if !ok {
			continue
		}
		for _, s := range seen {
			if equal(s, v) {
				return fmt.Errorf("memstore %s: duplicate %s %v", c.name, field, v)
			}
		}
		seen = append(seen, v)
	}
	for _, f := range c.unique {
		if f == field {
			return nil
		}
	}
	c.unique = append(c.unique, field)
	return nil
}

// UniqueKeys returns the fields EnsureUniqueKey was called with.
func (c *Collection) UniqueKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.unique...)
}

// FailIndex makes every later EnsureUniqueKey call return err.
func (c *Collection) FailIndex(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexErr = err
}

func (c *Collection) Find(ctx context.Context, filter bson.D, opts storage.FindOptions) (storage.DocumentCursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.finds = append(c.finds, filter)

	var matched []bson.M
	for _, d := range c.docs {
		ok, err := matches(d, filter)
		if err != nil {
			return nil, fmt.Errorf("memstore find: %w", err)
		}
		if ok {
			matched = append(matched, cloneDoc(d))
		}
	}

	if len(opts.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, s := range opts.Sort {
				a, aok := toFloat(matched[i][s.Field])
				b, bok := toFloat(matched[j][s.Field])
				if aok != bok {
					// Missing values sort first, as the document store does.
					return !aok == (s.Direction == storage.Ascending)
				}
				if a == b {
					continue
				}
				if s.Direction == storage.Descending {
					return a > b
				}
				return a < b
			}
			return false
		})
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	raws := make([]bson.Raw, 0, len(matched))
	for _, d := range matched {
		b, err := bson.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("memstore find: marshal: %w", err)
		}
		raws = append(raws, bson.Raw(b))
	}
	return &cursor{docs: raws, pos: -1}, nil
}

func (c *Collection) ResolveExtremum(ctx context.Context, field string, dir storage.SortDirection) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	var best float64
	for _, d := range c.docs {
		v, ok := toFloat(d[field])
		if !ok {
			continue
		}
		if !found || (dir == storage.Ascending && v < best) || (dir == storage.Descending && v > best) {
			best = v
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("memstore %s.%s: %w", c.name, field, storage.ErrNoData)
	}
	return best, nil
}

func (c *Collection) BulkUpsert(ctx context.Context, ops []storage.Upsert) (storage.BulkResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bulkCalls++
	if len(c.bulkErrs) > 0 {
		err := c.bulkErrs[0]
		c.bulkErrs = c.bulkErrs[1:]
		if err != nil {
			return storage.BulkResult{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return storage.BulkResult{}, err
	}

	var res storage.BulkResult
	for _, op := range ops {
		target := -1
		for i, d := range c.docs {
			ok, err := matches(d, op.Filter)
			if err != nil {
				return res, fmt.Errorf("memstore bulk upsert: %w", err)
			}
			if ok {
				target = i
				break
			}
		}

		if target < 0 {
			doc := bson.M{"_id": bson.NewObjectID()}
			for _, e := range op.Filter {
				if _, isOp := e.Value.(bson.D); !isOp {
					doc[e.Key] = e.Value
				}
			}
			for _, e := range op.Set {
				setPath(doc, e.Key, e.Value)
			}
			c.docs = append(c.docs, doc)
			res.Upserted++
			continue
		}

		res.Matched++
		modified := false
		for _, e := range op.Set {
			if old, ok := getPath(c.docs[target], e.Key); !ok || !reflect.DeepEqual(old, e.Value) {
				modified = true
			}
			setPath(c.docs[target], e.Key, e.Value)
		}
		if modified {
			res.Modified++
		}
	}
	return res, nil
}

func matches(doc bson.M, filter bson.D) (bool, error) {
	for _, e := range filter {
		got, present := doc[e.Key]
		ops, isOps := e.Value.(bson.D)
		if !isOps {
			if !present || !equal(got, e.Value) {
				return false, nil
			}
			continue
		}
		for _, op := range ops {
			ok, err := compare(got, present, op.Key, op.Value)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func compare(got any, present bool, op string, want any) (bool, error) {
	switch op {
	case "$eq":
		return present && equal(got, want), nil
	case "$ne":
		return !present || !equal(got, want), nil
	case "$in":
		list, ok := asList(want)
		if !ok {
			return false, fmt.Errorf("$in needs an array, got %T", want)
		}
		for _, w := range list {
			if present && equal(got, w) {
				return true, nil
			}
		}
		return false, nil
	case "$gt", "$gte", "$lt", "$lte":
		a, aok := toFloat(got)
		b, bok := toFloat(want)
		if !present || !aok || !bok {
			return false, nil
		}
		switch op {
		case "$gt":
			return a > b, nil
		case "$gte":
			return a >= b, nil
		case "$lt":
			return a < b, nil
		default:
			return a <= b, nil
		}
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case bson.A:
		return l, true
	case []any:
		return l, true
	case []float64:
		out := make([]any, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func equal(a, b any) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func setPath(doc bson.M, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(bson.M)
		if !ok {
			next = bson.M{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func getPath(doc bson.M, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(bson.M)
		if !ok {
			return nil, false
		}
		cur = next
	}
	v, ok := cur[parts[len(parts)-1]]
	return v, ok
}

func cloneDoc(d bson.M) bson.M {
	out := make(bson.M, len(d))
	for k, v := range d {
		if sub, ok := v.(bson.M); ok {
			out[k] = cloneDoc(sub)
			continue
		}
		out[k] = v
	}
	return out
}

type cursor struct {
	docs   []bson.Raw
	pos    int
	closed bool
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.closed || ctx.Err() != nil {
		return false
	}
	c.pos++
	return c.pos < len(c.docs)
}

func (c *cursor) Current() bson.Raw {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil
	}
	return c.docs[c.pos]
}

func (c *cursor) Decode(v any) error {
	cur := c.Current()
	if cur == nil {
		return fmt.Errorf("memstore cursor: no current document")
	}
	return bson.Unmarshal(cur, v)
}

func (c *cursor) Err() error {
	return nil
}

func (c *cursor) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

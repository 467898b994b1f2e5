package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection adapts one driver collection to storage.Collection.
type Collection struct {
	coll *mongo.Collection
	name string
}

var (
	_ storage.Collection = (*Collection)(nil)
	_ storage.KeyIndexer = (*Collection)(nil)
)

func (c *Collection) Name() string {
	return c.name
}

// Find returns a lazy cursor; documents are fetched in driver batches as the caller advances it.
func (c *Collection) Find(ctx context.Context, filter bson.D, opts storage.FindOptions) (storage.DocumentCursor, error) {
	if filter == nil {
		filter = bson.D{}
	}
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(sortDoc(opts.Sort))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	cur, err := c.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, classify("find "+c.name, err)
	}
	return &cursor{cur: cur}, nil
}

// ResolveExtremum reads the smallest or largest value of field with one sorted find_one.
func (c *Collection) ResolveExtremum(ctx context.Context, field string, dir storage.SortDirection) (float64, error) {
	opts := options.FindOne().
		SetSort(sortDoc([]storage.SortField{{Field: field, Direction: dir}})).
		SetProjection(bson.D{{Key: field, Value: 1}})
	filter := bson.D{{Key: field, Value: bson.D{{Key: "$type", Value: "number"}}}}

	raw, err := c.coll.FindOne(ctx, filter, opts).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("%s.%s: %w", c.name, field, storage.ErrNoData)
	}
	if err != nil {
		return 0, classify("find extremum of "+c.name+"."+field, err)
	}
	v, ok := numberValue(raw.Lookup(field))
	if !ok {
		return 0, fmt.Errorf("%s.%s: %w", c.name, field, storage.ErrNoData)
	}
	return v, nil
}

// BulkUpsert applies ops as one unordered bulk write. When the collection
// validator rejects the batch it is written again with validation bypassed,
// and the result is flagged.
func (c *Collection) BulkUpsert(ctx context.Context, ops []storage.Upsert) (storage.BulkResult, error) {
	if len(ops) == 0 {
		return storage.BulkResult{}, nil
	}
	models := upsertModels(ops)

	res, err := c.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	bypassed := false
	if isValidationFailure(err) {
		slog.Warn("[MongoStore] Bulk write rejected by validator, retrying with validation bypassed",
			"collection", c.name,
			"ops", len(ops),
		)
		// Upserts are idempotent, so re-applying the accepted part of the batch is harmless.
		res, err = c.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false).SetBypassDocumentValidation(true))
		bypassed = true
	}
	if err != nil {
		return storage.BulkResult{}, classify("bulk upsert into "+c.name, err)
	}
	return storage.BulkResult{
		Matched:            res.MatchedCount,
		Modified:           res.ModifiedCount,
		Upserted:           res.UpsertedCount,
		ValidationBypassed: bypassed,
	}, nil
}

// EnsureUniqueKey creates a unique ascending index on field. The call is a
// no-op when the index already exists; it fails when the collection already
// holds duplicate values of field.
func (c *Collection) EnsureUniqueKey(ctx context.Context, field string) error {
	_, err := c.coll.Indexes().CreateOne(ctx, uniqueIndex(field))
	if err != nil {
		return classify("create unique index on "+c.name+"."+field, err)
	}
	slog.Debug("[MongoStore] Ensured unique index", "collection", c.name, "field", field)
	return nil
}

func uniqueIndex(field string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true).SetName(field + "_unique"),
	}
}

// Count returns the number of documents matching filter.
func (c *Collection) Count(ctx context.Context, filter bson.D) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}
	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, classify("count "+c.name, err)
	}
	return n, nil
}

// Stats counts the collection and reads the range of each field. Fields the
// collection does not carry are left out of Ranges.
func (c *Collection) Stats(ctx context.Context, fields []string) (storage.CollectionStats, error) {
	n, err := c.coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return storage.CollectionStats{}, classify("count "+c.name, err)
	}
	stats := storage.CollectionStats{Name: c.name, Count: n, Ranges: make(map[string]storage.FieldRange, len(fields))}
	for _, f := range fields {
		lo, err := c.ResolveExtremum(ctx, f, storage.Ascending)
		if errors.Is(err, storage.ErrNoData) {
			continue
		}
		if err != nil {
			return storage.CollectionStats{}, err
		}
		hi, err := c.ResolveExtremum(ctx, f, storage.Descending)
		if err != nil {
			return storage.CollectionStats{}, err
		}
		stats.Ranges[f] = storage.FieldRange{Min: lo, Max: hi}
	}
	return stats, nil
}

func sortDoc(fields []storage.SortField) bson.D {
	out := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := int32(1)
		if f.Direction == storage.Descending {
			dir = -1
		}
		out = append(out, bson.E{Key: f.Field, Value: dir})
	}
	return out
}

func upsertModels(ops []storage.Upsert) []mongo.WriteModel {
	models := make([]mongo.WriteModel, len(ops))
	for i, op := range ops {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(op.Filter).
			SetUpdate(bson.D{{Key: "$set", Value: op.Set}}).
			SetUpsert(true)
	}
	return models
}

func numberValue(rv bson.RawValue) (float64, bool) {
	switch rv.Type {
	case bson.TypeDouble:
		return rv.Double(), true
	case bson.TypeInt32:
		return float64(rv.Int32()), true
	case bson.TypeInt64:
		return float64(rv.Int64()), true
	default:
		return 0, false
	}
}

type cursor struct {
	cur *mongo.Cursor
}

func (c *cursor) Next(ctx context.Context) bool { return c.cur.Next(ctx) }
func (c *cursor) Current() bson.Raw             { return c.cur.Current }
func (c *cursor) Decode(v any) error            { return c.cur.Decode(v) }
func (c *cursor) Err() error                    { return classify("cursor", c.cur.Err()) }
func (c *cursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

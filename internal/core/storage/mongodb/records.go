package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// RecordStore writes typed trajectory records into their collections.
type RecordStore struct {
	client     *Client
	fragments  string
	stitched   string
	reconciled string
	now        func() time.Time
}

var (
	_ storage.RecordWriter   = (*RecordStore)(nil)
	_ storage.MetadataWriter = (*Client)(nil)
)

// Records returns a RecordStore writing into the named collections.
func (c *Client) Records(fragments, stitched, reconciled string) *RecordStore {
	return &RecordStore{
		client:     c,
		fragments:  fragments,
		stitched:   stitched,
		reconciled: reconciled,
		now:        time.Now,
	}
}

// InsertValidated inserts doc with validation on. A validator rejection is
// retried once with validation bypassed, and the result says so.
func (c *Client) InsertValidated(ctx context.Context, collection string, doc any) (storage.WriteResult, error) {
	coll := c.db.Collection(collection)
	res, err := coll.InsertOne(ctx, doc)
	bypassed := false
	if isValidationFailure(err) {
		slog.Warn("[MongoStore] Insert rejected by validator, retrying with validation bypassed",
			"collection", collection,
		)
		res, err = coll.InsertOne(ctx, doc, options.InsertOne().SetBypassDocumentValidation(true))
		bypassed = true
	}
	if err != nil {
		return storage.WriteResult{}, classify("insert into "+collection, err)
	}
	return storage.WriteResult{ID: idString(res.InsertedID), ValidationBypassed: bypassed}, nil
}

// WriteFragment validates and inserts one raw tracking fragment.
func (r *RecordStore) WriteFragment(ctx context.Context, f *v1.Fragment) (storage.WriteResult, error) {
	if err := f.Validate(); err != nil {
		return storage.WriteResult{}, fmt.Errorf("%w: %v", storage.ErrInvalidRecord, err)
	}
	f.Summarize()
	r.stamp(&f.Provenance)
	return r.insert(ctx, r.fragments, f, &f.ID)
}

// WriteStitched validates and inserts one stitched trajectory.
func (r *RecordStore) WriteStitched(ctx context.Context, s *v1.StitchedTrajectory) (storage.WriteResult, error) {
	if err := s.Validate(); err != nil {
		return storage.WriteResult{}, fmt.Errorf("%w: %v", storage.ErrInvalidRecord, err)
	}
	r.stamp(&s.Provenance)
	return r.insert(ctx, r.stitched, s, &s.ID)
}

// WriteReconciled validates and inserts one reconciled trajectory.
func (r *RecordStore) WriteReconciled(ctx context.Context, rec *v1.ReconciledTrajectory) (storage.WriteResult, error) {
	if err := rec.Validate(); err != nil {
		return storage.WriteResult{}, fmt.Errorf("%w: %v", storage.ErrInvalidRecord, err)
	}
	rec.Summarize()
	r.stamp(&rec.Provenance)
	return r.insert(ctx, r.reconciled, rec, &rec.ID)
}

func (r *RecordStore) stamp(p *v1.Provenance) {
	p.ConfigurationID = r.client.opts.ConfigurationID
	p.ComputeNodeID = r.client.opts.ComputeNodeID
	p.WrittenAt = r.now().UTC()
}

func (r *RecordStore) insert(ctx context.Context, collection string, doc any, id *bson.ObjectID) (storage.WriteResult, error) {
	if id.IsZero() {
		*id = bson.NewObjectID()
	}
	return r.client.InsertValidated(ctx, collection, doc)
}

// UpsertMetadata records meta in the metadata collection, keyed by the output collection name.
func (c *Client) UpsertMetadata(ctx context.Context, meta v1.CollectionMetadata) error {
	if meta.Collection == "" {
		return fmt.Errorf("upsert metadata: collection name is required")
	}
	coll := c.db.Collection(c.opts.MetadataCollection)
	_, err := coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: meta.Collection}},
		bson.D{{Key: "$set", Value: meta}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return classify("upsert metadata for "+meta.Collection, err)
	}
	return nil
}

// Metadata reads the metadata document of one collection. A collection that
// was never transformed yields storage.ErrNoData.
func (c *Client) Metadata(ctx context.Context, collection string) (v1.CollectionMetadata, error) {
	var meta v1.CollectionMetadata
	err := c.db.Collection(c.opts.MetadataCollection).
		FindOne(ctx, bson.D{{Key: "_id", Value: collection}}).
		Decode(&meta)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return v1.CollectionMetadata{}, fmt.Errorf("metadata for %s: %w", collection, storage.ErrNoData)
	}
	if err != nil {
		return v1.CollectionMetadata{}, classify("read metadata for "+collection, err)
	}
	return meta, nil
}

func idString(id any) string {
	switch v := id.(type) {
	case bson.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

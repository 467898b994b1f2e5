package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// SummaryIndexFields are the per-trajectory summary fields range reads run over.
var SummaryIndexFields = []string{"first_timestamp", "last_timestamp", "starting_x", "ending_x"}

// Exists reports whether the named collection exists.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	names, err := c.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, classify("list collections", err)
	}
	return len(names) > 0, nil
}

// ListCollectionNames returns every collection in the database, sorted.
func (c *Client) ListCollectionNames(ctx context.Context) ([]string, error) {
	names, err := c.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, classify("list collections", err)
	}
	sort.Strings(names)
	return names, nil
}

// EnsureCollection creates the collection when missing and installs validator
// with collMod when one is given. validator is a full validator document such
// as {$jsonSchema: {...}}.
func (c *Client) EnsureCollection(ctx context.Context, name string, validator bson.D) error {
	exists, err := c.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		if err := c.db.CreateCollection(ctx, name); err != nil {
			return classify("create collection "+name, err)
		}
		slog.Info("[MongoStore] Created collection", "collection", name)
	}
	if len(validator) == 0 {
		return nil
	}
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "strict"},
		{Key: "validationAction", Value: "error"},
	}
	if err := c.db.RunCommand(ctx, cmd).Err(); err != nil {
		return classify("install validator on "+name, err)
	}
	slog.Info("[MongoStore] Installed validator", "collection", name)
	return nil
}

// EnsureIndexes creates ascending single-field indexes on fields. Existing
// indexes with the same key are left alone by the server.
func (c *Client) EnsureIndexes(ctx context.Context, name string, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, len(fields))
	for i, f := range fields {
		models[i] = mongo.IndexModel{Keys: bson.D{{Key: f, Value: 1}}}
	}
	if _, err := c.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return classify("create indexes on "+name, err)
	}
	return nil
}

// DropCollections drops every named collection. A protected name aborts the
// whole call before anything is dropped.
func (c *Client) DropCollections(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, ok := c.protected[name]; ok {
			return fmt.Errorf("drop %s: %w", name, storage.ErrProtectedCollection)
		}
	}
	for _, name := range names {
		if err := c.db.Collection(name).Drop(ctx); err != nil {
			return classify("drop "+name, err)
		}
		slog.Info("[MongoStore] Dropped collection", "collection", name)
	}
	return nil
}

// Finder returns the named collection as a storage.Finder.
func (c *Client) Finder(name string) storage.Finder {
	return c.Collection(name)
}

// CollectionStats counts name and reads the range of each of fields.
func (c *Client) CollectionStats(ctx context.Context, name string, fields []string) (storage.CollectionStats, error) {
	return c.Collection(name).Stats(ctx, fields)
}

package storage

import (
	"context"
	"errors"

	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrConnection is returned when the document store cannot be reached at startup.
	ErrConnection = errors.New("document store unreachable")

	// ErrNoData is returned when a range bound cannot be resolved because the collection is empty.
	ErrNoData = errors.New("no data to resolve range")

	// ErrProtectedCollection is returned when a drop targets a collection marked as protected.
	ErrProtectedCollection = errors.New("collection is protected")

	// ErrInvalidRecord is returned when a typed record fails validation before it reaches the store.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrTransient marks a failure worth retrying: network errors, timeouts, elections.
	ErrTransient = errors.New("transient store failure")
)

// SortDirection is the order applied to one sort field.
type SortDirection int

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

// SortField is one (field, direction) sort key.
type SortField struct {
	Field     string
	Direction SortDirection
}

// FindOptions shapes a Find call.
type FindOptions struct {
	Sort  []SortField
	Limit int64
}

// DocumentCursor is a lazy, forward-only sequence of documents.
// Callers must Close it.
type DocumentCursor interface {
	Next(ctx context.Context) bool
	Current() bson.Raw
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// Finder runs reads against one collection.
type Finder interface {
	// Find returns a lazy cursor over documents matching filter.
	Find(ctx context.Context, filter bson.D, opts FindOptions) (DocumentCursor, error)

	// ResolveExtremum returns the smallest (Ascending) or largest (Descending) value of field.
	// Returns ErrNoData when no document carries the field.
	ResolveExtremum(ctx context.Context, field string, dir SortDirection) (float64, error)
}

// Upsert is one field-level upsert: documents matching Filter get Set applied
// with $set semantics, and a new document is created when none match.
type Upsert struct {
	Filter bson.D
	Set    bson.D
}

// BulkResult summarizes one bulk write.
type BulkResult struct {
	Matched  int64
	Modified int64
	Upserted int64

	// ValidationBypassed is true when the batch was rejected by the collection
	// validator and then written with validation bypassed.
	ValidationBypassed bool
}

// BulkWriter applies batches of unordered upserts to one collection.
type BulkWriter interface {
	BulkUpsert(ctx context.Context, ops []Upsert) (BulkResult, error)
}

// KeyIndexer is implemented by bulk writers that can hold the store to one
// document per value of a key field, so concurrent upserts on the same key
// cannot both insert.
type KeyIndexer interface {
	EnsureUniqueKey(ctx context.Context, field string) error
}

// Collection is a named collection that can be read and bulk written.
type Collection interface {
	Finder
	BulkWriter
	Name() string
}

// WriteResult describes one single-document write.
type WriteResult struct {
	ID                 string
	ValidationBypassed bool
}

// RecordWriter persists typed trajectory records into their collections.
type RecordWriter interface {
	WriteFragment(ctx context.Context, f *v1.Fragment) (WriteResult, error)
	WriteStitched(ctx context.Context, s *v1.StitchedTrajectory) (WriteResult, error)
	WriteReconciled(ctx context.Context, r *v1.ReconciledTrajectory) (WriteResult, error)
}

// MetadataWriter records per-collection metadata documents.
type MetadataWriter interface {
	UpsertMetadata(ctx context.Context, meta v1.CollectionMetadata) error
}

// FieldRange is the observed [Min, Max] of one numeric field.
type FieldRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// CollectionStats summarizes one collection.
type CollectionStats struct {
	Name   string                `json:"name"`
	Count  int64                 `json:"count"`
	Ranges map[string]FieldRange `json:"ranges"`
}

// RunStore records transform runs.
type RunStore interface {
	RecordRun(ctx context.Context, run *v1.TransformRun) error
	ListRuns(ctx context.Context, limit int) ([]v1.TransformRun, error)
}

package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"github.com/trajstore-lab/trajstore/internal/metrics"
	"github.com/trajstore-lab/trajstore/internal/rangeread"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/singleflight"
)

const defaultRunsLimit = 20

var (
	// ErrInvalidQuery marks request validation errors that should return HTTP 400.
	ErrInvalidQuery = errors.New("invalid projection query")

	// ErrCollectionNotFound is returned for reads against a collection that does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrLedgerDisabled is returned by run queries when no run ledger is configured.
	ErrLedgerDisabled = errors.New("run ledger is disabled")
)

// Store is the read side of the document store the projection layer serves from.
type Store interface {
	Finder(name string) storage.Finder
	Exists(ctx context.Context, name string) (bool, error)
	ListCollectionNames(ctx context.Context) ([]string, error)
	CollectionStats(ctx context.Context, name string, fields []string) (storage.CollectionStats, error)
	Metadata(ctx context.Context, collection string) (v1.CollectionMetadata, error)
}

// Service implements the read API over trajectory and transformed collections.
type Service struct {
	store        Store
	runs         storage.RunStore
	statsFields  []string
	maxDocuments int
	metrics      *metrics.Collectors

	// Concurrent stats requests for one collection share a single set of store reads.
	statsGroup singleflight.Group
}

// NewService creates a projection service. runs may be nil when the ledger is disabled.
func NewService(store Store, runs storage.RunStore, statsFields []string, maxDocuments int, m *metrics.Collectors) *Service {
	if maxDocuments <= 0 {
		maxDocuments = 10000
	}
	return &Service{
		store:        store,
		runs:         runs,
		statsFields:  statsFields,
		maxDocuments: maxDocuments,
		metrics:      m,
	}
}

// ReadRange walks the requested range and returns every batch, stopping early
// once the document cap is reached.
func (s *Service) ReadRange(ctx context.Context, req RangeRequest) (*RangeResponse, error) {
	if err := s.requireCollection(ctx, req.Collection); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 || limit > s.maxDocuments {
		limit = s.maxDocuments
	}

	q := rangeread.Query{
		Parameter:  req.Parameter,
		Lower:      req.Lower,
		Upper:      req.Upper,
		Increment:  req.Increment,
		Predicates: req.Predicates,
		Sort:       []storage.SortField{{Field: "_id", Direction: storage.Ascending}},
	}

	resp := &RangeResponse{Collection: req.Collection, Parameter: req.Parameter, Batches: []RangeBatch{}}

	it, err := rangeread.Open(ctx, s.store.Finder(req.Collection), q)
	if errors.Is(err, storage.ErrNoData) {
		s.metrics.RangeQuery("empty")
		return resp, nil
	}
	if err != nil {
		s.metrics.RangeQuery("error")
		return nil, fmt.Errorf("projection: open range: %w", err)
	}
	defer it.Close(ctx) //nolint:errcheck

	for it.Next(ctx) {
		b := it.Batch()
		batch := RangeBatch{Step: b.Step, Lower: b.Lower, Upper: b.Upper, Documents: []json.RawMessage{}}
		for b.Cursor.Next(ctx) {
			if resp.DocumentsReturned == limit {
				resp.Truncated = true
				break
			}
			doc, err := bson.MarshalExtJSON(b.Cursor.Current(), false, false)
			if err != nil {
				s.metrics.RangeQuery("error")
				return nil, fmt.Errorf("projection: encode document: %w", err)
			}
			batch.Documents = append(batch.Documents, doc)
			resp.DocumentsReturned++
		}
		if err := b.Cursor.Err(); err != nil {
			s.metrics.RangeQuery("error")
			return nil, fmt.Errorf("projection: read step %d: %w", b.Step, err)
		}
		resp.Batches = append(resp.Batches, batch)
		if resp.Truncated {
			break
		}
	}
	if err := it.Err(); err != nil {
		s.metrics.RangeQuery("error")
		return nil, fmt.Errorf("projection: %w", err)
	}

	s.metrics.RangeQuery("ok")
	slog.Debug("[Projection] Range read served",
		"collection", req.Collection,
		"parameter", req.Parameter,
		"batches", len(resp.Batches),
		"documents", resp.DocumentsReturned,
		"truncated", resp.Truncated,
	)
	return resp, nil
}

// Stats returns the document count and the range of every summary field.
func (s *Service) Stats(ctx context.Context, collection string) (storage.CollectionStats, error) {
	if err := s.requireCollection(ctx, collection); err != nil {
		return storage.CollectionStats{}, err
	}
	v, err, shared := s.statsGroup.Do(collection, func() (interface{}, error) {
		// Shared by every waiting caller, so one caller leaving must not cancel it.
		return s.store.CollectionStats(context.WithoutCancel(ctx), collection, s.statsFields)
	})
	if err != nil {
		return storage.CollectionStats{}, fmt.Errorf("projection: stats of %s: %w", collection, err)
	}
	if shared {
		slog.Debug("[Projection] Shared in-flight stats read", "collection", collection)
	}
	return v.(storage.CollectionStats), nil
}

// Metadata returns the transform metadata recorded for collection.
func (s *Service) Metadata(ctx context.Context, collection string) (v1.CollectionMetadata, error) {
	meta, err := s.store.Metadata(ctx, collection)
	if errors.Is(err, storage.ErrNoData) {
		return v1.CollectionMetadata{}, fmt.Errorf("%w: no metadata for %s", ErrCollectionNotFound, collection)
	}
	if err != nil {
		return v1.CollectionMetadata{}, fmt.Errorf("projection: metadata of %s: %w", collection, err)
	}
	return meta, nil
}

// Collections lists every collection in the database.
func (s *Service) Collections(ctx context.Context) ([]string, error) {
	names, err := s.store.ListCollectionNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("projection: list collections: %w", err)
	}
	return names, nil
}

// Runs returns the most recent transform runs from the ledger.
func (s *Service) Runs(ctx context.Context, limit int) ([]v1.TransformRun, error) {
	if s.runs == nil {
		return nil, ErrLedgerDisabled
	}
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("projection: list runs: %w", err)
	}
	return runs, nil
}

func (s *Service) requireCollection(ctx context.Context, name string) error {
	ok, err := s.store.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("projection: check collection %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return nil
}

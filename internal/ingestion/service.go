package ingestion

import (
	"github.com/gin-gonic/gin"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"github.com/trajstore-lab/trajstore/internal/metrics"
	"github.com/trajstore-lab/trajstore/internal/schema"
)

// Collections names the collection each record kind is written to. It is
// used to look up the collection's schema spec.
type Collections struct {
	Fragments  string
	Stitched   string
	Reconciled string
}

type Service struct {
	store            storage.RecordWriter
	schemas          *schema.Registry
	collections      Collections
	metrics          *metrics.Collectors
	maxBodySizeBytes int
}

// NewService wires the typed write endpoints. schemas and m may be nil: without
// a registry, documents are checked only by the record types and the store.
func NewService(store storage.RecordWriter, schemas *schema.Registry, collections Collections, m *metrics.Collectors, maxBodySizeMB int) *Service {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1
	}
	return &Service{
		store:            store,
		schemas:          schemas,
		collections:      collections,
		metrics:          m,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/fragments", s.FragmentHandler)
	r.POST("/v1/stitched", s.StitchedHandler)
	r.POST("/v1/reconciled", s.ReconciledHandler)
}

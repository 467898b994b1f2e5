package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	httperr "github.com/trajstore-lab/trajstore/internal/core/errors"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"github.com/trajstore-lab/trajstore/internal/schema"
)

const (
	kindFragment   = "fragment"
	kindStitched   = "stitched"
	kindReconciled = "reconciled"

	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgPersistFailed  = "Failed to persist record"
	msgStoreBusy      = "Document store temporarily unavailable"
)

// storeFilledFields are set by the store on write and may be absent from requests.
var storeFilledFields = []string{
	"first_timestamp", "last_timestamp", "starting_x", "ending_x",
	"configuration_id", "compute_node_id", "db_write_timestamp",
}

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

func (s *Service) FragmentHandler(c *gin.Context) {
	ingest(s, c, kindFragment, s.collections.Fragments, s.store.WriteFragment)
}

func (s *Service) StitchedHandler(c *gin.Context) {
	ingest(s, c, kindStitched, s.collections.Stitched, s.store.WriteStitched)
}

func (s *Service) ReconciledHandler(c *gin.Context) {
	ingest(s, c, kindReconciled, s.collections.Reconciled, s.store.WriteReconciled)
}

// ingest reads, checks and writes one record of type T.
func ingest[T any](s *Service, c *gin.Context, kind, collection string, write func(context.Context, *T) (storage.WriteResult, error)) {
	body, ierr := s.readBody(c)
	if ierr != nil {
		s.fail(c, kind, ierr)
		return
	}

	if ierr := s.checkSchema(collection, body); ierr != nil {
		s.fail(c, kind, ierr)
		return
	}

	var rec T
	if err := c.ShouldBindJSON(&rec); err != nil {
		slog.Warn("[Ingestion] Invalid JSON body received", "kind", kind, "error", err, "payload_size", len(body))
		s.fail(c, kind, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		})
		return
	}

	res, err := write(c.Request.Context(), &rec)
	if err != nil {
		s.fail(c, kind, persistError(kind, err))
		return
	}
	if res.ValidationBypassed {
		s.metrics.ValidationBypass(collection)
		slog.Warn("[Ingestion] Record stored with validation bypassed", "kind", kind, "id", res.ID)
	}

	s.metrics.RecordIngested(kind, "ok")
	slog.Debug("[Ingestion] Stored record", "kind", kind, "id", res.ID, "payload_size", len(body))
	c.JSON(http.StatusCreated, gin.H{
		"id":                  res.ID,
		"validation_bypassed": res.ValidationBypassed,
	})
}

// readBody reads at most the configured body size and rewinds the request body
// so it can be bound afterwards.
func (s *Service) readBody(c *gin.Context) ([]byte, *ingestionError) {
	maxBytes := int64(s.maxBodySizeBytes)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("[Ingestion] Failed to read request body", "error", err)
		return nil, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}
	if int64(len(body)) > maxBytes {
		slog.Warn("[Ingestion] Request body exceeds maximum size", "size", len(body), "max", maxBytes)
		return nil, &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// checkSchema validates the raw document against the collection spec when one is registered.
func (s *Service) checkSchema(collection string, body []byte) *ingestionError {
	spec, err := s.schemas.Get(collection)
	if errors.Is(err, schema.ErrNotFound) {
		return nil
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	if err := spec.ValidateDocument(doc, storeFilledFields...); err != nil {
		slog.Warn("[Ingestion] Schema validation failed", "collection", collection, "error", err)
		details := map[string]interface{}{"collection": collection}
		var d schema.ValidationDetailer
		if errors.As(err, &d) {
			for k, v := range d.Details() {
				details[k] = v
			}
		}
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpSchemaValidationError,
			message:    err.Error(),
			details:    details,
		}
	}
	return nil
}

func persistError(kind string, err error) *ingestionError {
	switch {
	case errors.Is(err, storage.ErrInvalidRecord):
		slog.Warn("[Ingestion] Record rejected", "kind", kind, "error", err)
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidRecordError,
			message:    err.Error(),
		}
	case errors.Is(err, storage.ErrTransient):
		slog.Warn("[Ingestion] Transient store failure", "kind", kind, "error", err)
		return &ingestionError{
			statusCode: http.StatusServiceUnavailable,
			errorType:  httperr.HttpUnavailableError,
			message:    msgStoreBusy,
		}
	default:
		slog.Error("[Ingestion] Failed to persist record", "kind", kind, "error", err)
		return &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		}
	}
}

func (s *Service) fail(c *gin.Context, kind string, err *ingestionError) {
	outcome := "error"
	if err.statusCode < http.StatusInternalServerError {
		outcome = "invalid"
	}
	s.metrics.RecordIngested(kind, outcome)
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}

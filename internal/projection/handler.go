package projection

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	httperr "github.com/trajstore-lab/trajstore/internal/core/errors"
	"github.com/trajstore-lab/trajstore/internal/core/interval"
	"github.com/trajstore-lab/trajstore/internal/rangeread"
)

// predicateOperators maps the query-string prefix of a static predicate to its operator.
var predicateOperators = map[string]string{
	"eq":  rangeread.OpEq,
	"ne":  rangeread.OpNe,
	"gt":  rangeread.OpGt,
	"gte": rangeread.OpGte,
	"lt":  rangeread.OpLt,
	"lte": rangeread.OpLte,
}

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/collections", s.HandleListCollections)
	r.GET("/v1/collections/:collection/range", s.HandleRange)
	r.GET("/v1/collections/:collection/stats", s.HandleStats)
	r.GET("/v1/collections/:collection/metadata", s.HandleMetadata)
	r.GET("/v1/runs", s.HandleRuns)
}

// HandleRange handles GET /v1/collections/:collection/range
// Query parameters: parameter, gt|gte, lt|lte, increment, limit, and
// <op>.<field>=<value> static predicates (op one of eq, ne, gt, gte, lt, lte).
func (s *Service) HandleRange(c *gin.Context) {
	req, err := parseRangeRequest(c)
	if err != nil {
		writeError(c, err, "Invalid range query")
		return
	}

	resp, err := s.ReadRange(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to read range")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/collections/:collection/stats
func (s *Service) HandleStats(c *gin.Context) {
	stats, err := s.Stats(c.Request.Context(), c.Param("collection"))
	if err != nil {
		writeError(c, err, "Failed to read collection stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleMetadata handles GET /v1/collections/:collection/metadata
func (s *Service) HandleMetadata(c *gin.Context) {
	meta, err := s.Metadata(c.Request.Context(), c.Param("collection"))
	if err != nil {
		writeError(c, err, "Failed to read collection metadata")
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Service) HandleListCollections(c *gin.Context) {
	names, err := s.Collections(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to list collections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": names})
}

// HandleRuns handles GET /v1/runs?limit=N
func (s *Service) HandleRuns(c *gin.Context) {
	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	runs, err := s.Runs(c.Request.Context(), query.Limit)
	if err != nil {
		writeError(c, err, "Failed to list transform runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func parseRangeRequest(c *gin.Context) (RangeRequest, error) {
	req := RangeRequest{
		Collection: c.Param("collection"),
		Parameter:  c.Query("parameter"),
	}
	if req.Parameter == "" {
		return req, fmt.Errorf("%w: parameter is required", ErrInvalidQuery)
	}

	var err error
	if req.Lower, err = parseBound(c, "gt", "gte"); err != nil {
		return req, err
	}
	if req.Upper, err = parseBound(c, "lt", "lte"); err != nil {
		return req, err
	}
	if v := c.Query("increment"); v != "" {
		if req.Increment, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("%w: increment: %v", ErrInvalidQuery, err)
		}
	}
	if v := c.Query("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil || req.Limit < 0 {
			return req, fmt.Errorf("%w: limit must be a non-negative integer", ErrInvalidQuery)
		}
	}

	for key, values := range c.Request.URL.Query() {
		prefix, field, ok := strings.Cut(key, ".")
		if !ok {
			continue
		}
		op, known := predicateOperators[prefix]
		if !known || field == "" {
			return req, fmt.Errorf("%w: unsupported predicate %q", ErrInvalidQuery, key)
		}
		for _, raw := range values {
			req.Predicates = append(req.Predicates, rangeread.Predicate{Field: field, Operator: op, Value: predicateValue(raw)})
		}
	}
	return req, nil
}

// parseBound reads an open (openKey) or closed (closedKey) bound; setting both is an error.
func parseBound(c *gin.Context, openKey, closedKey string) (*interval.Bound, error) {
	openVal, hasOpen := c.GetQuery(openKey)
	closedVal, hasClosed := c.GetQuery(closedKey)
	if hasOpen && hasClosed {
		return nil, fmt.Errorf("%w: set only one of %s and %s", ErrInvalidQuery, openKey, closedKey)
	}
	if !hasOpen && !hasClosed {
		return nil, nil
	}

	raw, key := openVal, openKey
	if hasClosed {
		raw, key = closedVal, closedKey
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidQuery, key, err)
	}
	b := interval.Open(v)
	if hasClosed {
		b = interval.Closed(v)
	}
	return &b, nil
}

// predicateValue keeps numbers numeric so they match numeric document fields.
func predicateValue(raw string) interface{} {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return raw
}

func writeError(c *gin.Context, err error, message string) {
	status, errType := http.StatusInternalServerError, httperr.HttpInternalError
	switch {
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, rangeread.ErrInvalidQuery):
		status, errType = http.StatusBadRequest, httperr.HttpInvalidQueryError
	case errors.Is(err, ErrCollectionNotFound):
		status, errType = http.StatusNotFound, httperr.HttpNotFoundError
	case errors.Is(err, ErrLedgerDisabled):
		status, errType = http.StatusServiceUnavailable, httperr.HttpUnavailableError
	}
	c.JSON(status, httperr.ErrorResponse{
		ErrorType: errType,
		Message:   message,
		Details:   err.Error(),
	})
}

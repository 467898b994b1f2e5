package projection

import (
	"encoding/json"

	"github.com/trajstore-lab/trajstore/internal/core/interval"
	"github.com/trajstore-lab/trajstore/internal/rangeread"
)

// RangeRequest is one range read over a collection.
type RangeRequest struct {
	Collection string
	Parameter  string
	Lower      *interval.Bound
	Upper      *interval.Bound
	Increment  float64
	Predicates []rangeread.Predicate

	// Limit caps the documents returned; 0 or anything above the service
	// maximum uses the maximum.
	Limit int
}

// RangeBatch is the documents of one range step, in parameter order.
type RangeBatch struct {
	Step      int               `json:"step"`
	Lower     *interval.Bound   `json:"lower,omitempty"`
	Upper     *interval.Bound   `json:"upper,omitempty"`
	Documents []json.RawMessage `json:"documents"`
}

// RangeResponse is the result of a range read. Truncated is set when the
// document cap was reached before the range was exhausted.
type RangeResponse struct {
	Collection        string       `json:"collection"`
	Parameter         string       `json:"parameter"`
	Batches           []RangeBatch `json:"batches"`
	DocumentsReturned int          `json:"documents_returned"`
	Truncated         bool         `json:"truncated"`
}

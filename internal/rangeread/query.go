package rangeread

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/trajstore-lab/trajstore/internal/core/interval"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrInvalidQuery is returned when a range query is not well formed.
var ErrInvalidQuery = errors.New("invalid range query")

// Supported predicate operators.
const (
	OpEq  = "$eq"
	OpNe  = "$ne"
	OpGt  = "$gt"
	OpGte = "$gte"
	OpLt  = "$lt"
	OpLte = "$lte"
	OpIn  = "$in"
)

var validOperators = map[string]struct{}{
	OpEq: {}, OpNe: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {}, OpIn: {},
}

// Predicate is a static condition added to every step of a range query.
type Predicate struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Eq is shorthand for an equality predicate.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Operator: OpEq, Value: value}
}

// Query is a single range predicate over Parameter plus static predicates.
//
// With Increment > 0 the range is walked in fixed steps and missing bounds are
// resolved from the collection when the iterator is opened. With Increment == 0
// one query is issued with whatever bounds are set.
type Query struct {
	Parameter  string
	Lower      *interval.Bound
	Upper      *interval.Bound
	Increment  float64
	Predicates []Predicate

	// Sort keys applied after Parameter ascending.
	Sort  []storage.SortField
	Limit int64
}

// Validate checks the query shape. It does not touch the store.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Parameter) == "" {
		return fmt.Errorf("%w: parameter is required", ErrInvalidQuery)
	}
	if math.IsNaN(q.Increment) || math.IsInf(q.Increment, 0) || q.Increment < 0 {
		return fmt.Errorf("%w: increment must be >= 0, got %v", ErrInvalidQuery, q.Increment)
	}
	if q.Lower != nil && q.Upper != nil && q.Lower.Value > q.Upper.Value {
		return fmt.Errorf("%w: lower bound %v is above upper bound %v", ErrInvalidQuery, q.Lower.Value, q.Upper.Value)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 0", ErrInvalidQuery)
	}
	for _, p := range q.Predicates {
		if strings.TrimSpace(p.Field) == "" {
			return fmt.Errorf("%w: predicate field is required", ErrInvalidQuery)
		}
		if p.Field == q.Parameter {
			return fmt.Errorf("%w: predicate on range parameter %q; use the bounds instead", ErrInvalidQuery, p.Field)
		}
		if _, ok := validOperators[p.Operator]; !ok {
			return fmt.Errorf("%w: unsupported operator %q on %q", ErrInvalidQuery, p.Operator, p.Field)
		}
	}
	return nil
}

// Filter builds the store filter for one step:
// {parameter: {op_lo: lo, op_hi: hi}} plus every predicate, grouped by field.
func Filter(parameter string, lower, upper *interval.Bound, predicates []Predicate) bson.D {
	filter := bson.D{}

	var rng bson.D
	if lower != nil {
		op := OpGt
		if lower.Closed {
			op = OpGte
		}
		rng = append(rng, bson.E{Key: op, Value: lower.Value})
	}
	if upper != nil {
		op := OpLt
		if upper.Closed {
			op = OpLte
		}
		rng = append(rng, bson.E{Key: op, Value: upper.Value})
	}
	if len(rng) > 0 {
		filter = append(filter, bson.E{Key: parameter, Value: rng})
	}

	index := make(map[string]int)
	for _, p := range predicates {
		cond := bson.E{Key: p.Operator, Value: p.Value}
		if i, ok := index[p.Field]; ok {
			filter[i].Value = append(filter[i].Value.(bson.D), cond)
			continue
		}
		index[p.Field] = len(filter)
		filter = append(filter, bson.E{Key: p.Field, Value: bson.D{cond}})
	}
	return filter
}

package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no spec is registered for a collection.
var ErrNotFound = errors.New("schema not found")

// ValidationError represents one document field failing its collection spec.
type ValidationError struct {
	Collection    string   `json:"collection"`
	Message       string   `json:"message"`
	Field         string   `json:"field,omitempty"`
	ExpectedType  string   `json:"expected_type,omitempty"`
	ActualType    string   `json:"actual_type,omitempty"`
	UnknownFields []string `json:"unknown_fields,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.UnknownFields) > 0 {
		return fmt.Sprintf("unknown field(s) %v not allowed in collection %s", e.UnknownFields, e.Collection)
	}
	if e.Field != "" {
		return fmt.Sprintf("field '%s': %s (collection %s)", e.Field, e.Message, e.Collection)
	}
	return fmt.Sprintf("%s (collection %s)", e.Message, e.Collection)
}

// MultiValidationError aggregates multiple validation errors.
type MultiValidationError struct {
	Errors []*ValidationError
}

func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// ValidationDetailer surfaces structured validation details for API error responses.
type ValidationDetailer interface {
	Details() map[string]interface{}
}

func (e *ValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	if len(e.UnknownFields) > 0 {
		d["unknown_fields"] = e.UnknownFields
	}
	if e.Field != "" {
		d["field"] = e.Field
	}
	return d
}

// Details aggregates the failed field names from all child errors.
func (e *MultiValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	var fields []string
	for _, ve := range e.Errors {
		if ve.Field != "" {
			fields = append(fields, ve.Field)
		}
		if len(ve.UnknownFields) > 0 {
			d["unknown_fields"] = ve.UnknownFields
		}
	}
	if len(fields) > 0 {
		d["fields"] = fields
	}
	return d
}

func typeMismatch(collection, field, expected string, value interface{}) *ValidationError {
	actual := typeName(value)
	return &ValidationError{
		Collection:   collection,
		Message:      fmt.Sprintf("expected %s, got %s", expected, actual),
		Field:        field,
		ExpectedType: expected,
		ActualType:   actual,
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64, float32, float64:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

package schema

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// ValidateDocument checks a JSON-decoded document against the spec the way
// the collection validator would, so bad writes are rejected with field-level
// detail before they reach the store. Fields named in exempt are not required
// to be present; the writer fills them in. It returns *MultiValidationError.
func (s *Spec) ValidateDocument(doc map[string]interface{}, exempt ...string) error {
	if s.StrictMode {
		var unknown []string
		for key := range doc {
			if _, ok := s.Fields[key]; !ok && key != "_id" {
				unknown = append(unknown, key)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return &MultiValidationError{Errors: []*ValidationError{{
				Collection:    s.Collection,
				Message:       fmt.Sprintf("unknown field(s) not allowed: %v", unknown),
				UnknownFields: unknown,
			}}}
		}
	}

	var errs []*ValidationError
	for _, name := range s.fieldNames() {
		field := s.Fields[name]
		value, exists := doc[name]
		if !exists || value == nil {
			if field.Required && !contains(exempt, name) {
				errs = append(errs, &ValidationError{Collection: s.Collection, Field: name, Message: "required field is missing"})
			}
			continue
		}
		if ve := s.validateField(name, field, value); ve != nil {
			errs = append(errs, ve)
		}
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}

func (s *Spec) validateField(name string, f *Field, value interface{}) *ValidationError {
	if !f.Array {
		return s.validateScalar(name, f, value)
	}
	items, ok := value.([]interface{})
	if !ok {
		return typeMismatch(s.Collection, name, "array", value)
	}
	if f.MinItems != nil && len(items) < *f.MinItems {
		return &ValidationError{
			Collection: s.Collection,
			Field:      name,
			Message:    fmt.Sprintf("array has %d items, fewer than minItems %d", len(items), *f.MinItems),
		}
	}
	for i, item := range items {
		if ve := s.validateScalar(fmt.Sprintf("%s[%d]", name, i), f, item); ve != nil {
			return ve
		}
	}
	return nil
}

func (s *Spec) validateScalar(name string, f *Field, value interface{}) *ValidationError {
	switch f.Type {
	case "string":
		str, ok := value.(string)
		if !ok {
			return typeMismatch(s.Collection, name, "string", value)
		}
		if f.compiledPattern != nil && !f.compiledPattern.MatchString(str) {
			return &ValidationError{Collection: s.Collection, Field: name, Message: fmt.Sprintf("value does not match pattern %q", f.Pattern)}
		}
		if len(f.Enum) > 0 && !enumContains(f.Enum, str) {
			return &ValidationError{Collection: s.Collection, Field: name, Message: fmt.Sprintf("value %q is not one of %v", str, f.Enum)}
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return typeMismatch(s.Collection, name, "bool", value)
		}
	case "objectId":
		str, ok := value.(string)
		if !ok || !objectIDPattern.MatchString(str) {
			return typeMismatch(s.Collection, name, "objectId", value)
		}
	case "date":
		str, ok := value.(string)
		if !ok {
			return typeMismatch(s.Collection, name, "date", value)
		}
		if _, err := time.Parse(time.RFC3339Nano, str); err != nil {
			return &ValidationError{Collection: s.Collection, Field: name, Message: "value is not an RFC 3339 timestamp"}
		}
	case "number":
		n, ok := toFloat(value)
		if !ok {
			return typeMismatch(s.Collection, name, f.Kind, value)
		}
		if (f.Kind == "int32" || f.Kind == "int64") && n != float64(int64(n)) {
			return typeMismatch(s.Collection, name, f.Kind, value)
		}
		if f.Min != nil && n < *f.Min {
			return &ValidationError{Collection: s.Collection, Field: name, Message: fmt.Sprintf("value %v is below minimum %v", n, *f.Min)}
		}
		if f.Max != nil && n > *f.Max {
			return &ValidationError{Collection: s.Collection, Field: name, Message: fmt.Sprintf("value %v is above maximum %v", n, *f.Max)}
		}
		if len(f.Enum) > 0 && !numberEnumContains(f.Enum, n) {
			return &ValidationError{Collection: s.Collection, Field: name, Message: fmt.Sprintf("value %v is not one of %v", n, f.Enum)}
		}
	}
	return nil
}

func enumContains(enum []interface{}, v string) bool {
	for _, allowed := range enum {
		if s, ok := allowed.(string); ok && s == v {
			return true
		}
	}
	return false
}

func numberEnumContains(enum []interface{}, v float64) bool {
	for _, allowed := range enum {
		if n, ok := toFloat(allowed); ok && n == v {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

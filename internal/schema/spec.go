package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec is the YAML description of one collection's documents. It compiles to
// a $jsonSchema validator and checks documents before they are written.
type Spec struct {
	Collection  string            `yaml:"collection"`
	Description string            `yaml:"description,omitempty"`
	StrictMode  bool              `yaml:"strictMode,omitempty"`
	Indexes     []string          `yaml:"indexes,omitempty"`
	Fields      map[string]*Field `yaml:"fields"`
}

// Field defines a single top-level field.
//
// Fields support two declaration styles:
//
//	Shorthand (scalar): first_timestamp: double!
//	Long form (mapping): direction:
//	                        type: int32!
//	                        enum: [1, -1]
//
// Type names: string, bool, int32, int64, float, double, objectId, date.
// Wrap a type in brackets for an array of it ("[double]"). Append "!" to
// mark a field as required.
type Field struct {
	Type     string `yaml:"type"`
	Kind     string `yaml:"-"`
	Array    bool   `yaml:"-"`
	Required bool   `yaml:"required,omitempty"`

	Enum     []interface{} `yaml:"enum,omitempty"`
	Min      *float64      `yaml:"min,omitempty"`
	Max      *float64      `yaml:"max,omitempty"`
	MinItems *int          `yaml:"minItems,omitempty"`
	Pattern  string        `yaml:"pattern,omitempty"`

	compiledPattern *regexp.Regexp
}

// Parse decodes and checks a YAML spec.
func Parse(definition []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(definition, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse YAML schema: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid YAML schema: %w", err)
	}
	return &spec, nil
}

func (f *Field) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return f.parseTypeString(value.Value)
	}

	type fieldAlias Field
	var alias fieldAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}
	*f = Field(alias)

	if f.Type == "" {
		return fmt.Errorf("field missing 'type'")
	}
	return f.parseTypeString(f.Type)
}

func (f *Field) parseTypeString(s string) error {
	if strings.HasSuffix(s, "!") {
		f.Required = true
		s = strings.TrimSuffix(s, "!")
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		f.Array = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	switch s {
	case "string":
		f.Type = "string"
	case "bool":
		f.Type = "boolean"
	case "int32", "int64", "float", "double":
		f.Type = "number"
		f.Kind = s
	case "objectId", "date":
		f.Type = s
	default:
		return fmt.Errorf("unsupported type %q (must be: string, bool, int32, int64, float, double, objectId, date)", s)
	}
	return nil
}

// Validate checks the spec is structurally valid and compiles patterns.
func (s *Spec) Validate() error {
	if s.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema must define at least one field")
	}
	for name, field := range s.Fields {
		if field == nil {
			return fmt.Errorf("field %q: type cannot be empty", name)
		}
		if err := field.validate(); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	for _, idx := range s.Indexes {
		if _, ok := s.Fields[idx]; !ok {
			return fmt.Errorf("index on undeclared field %q", idx)
		}
	}
	return nil
}

func (f *Field) validate() error {
	if f.Type != "number" && (f.Min != nil || f.Max != nil) {
		return fmt.Errorf("%s fields do not support min/max constraints", f.Type)
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return fmt.Errorf("min (%v) cannot exceed max (%v)", *f.Min, *f.Max)
	}
	if f.MinItems != nil && (!f.Array || *f.MinItems < 0) {
		return fmt.Errorf("minItems needs an array type and a non-negative value")
	}
	if f.Pattern != "" {
		if f.Type != "string" {
			return fmt.Errorf("pattern is only supported on string fields")
		}
		compiled, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		f.compiledPattern = compiled
	}
	for i, val := range f.Enum {
		if f.Type == "string" {
			if _, ok := val.(string); !ok {
				return fmt.Errorf("enum[%d]: expected string, got %T", i, val)
			}
			continue
		}
		if _, ok := toFloat(val); !ok || f.Type != "number" {
			return fmt.Errorf("enum[%d]: not allowed for %s fields", i, f.Type)
		}
	}
	return nil
}

// RequiredFields returns the required field names, sorted.
func (s *Spec) RequiredFields() []string {
	var out []string
	for name, f := range s.Fields {
		if f.Required {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Spec) fieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

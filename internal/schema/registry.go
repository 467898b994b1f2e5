package schema

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Registry holds the collection specs loaded from one directory.
type Registry struct {
	specs map[string]*Spec
}

// NewRegistry builds a registry from already parsed specs. Duplicate
// collection names are rejected.
func NewRegistry(specs ...*Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]*Spec, len(specs))}
	for _, s := range specs {
		if _, dup := r.specs[s.Collection]; dup {
			return nil, fmt.Errorf("duplicate schema for collection %q", s.Collection)
		}
		r.specs[s.Collection] = s
	}
	return r, nil
}

// LoadDir parses every *.yaml and *.yml file in dir.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("schema: read dir %s: %w", dir, err)
	}

	var specs []*Spec
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("schema: read %s: %w", path, err)
		}
		spec, err := Parse(content)
		if err != nil {
			return nil, fmt.Errorf("schema: %s: %w", path, err)
		}
		specs = append(specs, spec)
	}

	r, err := NewRegistry(specs...)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	slog.Info("[Schema] Loaded collection specs", "dir", dir, "count", len(specs))
	return r, nil
}

// Get returns the spec for collection, or ErrNotFound.
func (r *Registry) Get(collection string) (*Spec, error) {
	if r == nil {
		return nil, ErrNotFound
	}
	s, ok := r.specs[collection]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Collections returns the names of every registered collection, sorted.
func (r *Registry) Collections() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Installer creates collections, validators and indexes in the store.
type Installer interface {
	EnsureCollection(ctx context.Context, name string, validator bson.D) error
	EnsureIndexes(ctx context.Context, name string, fields []string) error
}

// Apply installs every registered spec: the collection, its validator and its indexes.
func (r *Registry) Apply(ctx context.Context, inst Installer) error {
	for _, name := range r.Collections() {
		spec := r.specs[name]
		if err := inst.EnsureCollection(ctx, name, spec.Validator()); err != nil {
			return fmt.Errorf("schema: apply %s: %w", name, err)
		}
		if err := inst.EnsureIndexes(ctx, name, spec.Indexes); err != nil {
			return fmt.Errorf("schema: index %s: %w", name, err)
		}
		slog.Info("[Schema] Applied collection spec", "collection", name, "indexes", len(spec.Indexes))
	}
	return nil
}

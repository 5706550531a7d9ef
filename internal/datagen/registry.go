package datagen

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// TypeFunc builds a Supplier for a field of a registered type.
type TypeFunc func(ctx context.Context, spec FieldSpec, loader *Loader) (Supplier, error)

// Registry maps type names to supplier constructors and JSON schemas.
// Plugins register explicitly at startup.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]TypeFunc
	schemas map[string]map[string]any
}

// NewRegistry returns a registry holding the built-in types.
func NewRegistry() *Registry {
	r := &Registry{
		types:   make(map[string]TypeFunc),
		schemas: make(map[string]map[string]any),
	}
	r.types[ValuesType] = configureValues
	r.types[RefType] = configureRef
	return r
}

// RegisterType adds a type. Names are unique.
func (r *Registry) RegisterType(name string, fn TypeFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("register type: name and constructor are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[name]; exists {
		return fmt.Errorf("register type: %q already registered", name)
	}
	r.types[name] = fn
	return nil
}

// RegisterSchema attaches a JSON schema to a type name.
func (r *Registry) RegisterSchema(name string, schema map[string]any) error {
	if name == "" || schema == nil {
		return fmt.Errorf("register schema: name and schema are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[name]; exists {
		return fmt.Errorf("register schema: %q already registered", name)
	}
	r.schemas[name] = schema
	return nil
}

func (r *Registry) Lookup(name string) (TypeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.types[name]
	return fn, ok
}

func (r *Registry) Schema(name string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Types lists registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

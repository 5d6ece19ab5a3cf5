// Package source defines the discovery capability shared by every content
// source and the registry and fan-out that drive them.
package source

import (
	"context"
	"fmt"
	"time"

	"ContentCurator/internal/domain"
)

// Limits caps one adapter call.
type Limits struct {
	MaxResults int
	Timeout    time.Duration
}

// Adapter discovers candidate content for a query on one source.
type Adapter interface {
	Name() string
	SourceType() domain.SourceType
	Limits() Limits
	// Discover returns at most limit candidates ranked by the source.
	Discover(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error)
	// ResolveURLs turns explicit URLs into candidates without searching.
	ResolveURLs(ctx context.Context, urls []string) ([]domain.CandidateRef, error)
}

// Registry keeps a mapping from adapter names to their implementations.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register adds or replaces an adapter implementation.
func (r *Registry) Register(adapter Adapter) {
	if r.adapters == nil {
		r.adapters = map[string]Adapter{}
	}
	if _, exists := r.adapters[adapter.Name()]; !exists {
		r.order = append(r.order, adapter.Name())
	}
	r.adapters[adapter.Name()] = adapter
}

// Resolve returns an adapter by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Adapter, error) {
	if adapter, ok := r.adapters[name]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("adapter %s is not registered", name)
}

// List returns adapters in registration order. When types is non-empty
// only adapters of those source types are returned.
func (r *Registry) List(types ...domain.SourceType) []Adapter {
	want := map[domain.SourceType]bool{}
	for _, t := range types {
		want[t] = true
	}

	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		adapter := r.adapters[name]
		if len(want) > 0 && !want[adapter.SourceType()] {
			continue
		}
		out = append(out, adapter)
	}
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.order)
}

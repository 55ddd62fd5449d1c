package feed

import (
	"context"
	"fmt"

	"filingscout/internal/ports"
)

// Request carries all parameters required to execute one upstream fetch.
type Request struct {
	Index    string
	FromDate string
	ToDate   string
	Symbol   string
}

// Fetcher captures a single feed strategy (JSON API, HTML table, etc.).
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]ports.RawRecord, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: map[string]Fetcher{}}
}

// Register adds or replaces a fetcher implementation.
func (r *Registry) Register(f Fetcher) {
	if r.fetchers == nil {
		r.fetchers = map[string]Fetcher{}
	}
	r.fetchers[f.Name()] = f
}

// Resolve returns a fetcher by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Fetcher, error) {
	if f, ok := r.fetchers[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("feed strategy %s is not registered", name)
}

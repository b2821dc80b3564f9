// Package transform applies named, parameterized operations to datasets.
//
// Transforms are looked up by name in a Registry built once per process
// and handed to a Dispatcher. A name missing from the registry is skipped
// with a warning so that specs can be shared across deployments that lag
// behind each other.
package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/arkilian/lakestage/internal/dataset"
	"github.com/arkilian/lakestage/internal/lineage"
	"github.com/arkilian/lakestage/internal/results"
)

// TokenStore persists tokenized values.
type TokenStore interface {
	StoreTokens(ctx context.Context, table string, tokens []results.Token) error
}

// Context carries run-scoped collaborators into a transform.
type Context struct {
	context.Context

	ExecutionID string
	SourceKey   string
	Lineage     lineage.Sink
	Tokens      TokenStore
	TokenTable  string
	Logger      *slog.Logger
}

func (tc *Context) logger() *slog.Logger {
	if tc.Logger == nil {
		return slog.Default()
	}
	return tc.Logger
}

func (tc *Context) lineageSink() lineage.Sink {
	if tc.Lineage == nil {
		return lineage.NopSink{}
	}
	return tc.Lineage
}

// Transform maps one dataset to another. Implementations must not modify ds.
type Transform interface {
	Apply(tc *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error)
}

// Func adapts a function to the Transform interface.
type Func func(tc *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error)

// Apply implements Transform.
func (f Func) Apply(tc *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	return f(tc, ds, params)
}

// Registry maps transform names to implementations.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]Transform
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{transforms: make(map[string]Transform)}
}

// Register adds or replaces a transform.
func (r *Registry) Register(name string, t Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[name] = t
}

// Lookup returns the transform registered under name.
func (r *Registry) Lookup(name string) (Transform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transforms[name]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.transforms))
	for n := range r.transforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// requireColumn fails when a transform references a column that is not there.
func requireColumn(ds *dataset.Dataset, name string) (int, error) {
	idx := ds.Schema().Index(name)
	if idx < 0 {
		return -1, fmt.Errorf("field %q not found in incoming data", name)
	}
	return idx, nil
}

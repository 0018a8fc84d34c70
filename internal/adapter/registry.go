package adapter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/odapt/internal/client"
)

// Factory opens an adapter for one protocol.
type Factory func(ctx context.Context, opts Options) (*TableAdapter, error)

// ProviderFactory returns a Factory opening adapters over a provider.
func ProviderFactory(provider client.Provider, options ...Option) Factory {
	return func(ctx context.Context, opts Options) (*TableAdapter, error) {
		return Open(ctx, opts, provider, options...)
	}
}

// Registry maps protocol names to factories. The host populates it at
// startup. Names are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	key := strings.ToLower(name)
	if key == "" {
		return fmt.Errorf("protocol name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[key]; dup {
		return fmt.Errorf("protocol %q already registered", name)
	}
	r.factories[key] = f
	return nil
}

// Open opens an adapter with the factory registered under name.
func (r *Registry) Open(ctx context.Context, name string, opts Options) (*TableAdapter, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown protocol %q (registered: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(ctx, opts)
}

// Names returns the registered protocol names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

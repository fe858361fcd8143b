package assets

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Registry holds named collections so application modules can share them
// without threading references through every constructor.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]*Collection)}
}

type registerConfig struct {
	reset bool
}

// RegisterOption modifies a Register call.
type RegisterOption func(*registerConfig)

// WithoutReset registers the collection as-is, keeping whatever it has
// already loaded.
func WithoutReset() RegisterOption {
	return func(cfg *registerConfig) {
		cfg.reset = false
	}
}

// Register stores collection under name, resetting it first unless
// WithoutReset is given. Registering over an existing name replaces it.
func (r *Registry) Register(name string, collection *Collection, options ...RegisterOption) error {
	if collection == nil {
		return errors.Wrapf(ErrCollectionUnavailable, "[Register] %q", name)
	}
	cfg := registerConfig{reset: true}
	for _, opt := range options {
		opt(&cfg)
	}

	if cfg.reset {
		if err := collection.Reset(); err != nil {
			return errors.Wrapf(err, "[Register] %q", name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[name] = collection
	return nil
}

// Import resets the collection, performs a full load, then registers it
// without a second reset so the freshly loaded data survives.
func (r *Registry) Import(ctx context.Context, name string, collection *Collection) error {
	if collection == nil {
		return errors.Wrapf(ErrCollectionUnavailable, "[Import] %q", name)
	}
	if err := collection.Reset(); err != nil {
		return errors.Wrapf(err, "[Import] %q", name)
	}
	if _, err := collection.Load(ctx, nil); err != nil {
		return errors.Wrapf(err, "[Import] %q", name)
	}
	return r.Register(name, collection, WithoutReset())
}

// Get returns the collection registered under name.
func (r *Registry) Get(name string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	collection, ok := r.collections[name]
	if !ok {
		return nil, errors.Wrapf(ErrCollectionUndefined, "[Get] %q", name)
	}
	return collection, nil
}

package adapter

import (
	"fmt"
	"sync"

	"github.com/synod-ai/synod/pkg/config"
)

// Factory builds an adapter from a model configuration.
type Factory func(cfg *config.ModelConfig) (ModelAdapter, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[config.ProviderKind]Factory)
)

// Register publishes an adapter factory under a provider kind.
// Implementations call this from init(); a duplicate kind panics.
func Register(kind config.ProviderKind, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("adapter: Register called twice for kind %s", kind))
	}
	factories[kind] = factory
}

// CreateAdapter selects a factory by the model's provider kind.
func CreateAdapter(cfg *config.ModelConfig) (ModelAdapter, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Kind]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider kind %q (model %s)", cfg.Kind, cfg.ID)
	}
	return factory(cfg)
}

// Kinds returns the registered provider kinds, for diagnostics.
func Kinds() []config.ProviderKind {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	kinds := make([]config.ProviderKind, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	return kinds
}

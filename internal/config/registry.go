package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/agentmemory/memsvc/pkg/embedding"
)

// ErrProviderNotRegistered is returned by [Registry.CreateEmbeddings] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps embedding provider names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	embeddings map[string]func(EmbeddingConfig) (embedding.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		embeddings: make(map[string]func(EmbeddingConfig) (embedding.Provider, error)),
	}
}

// RegisterEmbeddings registers an embeddings provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterEmbeddings(name string, factory func(EmbeddingConfig) (embedding.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// CreateEmbeddings instantiates an embeddings provider using the factory
// registered under cfg.Provider.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateEmbeddings(cfg EmbeddingConfig) (embedding.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}

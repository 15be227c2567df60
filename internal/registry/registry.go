// Package registry memoizes strategy construction per backend. Concurrent
// first requests for the same backend are deduplicated: one caller builds,
// the rest wait on the same pending entry.
package registry

import (
	"fmt"
	"sync"

	"github.com/anhofmann/aicore-go/internal/domain"
)

// entry is one cached or in-flight construction.
type entry[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// cache is a per-backend construction cache with pending-entry dedup.
type cache[T any] struct {
	mu      sync.Mutex
	entries map[domain.Backend]*entry[T]
}

func newCache[T any]() *cache[T] {
	return &cache[T]{entries: make(map[domain.Backend]*entry[T])}
}

func (c *cache[T]) getOrCreate(backend domain.Backend, build func() (T, error)) (T, error) {
	c.mu.Lock()
	if e, ok := c.entries[backend]; ok {
		c.mu.Unlock()
		<-e.done
		return e.value, e.err
	}
	e := &entry[T]{done: make(chan struct{})}
	c.entries[backend] = e
	c.mu.Unlock()

	func() {
		// done must close even when build panics, or waiters on this
		// entry would block forever.
		defer close(e.done)
		defer func() {
			if r := recover(); r != nil {
				e.err = fmt.Errorf("strategy construction panicked: %v", r)
			}
		}()
		e.value, e.err = build()
	}()

	if e.err != nil {
		// Failed constructions are not cached; the next request retries.
		c.mu.Lock()
		if c.entries[backend] == e {
			delete(c.entries, backend)
		}
		c.mu.Unlock()
	}
	return e.value, e.err
}

func (c *cache[T]) clear() {
	c.mu.Lock()
	c.entries = make(map[domain.Backend]*entry[T])
	c.mu.Unlock()
}

// Registry hands out one language and one embedding strategy instance per
// backend. Strategies are stateless, so a single instance serves all
// concurrent calls until Clear.
type Registry struct {
	language  *cache[domain.LanguageStrategy]
	embedding *cache[domain.EmbeddingStrategy]

	newLanguage  func(domain.Backend) (domain.LanguageStrategy, error)
	newEmbedding func(domain.Backend) (domain.EmbeddingStrategy, error)
}

// New creates a Registry from the two backend constructors.
func New(
	newLanguage func(domain.Backend) (domain.LanguageStrategy, error),
	newEmbedding func(domain.Backend) (domain.EmbeddingStrategy, error),
) *Registry {
	return &Registry{
		language:     newCache[domain.LanguageStrategy](),
		embedding:    newCache[domain.EmbeddingStrategy](),
		newLanguage:  newLanguage,
		newEmbedding: newEmbedding,
	}
}

func validBackend(backend domain.Backend) error {
	switch backend {
	case domain.BackendOrchestration, domain.BackendFoundationModels:
		return nil
	default:
		return &domain.ValidationError{
			Field:   "backend",
			Message: fmt.Sprintf("unknown backend %q", backend),
		}
	}
}

// Language returns the cached language strategy for backend, constructing
// it on first use.
func (r *Registry) Language(backend domain.Backend) (domain.LanguageStrategy, error) {
	if err := validBackend(backend); err != nil {
		return nil, err
	}
	return r.language.getOrCreate(backend, func() (domain.LanguageStrategy, error) {
		return r.newLanguage(backend)
	})
}

// Embedding returns the cached embedding strategy for backend,
// constructing it on first use.
func (r *Registry) Embedding(backend domain.Backend) (domain.EmbeddingStrategy, error) {
	if err := validBackend(backend); err != nil {
		return nil, err
	}
	return r.embedding.getOrCreate(backend, func() (domain.EmbeddingStrategy, error) {
		return r.newEmbedding(backend)
	})
}

// Clear drops both caches. Instances already handed out keep working; new
// requests construct fresh ones.
func (r *Registry) Clear() {
	r.language.clear()
	r.embedding.clear()
}

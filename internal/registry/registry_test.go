package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhofmann/aicore-go/internal/domain"
)

type stubLanguage struct{ backend domain.Backend }

func (s *stubLanguage) Generate(context.Context, domain.StrategyConfig, domain.Settings, domain.CallOptions) (*domain.GenerateResult, error) {
	return nil, nil
}

func (s *stubLanguage) Stream(context.Context, domain.StrategyConfig, domain.Settings, domain.CallOptions) (*domain.StreamResult, error) {
	return nil, nil
}

type stubEmbedding struct{ backend domain.Backend }

func (s *stubEmbedding) Embed(context.Context, domain.StrategyConfig, domain.Settings, []string, domain.EmbedOptions, int) (*domain.EmbedResult, error) {
	return nil, nil
}

func newTestRegistry(languageBuilds, embeddingBuilds *atomic.Int64) *Registry {
	return New(
		func(backend domain.Backend) (domain.LanguageStrategy, error) {
			if languageBuilds != nil {
				languageBuilds.Add(1)
			}
			return &stubLanguage{backend: backend}, nil
		},
		func(backend domain.Backend) (domain.EmbeddingStrategy, error) {
			if embeddingBuilds != nil {
				embeddingBuilds.Add(1)
			}
			return &stubEmbedding{backend: backend}, nil
		},
	)
}

func TestLanguage_CachedPerBackend(t *testing.T) {
	var builds atomic.Int64
	reg := newTestRegistry(&builds, nil)

	first, err := reg.Language(domain.BackendOrchestration)
	require.NoError(t, err)
	second, err := reg.Language(domain.BackendOrchestration)
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := reg.Language(domain.BackendFoundationModels)
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, int64(2), builds.Load())
}

func TestLanguage_ConcurrentRequestsBuildOnce(t *testing.T) {
	var builds atomic.Int64
	reg := newTestRegistry(&builds, nil)

	const n = 10
	results := make([]domain.LanguageStrategy, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			strategy, err := reg.Language(domain.BackendOrchestration)
			assert.NoError(t, err)
			results[i] = strategy
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), builds.Load())
	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestRegistry_LanguageAndEmbeddingCachedIndependently(t *testing.T) {
	var languageBuilds, embeddingBuilds atomic.Int64
	reg := newTestRegistry(&languageBuilds, &embeddingBuilds)

	_, err := reg.Language(domain.BackendOrchestration)
	require.NoError(t, err)
	_, err = reg.Embedding(domain.BackendOrchestration)
	require.NoError(t, err)

	assert.Equal(t, int64(1), languageBuilds.Load())
	assert.Equal(t, int64(1), embeddingBuilds.Load())
}

func TestRegistry_Clear(t *testing.T) {
	var builds atomic.Int64
	reg := newTestRegistry(&builds, nil)

	first, err := reg.Language(domain.BackendOrchestration)
	require.NoError(t, err)
	reg.Clear()
	second, err := reg.Language(domain.BackendOrchestration)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int64(2), builds.Load())
}

func TestRegistry_FailedBuildNotCached(t *testing.T) {
	attempts := 0
	reg := New(
		func(backend domain.Backend) (domain.LanguageStrategy, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("transient")
			}
			return &stubLanguage{backend: backend}, nil
		},
		nil,
	)

	_, err := reg.Language(domain.BackendOrchestration)
	require.Error(t, err)

	strategy, err := reg.Language(domain.BackendOrchestration)
	require.NoError(t, err)
	assert.NotNil(t, strategy)
	assert.Equal(t, 2, attempts)
}

func TestRegistry_PanickingBuildReleasesWaiters(t *testing.T) {
	attempts := 0
	reg := New(
		func(backend domain.Backend) (domain.LanguageStrategy, error) {
			attempts++
			if attempts == 1 {
				panic("constructor exploded")
			}
			return &stubLanguage{backend: backend}, nil
		},
		nil,
	)

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.Language(domain.BackendOrchestration)
		}(i)
	}
	// Must not deadlock: every waiter on the panicked entry gets an error
	// or, having arrived after the retry, the rebuilt strategy.
	wg.Wait()

	sawError := false
	for _, err := range errs {
		if err != nil {
			sawError = true
			assert.Contains(t, err.Error(), "panicked")
		}
	}
	assert.True(t, sawError)

	// The panicked build is not cached; the next request retries cleanly.
	strategy, err := reg.Language(domain.BackendOrchestration)
	require.NoError(t, err)
	assert.NotNil(t, strategy)
}

func TestRegistry_UnknownBackend(t *testing.T) {
	reg := newTestRegistry(nil, nil)

	_, err := reg.Language(domain.Backend("nope"))
	var valErr *domain.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "backend", valErr.Field)
}

package aicore

import (
	"context"
	"sync"
	"time"

	"github.com/anhofmann/aicore-go/internal/config"
	"github.com/anhofmann/aicore-go/internal/domain"
	"github.com/anhofmann/aicore-go/internal/recorder"
	"github.com/anhofmann/aicore-go/internal/tokens"
)

// maxEmbeddingsPerCall is the per-request batch limit enforced before any
// remote call.
const maxEmbeddingsPerCall = 2048

// LanguageModel is a chat-completion handle bound to one backend and one
// model configuration. Handles are safe for concurrent use.
type LanguageModel struct {
	provider *Provider
	backend  domain.Backend
	cfg      domain.StrategyConfig
	settings domain.Settings

	mu           sync.Mutex
	deploymentID string
}

// resolvedConfig returns the model configuration with the deployment id
// filled in, resolving and memoizing it on first use. The lock covers the
// resolution call so concurrent first calls resolve once.
func resolvedConfig(ctx context.Context, p *Provider, backend domain.Backend,
	cfg domain.StrategyConfig, mu *sync.Mutex, deploymentID *string,
) (domain.StrategyConfig, error) {
	mu.Lock()
	defer mu.Unlock()

	if *deploymentID == "" {
		id, err := p.resolver.Resolve(ctx, backend, cfg)
		if err != nil {
			return cfg, err
		}
		*deploymentID = id
	}
	cfg.DeploymentID = *deploymentID
	return cfg, nil
}

// ModelID returns the configured model id.
func (m *LanguageModel) ModelID() string { return m.cfg.ModelID }

// Backend returns the backend this handle targets.
func (m *LanguageModel) Backend() Backend { return m.backend }

func (m *LanguageModel) shape(opts domain.CallOptions, stream bool) recorder.Shape {
	shape := recorder.Shape{
		MessageCount:      len(opts.Prompt),
		ToolCount:         len(opts.Tools),
		Stream:            stream,
		HasResponseFormat: opts.ResponseFormat != nil,
		HasToolChoice:     opts.ToolChoice != nil,
	}
	if s, ok := m.settings.(domain.OrchestrationSettings); ok {
		shape.ConfigRef = s.ConfigRef != ""
	}
	return shape
}

// Generate performs a one-shot completion.
func (m *LanguageModel) Generate(ctx context.Context, opts CallOptions) (*GenerateResult, error) {
	if err := config.ValidateProviderOptions(m.backend, opts.ProviderOptions); err != nil {
		return nil, err
	}

	cfg, err := resolvedConfig(ctx, m.provider, m.backend, m.cfg, &m.mu, &m.deploymentID)
	if err != nil {
		return nil, err
	}
	strategy, err := m.provider.registry.Language(m.backend)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := strategy.Generate(ctx, cfg, m.settings, opts)

	record := &recorder.Record{
		Backend:   m.backend,
		Operation: "generate",
		ModelID:   m.cfg.ModelID,
		Request:   m.shape(opts, false),
		Duration:  time.Since(start),
	}
	if err != nil {
		record.ErrorKind = recorder.ClassifyError(err)
		record.ErrorMessage = err.Error()
	} else {
		record.FinishReason = string(result.FinishReason.Kind)
		record.Usage = &result.Usage
	}
	m.provider.record(record)

	return result, err
}

// Stream starts a streaming completion. Finish events missing an
// output-token count get a local estimate, flagged as "estimatedUsage" in
// provider metadata.
func (m *LanguageModel) Stream(ctx context.Context, opts CallOptions) (*StreamResult, error) {
	if err := config.ValidateProviderOptions(m.backend, opts.ProviderOptions); err != nil {
		return nil, err
	}

	cfg, err := resolvedConfig(ctx, m.provider, m.backend, m.cfg, &m.mu, &m.deploymentID)
	if err != nil {
		return nil, err
	}
	strategy, err := m.provider.registry.Language(m.backend)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := strategy.Stream(ctx, cfg, m.settings, opts)
	if err != nil {
		m.provider.record(&recorder.Record{
			Backend:      m.backend,
			Operation:    "stream",
			ModelID:      m.cfg.ModelID,
			Request:      m.shape(opts, true),
			Duration:     time.Since(start),
			ErrorKind:    recorder.ClassifyError(err),
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	events := tokens.FillUsage(result.Events, m.provider.estimator, m.cfg.ModelID)
	events = m.tapStream(events, m.shape(opts, true), start)
	return &StreamResult{Events: events, Request: result.Request}, nil
}

// tapStream forwards events unchanged while collecting the outcome for
// the recorder. Without a recorder the channel passes through untouched.
func (m *LanguageModel) tapStream(events <-chan domain.StreamEvent, shape recorder.Shape, start time.Time) <-chan domain.StreamEvent {
	if m.provider.recorder == nil {
		return events
	}

	out := make(chan domain.StreamEvent)
	go func() {
		defer close(out)

		record := &recorder.Record{
			Backend:   m.backend,
			Operation: "stream",
			ModelID:   m.cfg.ModelID,
			Request:   shape,
		}
		for event := range events {
			switch event.Type {
			case domain.EventFinish:
				record.FinishReason = string(event.FinishReason.Kind)
				record.Usage = event.Usage
			case domain.EventError:
				record.ErrorKind = recorder.ClassifyError(event.Err)
				record.ErrorMessage = event.Err.Error()
			}
			out <- event
		}
		record.Duration = time.Since(start)
		m.provider.record(record)
	}()
	return out
}

// EmbeddingModel is an embedding handle bound to one backend and one model
// configuration. Handles are safe for concurrent use.
type EmbeddingModel struct {
	provider *Provider
	backend  domain.Backend
	cfg      domain.StrategyConfig
	settings domain.Settings

	mu           sync.Mutex
	deploymentID string
}

// ModelID returns the configured model id.
func (m *EmbeddingModel) ModelID() string { return m.cfg.ModelID }

// MaxPerCall returns the per-request batch limit.
func (m *EmbeddingModel) MaxPerCall() int { return maxEmbeddingsPerCall }

// Embed embeds values in request order.
func (m *EmbeddingModel) Embed(ctx context.Context, values []string, opts EmbedOptions) (*EmbedResult, error) {
	cfg, err := resolvedConfig(ctx, m.provider, m.backend, m.cfg, &m.mu, &m.deploymentID)
	if err != nil {
		return nil, err
	}
	strategy, err := m.provider.registry.Embedding(m.backend)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := strategy.Embed(ctx, cfg, m.settings, values, opts, maxEmbeddingsPerCall)

	record := &recorder.Record{
		Backend:   m.backend,
		Operation: "embed",
		ModelID:   m.cfg.ModelID,
		Request:   recorder.Shape{MessageCount: len(values)},
		Duration:  time.Since(start),
	}
	if err != nil {
		record.ErrorKind = recorder.ClassifyError(err)
		record.ErrorMessage = err.Error()
	} else {
		record.Usage = &domain.Usage{
			Input: domain.InputTokens{Total: domain.Int(result.Usage.Tokens)},
		}
	}
	m.provider.record(record)

	return result, err
}

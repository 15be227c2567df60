package orchestration

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/anhofmann/aicore-go/internal/deepmerge"
	"github.com/anhofmann/aicore-go/internal/domain"
	"github.com/anhofmann/aicore-go/internal/embeddings"
)

// Embedder implements domain.EmbeddingStrategy against the orchestration
// embeddings endpoint.
type Embedder struct {
	client Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEmbedder creates the embedding strategy.
func NewEmbedder(client Client, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		client: client,
		logger: logger,
		tracer: otel.Tracer("github.com/anhofmann/aicore-go/internal/orchestration"),
	}
}

// Embed implements domain.EmbeddingStrategy.
func (e *Embedder) Embed(ctx context.Context, cfg domain.StrategyConfig, settings domain.Settings, values []string, opts domain.EmbedOptions, maxPerCall int) (*domain.EmbedResult, error) {
	narrowed, err := resolveSettings(settings)
	if err != nil {
		return nil, err
	}
	deploymentID, ok := cfg.DeploymentRef()
	if !ok {
		return nil, &domain.ValidationError{Field: "deploymentId", Message: "no deployment resolved for this model"}
	}
	if maxPerCall > 0 && len(values) > maxPerCall {
		return nil, &domain.TooManyValuesError{ModelID: cfg.ModelID, Limit: maxPerCall, Count: len(values)}
	}

	merged, err := deepmerge.Merge(narrowed.ModelParams, opts.ModelParams)
	if err != nil {
		return nil, err
	}

	summary := domain.RequestSummary{
		Backend:      domain.BackendOrchestration,
		Operation:    "embeddings",
		MessageCount: len(values),
	}

	ctx, span := e.tracer.Start(ctx, "orchestration.embed", trace.WithAttributes(
		attribute.String("gen_ai.request.model", cfg.ModelID),
		attribute.Int("gen_ai.request.value_count", len(values)),
	))
	defer span.End()

	e.logger.Debug("orchestration embed",
		slog.String("model", cfg.ModelID),
		slog.String("deployment", deploymentID),
		slog.Int("values", len(values)))

	req := &EmbeddingsRequest{
		Config: EmbeddingsConfig{
			Modules: EmbeddingsModules{
				Embeddings: EmbeddingsModule{
					Model: EmbeddingsModel{
						Name:    modelName(cfg),
						Version: modelVersion(cfg),
						Params:  merged,
					},
				},
			},
		},
		Input: EmbeddingsInput{Text: values},
	}

	resp, err := domain.AwaitWithAbort(ctx, func() (*EmbeddingsResponse, error) {
		resp, _, err := e.client.Embed(ctx, deploymentID, req)
		return resp, err
	})
	if err != nil {
		if domain.IsAborted(err) {
			return nil, err
		}
		return nil, domain.WrapAPIError(err, "embed", domain.BackendOrchestration, cfg.DestinationURL, summary)
	}

	items := make([]embeddings.Item, len(resp.FinalResult.Data))
	for i, entry := range resp.FinalResult.Data {
		items[i] = embeddings.Item{Index: entry.Index, Vector: entry.Embedding}
	}
	vectors, err := embeddings.Normalize(items)
	if err != nil {
		return nil, domain.WrapAPIError(err, "embed", domain.BackendOrchestration, cfg.DestinationURL, summary)
	}

	result := &domain.EmbedResult{
		Embeddings: vectors,
		ProviderMetadata: map[string]any{
			"requestId": resp.RequestID,
			"model":     resp.FinalResult.Model,
		},
	}
	if resp.FinalResult.Usage != nil {
		result.Usage = domain.EmbedUsage{Tokens: resp.FinalResult.Usage.TotalTokens}
	}
	return result, nil
}

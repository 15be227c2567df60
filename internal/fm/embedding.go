package fm

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

// Embedder implements domain.EmbeddingStrategy against the deployment
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
		tracer: otel.Tracer("github.com/anhofmann/aicore-go/internal/fm"),
	}
}

// Embed implements domain.EmbeddingStrategy. Results come back in request
// order regardless of the order the backend returned them in.
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
		Backend:      domain.BackendFoundationModels,
		Operation:    "embeddings",
		MessageCount: len(values),
	}

	ctx, span := e.tracer.Start(ctx, "fm.embed", trace.WithAttributes(
		attribute.String("gen_ai.request.model", cfg.ModelID),
		attribute.Int("gen_ai.request.value_count", len(values)),
	))
	defer span.End()

	e.logger.Debug("foundation-models embed",
		slog.String("model", cfg.ModelID),
		slog.String("deployment", deploymentID),
		slog.Int("values", len(values)))

	resp, err := domain.AwaitWithAbort(ctx, func() (*EmbeddingResponse, error) {
		resp, _, err := e.client.Embed(ctx, deploymentID, &EmbeddingRequest{Input: values, Params: merged})
		return resp, err
	})
	if err != nil {
		if domain.IsAborted(err) {
			return nil, err
		}
		return nil, domain.WrapAPIError(err, "embed", domain.BackendFoundationModels, cfg.DestinationURL, summary)
	}

	items := make([]embeddings.Item, len(resp.Data))
	for i, entry := range resp.Data {
		items[i] = embeddings.Item{Index: entry.Index, Vector: entry.Embedding}
	}
	vectors, err := embeddings.Normalize(items)
	if err != nil {
		return nil, domain.WrapAPIError(err, "embed", domain.BackendFoundationModels, cfg.DestinationURL, summary)
	}

	result := &domain.EmbedResult{
		Embeddings:       vectors,
		ProviderMetadata: map[string]any{"model": resp.Model},
	}
	if resp.Usage != nil {
		result.Usage = domain.EmbedUsage{Tokens: resp.Usage.TotalTokens}
	}
	return result, nil
}

package domain

import "context"

// LanguageStrategy is the uniform generate/stream contract implemented per
// backend. Implementations hold no call-scoped state: everything a call
// needs flows through the arguments, because one cached instance serves
// concurrent calls.
type LanguageStrategy interface {
	// Generate performs a one-shot completion. Remote failures surface as
	// *APICallError; context cancellation as *AbortError.
	Generate(ctx context.Context, cfg StrategyConfig, settings Settings, opts CallOptions) (*GenerateResult, error)

	// Stream starts a streaming completion. The returned event channel is
	// closed after the terminal finish or error event.
	Stream(ctx context.Context, cfg StrategyConfig, settings Settings, opts CallOptions) (*StreamResult, error)
}

// EmbedOptions is the per-call input for embedding calls.
type EmbedOptions struct {
	// ModelParams are per-call parameters merged over the settings-level
	// defaults (per-call wins).
	ModelParams map[string]any
}

// EmbeddingStrategy is the embedding contract implemented per backend.
type EmbeddingStrategy interface {
	// Embed embeds values in request order. Batches larger than maxPerCall
	// fail with *TooManyValuesError before any remote call.
	Embed(ctx context.Context, cfg StrategyConfig, settings Settings, values []string, opts EmbedOptions, maxPerCall int) (*EmbedResult, error)
}

package fm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/anhofmann/aicore-go/internal/capabilities"
	"github.com/anhofmann/aicore-go/internal/domain"
	"github.com/anhofmann/aicore-go/internal/params"
	"github.com/anhofmann/aicore-go/internal/streaming"
	"github.com/anhofmann/aicore-go/internal/tools"
)

// paramTable maps host parameters onto the azure-openai wire names.
// Settings-level model params already use wire names, so SettingsKey and
// OutputKey coincide. top_k has no representation on this wire and is
// always omitted with a warning.
var paramTable = []params.Entry{
	{OptionKey: "maxOutputTokens", SettingsKey: "max_tokens", OutputKey: "max_tokens"},
	{OptionKey: "temperature", SettingsKey: "temperature", OutputKey: "temperature"},
	{OptionKey: "topP", SettingsKey: "top_p", OutputKey: "top_p"},
	{OptionKey: "topK", OutputKey: "top_k",
		Supported: func(capabilities.Capabilities) bool { return false }},
	{OptionKey: "frequencyPenalty", SettingsKey: "frequency_penalty", OutputKey: "frequency_penalty"},
	{OptionKey: "presencePenalty", SettingsKey: "presence_penalty", OutputKey: "presence_penalty"},
	{OptionKey: "seed", SettingsKey: "seed", OutputKey: "seed"},
	{OptionKey: "stopSequences", SettingsKey: "stop", OutputKey: "stop"},
	{SettingsKey: "n", OutputKey: "n",
		Supported: func(c capabilities.Capabilities) bool { return c.SupportsN }},
	{SettingsKey: "parallel_tool_calls", OutputKey: "parallel_tool_calls",
		Supported: func(c capabilities.Capabilities) bool { return c.SupportsParallelToolCalls }},
}

// Strategy implements domain.LanguageStrategy against the deployment
// inference endpoints. Instances hold no call state and serve concurrent
// calls.
type Strategy struct {
	client Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewStrategy creates the strategy. A nil logger falls back to the
// process default.
func NewStrategy(client Client, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Strategy{
		client: client,
		logger: logger,
		tracer: otel.Tracer("github.com/anhofmann/aicore-go/internal/fm"),
	}
}

// resolveSettings narrows the settings union to this backend's variant.
func resolveSettings(settings domain.Settings) (domain.FoundationModelsSettings, error) {
	if settings == nil {
		return domain.FoundationModelsSettings{}, nil
	}
	narrowed, ok := settings.(domain.FoundationModelsSettings)
	if !ok {
		return domain.FoundationModelsSettings{}, &domain.CapabilityError{
			Feature:         fmt.Sprintf("%s settings", settings.API()),
			ActiveBackend:   domain.BackendFoundationModels,
			RequiredBackend: settings.API(),
		}
	}
	return narrowed, nil
}

func summarize(opts domain.CallOptions, stream bool) domain.RequestSummary {
	return domain.RequestSummary{
		Backend:           domain.BackendFoundationModels,
		Operation:         "chat.completions",
		MessageCount:      len(opts.Prompt),
		ToolCount:         len(opts.Tools),
		Stream:            stream,
		HasResponseFormat: opts.ResponseFormat != nil,
		HasToolChoice:     opts.ToolChoice != nil,
	}
}

// buildRequest assembles the wire request and collects every conversion
// warning in source order: params, messages, tools, tool choice, response
// format.
func (s *Strategy) buildRequest(cfg domain.StrategyConfig, settings domain.FoundationModelsSettings, opts domain.CallOptions) (*ChatCompletionRequest, []domain.Warning, error) {
	caps := capabilities.Lookup(cfg.ModelID)

	bag, warnings, err := params.Build(paramTable, params.OptionBag(opts), opts.ProviderOptions, settings.ModelParams, caps)
	if err != nil {
		return nil, nil, err
	}

	messages, msgWarnings, err := ConvertMessages(opts.Prompt, ConvertOptions{
		IncludeReasoning: settings.IncludeReasoning,
		Caps:             caps,
	})
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, msgWarnings...)

	defs := opts.Tools
	if len(defs) == 0 {
		defs = settings.Tools
	}
	var wireTools []tools.Tool
	if len(defs) > 0 {
		if !caps.SupportsToolCalls {
			warnings = append(warnings, domain.Warning{
				Kind:    domain.WarningUnsupportedTool,
				Message: "the model does not support tool calls; all tools were omitted",
			})
		} else {
			var toolWarnings []domain.Warning
			wireTools, toolWarnings = tools.Convert(defs)
			warnings = append(warnings, toolWarnings...)
		}
	}

	choice, choiceWarning := tools.ConvertChoice(opts.ToolChoice)
	if choiceWarning != nil {
		warnings = append(warnings, *choiceWarning)
	}
	if len(wireTools) == 0 {
		choice = nil
	}

	rf := opts.ResponseFormat
	if rf == nil {
		rf = settings.ResponseFormat
	}
	wireFormat, formatWarnings := ConvertResponseFormat(rf, caps)
	warnings = append(warnings, formatWarnings...)

	return &ChatCompletionRequest{
		Messages:       messages,
		Tools:          wireTools,
		ToolChoice:     choice,
		ResponseFormat: wireFormat,
		DataSources:    settings.DataSources,
		Params:         bag,
	}, warnings, nil
}

// Generate implements domain.LanguageStrategy.
func (s *Strategy) Generate(ctx context.Context, cfg domain.StrategyConfig, settings domain.Settings, opts domain.CallOptions) (*domain.GenerateResult, error) {
	narrowed, err := resolveSettings(settings)
	if err != nil {
		return nil, err
	}
	deploymentID, ok := cfg.DeploymentRef()
	if !ok {
		return nil, &domain.ValidationError{Field: "deploymentId", Message: "no deployment resolved for this model"}
	}

	req, warnings, err := s.buildRequest(cfg, narrowed, opts)
	if err != nil {
		return nil, err
	}
	summary := summarize(opts, false)

	ctx, span := s.tracer.Start(ctx, "fm.generate", trace.WithAttributes(
		attribute.String("gen_ai.request.model", cfg.ModelID),
	))
	defer span.End()

	s.logger.Debug("foundation-models generate",
		slog.String("model", cfg.ModelID),
		slog.String("deployment", deploymentID),
		slog.Int("messages", len(req.Messages)),
		slog.Int("tools", len(req.Tools)))

	resp, err := domain.AwaitWithAbort(ctx, func() (*ChatCompletionResponse, error) {
		resp, _, err := s.client.ChatCompletion(ctx, deploymentID, req)
		return resp, err
	})
	if err != nil {
		if domain.IsAborted(err) {
			return nil, err
		}
		return nil, domain.WrapAPIError(err, "generate", domain.BackendFoundationModels, cfg.DestinationURL, summary)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.WrapAPIError(errors.New("response contained no choices"),
			"generate", domain.BackendFoundationModels, cfg.DestinationURL, summary)
	}

	choice := resp.Choices[0]
	return &domain.GenerateResult{
		Content:      ContentParts(choice.Message),
		FinishReason: domain.MapFinishReason(choice.FinishReason),
		Usage:        ConvertUsage(resp.Usage),
		Warnings:     warnings,
		ProviderMetadata: map[string]any{
			"responseId": resp.ID,
			"model":      resp.Model,
		},
	}, nil
}

// Stream implements domain.LanguageStrategy. Warnings collected during
// request construction ride on the stream-start event.
func (s *Strategy) Stream(ctx context.Context, cfg domain.StrategyConfig, settings domain.Settings, opts domain.CallOptions) (*domain.StreamResult, error) {
	narrowed, err := resolveSettings(settings)
	if err != nil {
		return nil, err
	}
	deploymentID, ok := cfg.DeploymentRef()
	if !ok {
		return nil, &domain.ValidationError{Field: "deploymentId", Message: "no deployment resolved for this model"}
	}

	req, warnings, err := s.buildRequest(cfg, narrowed, opts)
	if err != nil {
		return nil, err
	}
	summary := summarize(opts, true)

	if err := ctx.Err(); err != nil {
		return nil, &domain.AbortError{Cause: err}
	}

	ctx, span := s.tracer.Start(ctx, "fm.stream", trace.WithAttributes(
		attribute.String("gen_ai.request.model", cfg.ModelID),
	))
	defer span.End()

	s.logger.Debug("foundation-models stream",
		slog.String("model", cfg.ModelID),
		slog.String("deployment", deploymentID),
		slog.Int("messages", len(req.Messages)))

	chunks, err := s.client.StreamChatCompletion(ctx, deploymentID, req)
	if err != nil {
		return nil, domain.WrapAPIError(err, "stream", domain.BackendFoundationModels, cfg.DestinationURL, summary)
	}

	results := make(chan streaming.Result)
	go func() {
		defer close(results)
		for cr := range chunks {
			if cr.Err != nil {
				results <- streaming.Result{Err: cr.Err}
				return
			}
			chunk := StreamChunk(cr.Chunk)
			results <- streaming.Result{Chunk: &chunk}
		}
	}()

	events := streaming.Run(results, streaming.Options{
		ModelID:          cfg.ModelID,
		IncludeRawChunks: opts.IncludeRawChunks,
		Warnings:         warnings,
		WrapError: func(err error) error {
			return domain.WrapAPIError(err, "stream", domain.BackendFoundationModels, cfg.DestinationURL, summary)
		},
		Logger: s.logger,
	})
	return &domain.StreamResult{Events: events, Request: summary}, nil
}

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/anhofmann/aicore-go/internal/capabilities"
	"github.com/anhofmann/aicore-go/internal/domain"
	"github.com/anhofmann/aicore-go/internal/fm"
	"github.com/anhofmann/aicore-go/internal/params"
	"github.com/anhofmann/aicore-go/internal/streaming"
	"github.com/anhofmann/aicore-go/internal/tools"
)

// paramTable maps host parameters onto the llm module's model_params
// names. Unlike the foundation-models wire, top_k is representable here
// and forwarded to models that honor it.
var paramTable = []params.Entry{
	{OptionKey: "maxOutputTokens", SettingsKey: "max_tokens", OutputKey: "max_tokens"},
	{OptionKey: "temperature", SettingsKey: "temperature", OutputKey: "temperature"},
	{OptionKey: "topP", SettingsKey: "top_p", OutputKey: "top_p"},
	{OptionKey: "topK", SettingsKey: "top_k", OutputKey: "top_k"},
	{OptionKey: "frequencyPenalty", SettingsKey: "frequency_penalty", OutputKey: "frequency_penalty"},
	{OptionKey: "presencePenalty", SettingsKey: "presence_penalty", OutputKey: "presence_penalty"},
	{OptionKey: "seed", SettingsKey: "seed", OutputKey: "seed"},
	{OptionKey: "stopSequences", SettingsKey: "stop", OutputKey: "stop"},
	{SettingsKey: "n", OutputKey: "n",
		Supported: func(c capabilities.Capabilities) bool { return c.SupportsN }},
	{SettingsKey: "parallel_tool_calls", OutputKey: "parallel_tool_calls",
		Supported: func(c capabilities.Capabilities) bool { return c.SupportsParallelToolCalls }},
}

// Strategy implements domain.LanguageStrategy against the orchestration
// completion endpoint. Instances hold no call state and serve concurrent
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
		tracer: otel.Tracer("github.com/anhofmann/aicore-go/internal/orchestration"),
	}
}

// resolveSettings narrows the settings union to this backend's variant.
func resolveSettings(settings domain.Settings) (domain.OrchestrationSettings, error) {
	if settings == nil {
		return domain.OrchestrationSettings{}, nil
	}
	narrowed, ok := settings.(domain.OrchestrationSettings)
	if !ok {
		return domain.OrchestrationSettings{}, &domain.CapabilityError{
			Feature:         fmt.Sprintf("%s settings", settings.API()),
			ActiveBackend:   domain.BackendOrchestration,
			RequiredBackend: settings.API(),
		}
	}
	return narrowed, nil
}

func summarize(opts domain.CallOptions, stream, configRef bool) domain.RequestSummary {
	return domain.RequestSummary{
		Backend:           domain.BackendOrchestration,
		Operation:         "completion",
		MessageCount:      len(opts.Prompt),
		ToolCount:         len(opts.Tools),
		Stream:            stream,
		HasResponseFormat: opts.ResponseFormat != nil,
		HasToolChoice:     opts.ToolChoice != nil,
		ConfigRef:         configRef,
	}
}

// modelName resolves the catalog model name the llm module addresses.
func modelName(cfg domain.StrategyConfig) string {
	if cfg.ModelName != "" {
		return cfg.ModelName
	}
	return cfg.ModelID
}

func modelVersion(cfg domain.StrategyConfig) string {
	if cfg.ModelVersion != "" {
		return cfg.ModelVersion
	}
	return "latest"
}

// buildRequest assembles the wire request. With a config reference set,
// local assembly is skipped entirely and everything that would have
// shaped it is reported once as ignored.
func (s *Strategy) buildRequest(cfg domain.StrategyConfig, settings domain.OrchestrationSettings, opts domain.CallOptions, stream bool) (*CompletionRequest, []domain.Warning, error) {
	caps := capabilities.Lookup(cfg.ModelID)
	convOpts := fm.ConvertOptions{IncludeReasoning: settings.IncludeReasoning, Caps: caps}

	if settings.ConfigRef != "" {
		// The stream switch lives in the referenced configuration, so the
		// reduced request is identical for both call shapes.
		return s.buildReducedRequest(settings, opts, convOpts)
	}

	bag, warnings, err := params.Build(paramTable, params.OptionBag(opts), opts.ProviderOptions, settings.ModelParams, caps)
	if err != nil {
		return nil, nil, err
	}

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
	wireFormat, formatWarnings := fm.ConvertResponseFormat(rf, caps)
	warnings = append(warnings, formatWarnings...)

	templating := TemplatingModuleConfig{
		Tools:          wireTools,
		ToolChoice:     choice,
		ResponseFormat: wireFormat,
	}
	var history []fm.ChatMessage

	switch {
	case settings.TemplateRef != nil:
		templating.TemplateRef = &TemplateRef{
			ID:       settings.TemplateRef.ID,
			Scenario: settings.TemplateRef.Scenario,
			Name:     settings.TemplateRef.Name,
			Version:  settings.TemplateRef.Version,
		}
		history, warnings, err = appendConverted(warnings, opts.Prompt, convOpts)
		if err != nil {
			return nil, nil, err
		}

	case len(settings.Template) > 0:
		// Inline templates are authored with placeholder syntax and pass
		// through verbatim; the prompt becomes history.
		templating.Template, warnings, err = appendConverted(warnings, settings.Template, convOpts)
		if err != nil {
			return nil, nil, err
		}
		history, warnings, err = appendConverted(warnings, opts.Prompt, convOpts)
		if err != nil {
			return nil, nil, err
		}

	default:
		// The prompt itself becomes the template and is rendered by the
		// templating module, so its content is escaped unless explicitly
		// disabled.
		promptOpts := convOpts
		if settings.EscapePlaceholders() {
			promptOpts.EscapeText = EscapeTemplateSyntax
		}
		templating.Template, warnings, err = appendConverted(warnings, opts.Prompt, promptOpts)
		if err != nil {
			return nil, nil, err
		}
	}

	config := &OrchestrationConfig{
		Modules: ModuleConfigurations{
			LLM: LLMModuleConfig{
				ModelName:    modelName(cfg),
				ModelVersion: modelVersion(cfg),
				ModelParams:  bag,
			},
			Templating:  templating,
			Filtering:   settings.Filtering,
			Masking:     settings.Masking,
			Grounding:   settings.Grounding,
			Translation: settings.Translation,
		},
		Stream: stream,
	}
	if stream {
		config.StreamOptions = &fm.StreamOptions{IncludeUsage: true}
	}

	return &CompletionRequest{
		Config:          config,
		InputParams:     settings.Placeholders,
		MessagesHistory: history,
	}, warnings, nil
}

func appendConverted(warnings []domain.Warning, prompt []domain.Message, convOpts fm.ConvertOptions) ([]fm.ChatMessage, []domain.Warning, error) {
	converted, more, err := fm.ConvertMessages(prompt, convOpts)
	if err != nil {
		return nil, nil, err
	}
	return converted, append(warnings, more...), nil
}

// buildReducedRequest handles the config-ref short circuit: only the
// prompt and placeholder values travel; every other local setting is
// ignored and reported in one aggregated warning.
func (s *Strategy) buildReducedRequest(settings domain.OrchestrationSettings, opts domain.CallOptions, convOpts fm.ConvertOptions) (*CompletionRequest, []domain.Warning, error) {
	history, warnings, err := appendConverted(nil, opts.Prompt, convOpts)
	if err != nil {
		return nil, nil, err
	}

	if ignored := ignoredWithConfigRef(settings, opts); len(ignored) > 0 {
		warnings = append(warnings, domain.Warning{
			Kind:    domain.WarningIgnoredSettings,
			Param:   "configRef",
			Message: "a configuration reference is set; ignored: " + strings.Join(ignored, ", "),
		})
	}

	return &CompletionRequest{
		ConfigRef:       settings.ConfigRef,
		InputParams:     settings.Placeholders,
		MessagesHistory: history,
	}, warnings, nil
}

// ignoredWithConfigRef names every locally supplied setting or option the
// reduced mode cannot honor.
func ignoredWithConfigRef(settings domain.OrchestrationSettings, opts domain.CallOptions) []string {
	var ignored []string
	add := func(present bool, name string) {
		if present {
			ignored = append(ignored, name)
		}
	}
	add(len(settings.ModelParams) > 0, "modelParams")
	add(len(settings.Masking) > 0, "masking")
	add(len(settings.Filtering) > 0, "filtering")
	add(len(settings.Grounding) > 0, "grounding")
	add(len(settings.Translation) > 0, "translation")
	add(len(settings.Template) > 0, "template")
	add(settings.TemplateRef != nil, "templateRef")
	add(settings.ResponseFormat != nil, "responseFormat")
	add(len(settings.Tools) > 0, "tools")
	add(len(opts.Tools) > 0, "tools option")
	add(opts.ToolChoice != nil, "toolChoice option")
	add(opts.ResponseFormat != nil, "responseFormat option")
	add(len(params.OptionBag(opts)) > 0, "generation parameters")
	add(len(opts.ProviderOptions) > 0, "provider options")
	return ignored
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

	req, warnings, err := s.buildRequest(cfg, narrowed, opts, false)
	if err != nil {
		return nil, err
	}
	summary := summarize(opts, false, req.ConfigRef != "")

	ctx, span := s.tracer.Start(ctx, "orchestration.generate", trace.WithAttributes(
		attribute.String("gen_ai.request.model", cfg.ModelID),
	))
	defer span.End()

	s.logger.Debug("orchestration generate",
		slog.String("model", cfg.ModelID),
		slog.String("deployment", deploymentID),
		slog.Bool("config_ref", req.ConfigRef != ""))

	resp, err := domain.AwaitWithAbort(ctx, func() (*CompletionResponse, error) {
		resp, _, err := s.client.Completion(ctx, deploymentID, req)
		return resp, err
	})
	if err != nil {
		if domain.IsAborted(err) {
			return nil, err
		}
		return nil, domain.WrapAPIError(err, "generate", domain.BackendOrchestration, cfg.DestinationURL, summary)
	}
	if len(resp.OrchestrationResult.Choices) == 0 {
		return nil, domain.WrapAPIError(errors.New("response contained no choices"),
			"generate", domain.BackendOrchestration, cfg.DestinationURL, summary)
	}

	choice := resp.OrchestrationResult.Choices[0]
	meta := map[string]any{
		"requestId":  resp.RequestID,
		"responseId": resp.OrchestrationResult.ID,
		"model":      resp.OrchestrationResult.Model,
	}
	if len(resp.ModuleResults) > 0 {
		meta["moduleResults"] = resp.ModuleResults
	}

	return &domain.GenerateResult{
		Content:          fm.ContentParts(choice.Message),
		FinishReason:     domain.MapFinishReason(choice.FinishReason),
		Usage:            fm.ConvertUsage(resp.OrchestrationResult.Usage),
		Warnings:         warnings,
		ProviderMetadata: meta,
	}, nil
}

// Stream implements domain.LanguageStrategy.
func (s *Strategy) Stream(ctx context.Context, cfg domain.StrategyConfig, settings domain.Settings, opts domain.CallOptions) (*domain.StreamResult, error) {
	narrowed, err := resolveSettings(settings)
	if err != nil {
		return nil, err
	}
	deploymentID, ok := cfg.DeploymentRef()
	if !ok {
		return nil, &domain.ValidationError{Field: "deploymentId", Message: "no deployment resolved for this model"}
	}

	req, warnings, err := s.buildRequest(cfg, narrowed, opts, true)
	if err != nil {
		return nil, err
	}
	summary := summarize(opts, true, req.ConfigRef != "")

	if err := ctx.Err(); err != nil {
		return nil, &domain.AbortError{Cause: err}
	}

	ctx, span := s.tracer.Start(ctx, "orchestration.stream", trace.WithAttributes(
		attribute.String("gen_ai.request.model", cfg.ModelID),
	))
	defer span.End()

	s.logger.Debug("orchestration stream",
		slog.String("model", cfg.ModelID),
		slog.String("deployment", deploymentID),
		slog.Bool("config_ref", req.ConfigRef != ""))

	chunks, err := s.client.StreamCompletion(ctx, deploymentID, req)
	if err != nil {
		return nil, domain.WrapAPIError(err, "stream", domain.BackendOrchestration, cfg.DestinationURL, summary)
	}

	results := make(chan streaming.Result)
	go func() {
		defer close(results)
		for cr := range chunks {
			if cr.Err != nil {
				results <- streaming.Result{Err: cr.Err}
				return
			}
			chunk := fm.StreamChunk(&cr.Chunk.OrchestrationResult)
			if chunk.ResponseID == "" {
				chunk.ResponseID = cr.Chunk.RequestID
			}
			chunk.Raw = cr.Chunk
			results <- streaming.Result{Chunk: &chunk}
		}
	}()

	events := streaming.Run(results, streaming.Options{
		ModelID:          cfg.ModelID,
		IncludeRawChunks: opts.IncludeRawChunks,
		Warnings:         warnings,
		WrapError: func(err error) error {
			return domain.WrapAPIError(err, "stream", domain.BackendOrchestration, cfg.DestinationURL, summary)
		},
		Logger: s.logger,
	})
	return &domain.StreamResult{Events: events, Request: summary}, nil
}

// Package orchestration implements the Orchestration backend: completion
// requests assembled as module configurations (llm, templating, filtering,
// masking, grounding, translation) against the orchestration service of an
// AI Core deployment.
package orchestration

import (
	"encoding/json"

	"github.com/anhofmann/aicore-go/internal/fm"
	"github.com/anhofmann/aicore-go/internal/tools"
)

// LLMModuleConfig selects the model and its parameters.
type LLMModuleConfig struct {
	ModelName    string         `json:"model_name"`
	ModelVersion string         `json:"model_version,omitempty"`
	ModelParams  map[string]any `json:"model_params,omitempty"`
}

// TemplateRef selects a server-stored prompt template.
type TemplateRef struct {
	ID       string `json:"id,omitempty"`
	Scenario string `json:"scenario,omitempty"`
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
}

// TemplatingModuleConfig carries either an inline template or a template
// reference, plus the tool and response-format declarations the template
// renders against.
type TemplatingModuleConfig struct {
	Template       []fm.ChatMessage   `json:"template,omitempty"`
	TemplateRef    *TemplateRef       `json:"template_ref,omitempty"`
	Tools          []tools.Tool       `json:"tools,omitempty"`
	ToolChoice     *tools.ToolChoice  `json:"tool_choice,omitempty"`
	ResponseFormat *fm.ResponseFormat `json:"response_format,omitempty"`
}

// ModuleConfigurations is the full module set of one orchestration run.
// The optional modules are opaque payloads forwarded verbatim.
type ModuleConfigurations struct {
	LLM        LLMModuleConfig        `json:"llm_module_config"`
	Templating TemplatingModuleConfig `json:"templating_module_config"`

	Filtering   map[string]any `json:"filtering_module_config,omitempty"`
	Masking     map[string]any `json:"masking_module_config,omitempty"`
	Grounding   map[string]any `json:"grounding_module_config,omitempty"`
	Translation map[string]any `json:"translation_module_config,omitempty"`
}

// OrchestrationConfig wraps the module set and the stream switch.
type OrchestrationConfig struct {
	Modules       ModuleConfigurations `json:"module_configurations"`
	Stream        bool                 `json:"stream,omitempty"`
	StreamOptions *fm.StreamOptions    `json:"stream_options,omitempty"`
}

// CompletionRequest is the wire request of the completion endpoint.
// Exactly one of Config and ConfigRef is set; ConfigRef short-circuits
// local request assembly (reduced mode).
type CompletionRequest struct {
	Config    *OrchestrationConfig `json:"orchestration_config,omitempty"`
	ConfigRef string               `json:"config_ref,omitempty"`

	// InputParams supplies template placeholder values.
	InputParams map[string]string `json:"input_params,omitempty"`
	// MessagesHistory is the prior conversation prepended to the rendered
	// template.
	MessagesHistory []fm.ChatMessage `json:"messages_history,omitempty"`
}

// CompletionResponse is the wire response of a unary completion call. The
// orchestration result is the harmonized OpenAI-compatible payload.
type CompletionResponse struct {
	RequestID           string                     `json:"request_id"`
	ModuleResults       map[string]json.RawMessage `json:"module_results,omitempty"`
	OrchestrationResult fm.ChatCompletionResponse  `json:"orchestration_result"`
}

// CompletionChunk is one streaming increment.
type CompletionChunk struct {
	RequestID           string                     `json:"request_id"`
	ModuleResults       map[string]json.RawMessage `json:"module_results,omitempty"`
	OrchestrationResult fm.ChatCompletionChunk     `json:"orchestration_result"`
}

// EmbeddingsModel selects the embedding model.
type EmbeddingsModel struct {
	Name    string         `json:"name"`
	Version string         `json:"version,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// EmbeddingsModule is the embeddings module configuration.
type EmbeddingsModule struct {
	Model EmbeddingsModel `json:"model"`
}

// EmbeddingsModules is the module set of an embeddings run.
type EmbeddingsModules struct {
	Embeddings EmbeddingsModule `json:"embeddings"`
}

// EmbeddingsConfig wraps the embeddings module set.
type EmbeddingsConfig struct {
	Modules EmbeddingsModules `json:"modules"`
}

// EmbeddingsInput carries the values to embed.
type EmbeddingsInput struct {
	Text []string `json:"text"`
}

// EmbeddingsRequest is the wire request of the embeddings endpoint.
type EmbeddingsRequest struct {
	Config EmbeddingsConfig `json:"config"`
	Input  EmbeddingsInput  `json:"input"`
}

// EmbeddingsResponse is the wire response of the embeddings endpoint. The
// final result is OpenAI-shaped.
type EmbeddingsResponse struct {
	RequestID   string               `json:"request_id"`
	FinalResult fm.EmbeddingResponse `json:"final_result"`
}

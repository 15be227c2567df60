// Package fm implements the Foundation-Models backend: direct vendor-model
// access through deployment-scoped OpenAI-compatible endpoints, including
// vendor-only parameters the Orchestration backend does not expose.
package fm

import (
	"encoding/json"

	"github.com/anhofmann/aicore-go/internal/embeddings"
	"github.com/anhofmann/aicore-go/internal/tools"
)

// ChatMessage is one wire message. Content is a string or []ContentItem
// for multimodal turns.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    any        `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ContentItem is one part of a multimodal message.
type ContentItem struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// ToolCall is a completed tool invocation in a response message.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and raw argument JSON.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ResponseFormat selects the output mode.
type ResponseFormat struct {
	Type       string            `json:"type"` // "text", "json_object", "json_schema"
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
}

// JSONSchemaFormat carries the schema for json_schema mode.
type JSONSchemaFormat struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	Strict      *bool          `json:"strict,omitempty"`
}

// StreamOptions configures streaming behavior.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// ChatCompletionRequest is the wire request. Params holds the flat mapped
// parameter bag (max_tokens, temperature, logprobs, logit_bias, ...) and
// is flattened next to the structural fields when marshalling.
type ChatCompletionRequest struct {
	Messages       []ChatMessage
	Tools          []tools.Tool
	ToolChoice     *tools.ToolChoice
	ResponseFormat *ResponseFormat
	DataSources    []map[string]any
	Stream         bool
	StreamOptions  *StreamOptions
	Params         map[string]any
}

// MarshalJSON flattens Params into the request object. Structural keys
// always win over parameter-bag keys of the same name.
func (r *ChatCompletionRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Params)+8)
	for k, v := range r.Params {
		out[k] = v
	}

	out["messages"] = r.Messages
	if len(r.Tools) > 0 {
		out["tools"] = r.Tools
	}
	if r.ToolChoice != nil {
		out["tool_choice"] = r.ToolChoice
	}
	if r.ResponseFormat != nil {
		out["response_format"] = r.ResponseFormat
	}
	if len(r.DataSources) > 0 {
		out["data_sources"] = r.DataSources
	}
	if r.Stream {
		out["stream"] = true
		if r.StreamOptions != nil {
			out["stream_options"] = r.StreamOptions
		}
	}
	return json.Marshal(out)
}

// Usage is the flat token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the wire response for unary calls.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion choice.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatCompletionChunk is one streaming increment.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice is one choice inside a streaming chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta is the incremental payload of a chunk choice.
type ChunkDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"`
	ToolCalls []ToolCallChunk `json:"tool_calls,omitempty"`
}

// ToolCallChunk is a partial tool call keyed by index.
type ToolCallChunk struct {
	Index    *int               `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function *FunctionCallChunk `json:"function,omitempty"`
}

// FunctionCallChunk is a partial function call.
type FunctionCallChunk struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// EmbeddingRequest is the wire request for the embeddings endpoint.
type EmbeddingRequest struct {
	Input  []string
	Params map[string]any
}

// MarshalJSON flattens Params next to the input list.
func (r *EmbeddingRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Params)+1)
	for k, v := range r.Params {
		out[k] = v
	}
	out["input"] = r.Input
	return json.Marshal(out)
}

// EmbeddingResponse is the wire response for the embeddings endpoint.
type EmbeddingResponse struct {
	Object string          `json:"object"`
	Model  string          `json:"model"`
	Data   []EmbeddingItem `json:"data"`
	Usage  *EmbeddingUsage `json:"usage,omitempty"`
}

// EmbeddingItem is one vector with its explicit result index.
type EmbeddingItem struct {
	Index     int               `json:"index"`
	Embedding embeddings.Vector `json:"embedding"`
}

// EmbeddingUsage is the embedding token accounting.
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

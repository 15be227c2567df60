package domain

import "time"

// WarningKind categorizes the non-fatal warnings collected during a call.
type WarningKind string

const (
	WarningUnsupportedTool       WarningKind = "unsupported-tool"
	WarningUnsupportedToolChoice WarningKind = "unsupported-tool-choice"
	WarningSchemaFallback        WarningKind = "schema-fallback"
	WarningParamOutOfRange       WarningKind = "param-out-of-range"
	WarningUnsupportedParam      WarningKind = "unsupported-param"
	WarningIgnoredSettings       WarningKind = "ignored-settings"
	WarningUnnamedToolCall       WarningKind = "unnamed-tool-call"
	WarningResponseFormatSchema  WarningKind = "response-format-schema"
	WarningEstimatedUsage        WarningKind = "estimated-usage"
)

// Warning is a non-fatal diagnostic attached to a result or to the
// stream-start event. Warnings never abort a call.
type Warning struct {
	Kind    WarningKind
	Message string
	// Param names the offending parameter or setting when applicable.
	Param string
	// Value is the offending value when applicable.
	Value any
}

// InputTokens breaks down prompt-side token usage. Fields are nil until
// the backend reports them.
type InputTokens struct {
	Total      *int
	NoCache    *int
	CacheRead  *int
	CacheWrite *int
}

// OutputTokens breaks down completion-side token usage.
type OutputTokens struct {
	Total     *int
	Text      *int
	Reasoning *int
}

// Usage is the token accounting for one generation call.
type Usage struct {
	Input  InputTokens
	Output OutputTokens
}

// Int returns a pointer to n, for optional token fields.
func Int(n int) *int { return &n }

// StreamEventType discriminates host-interface stream events.
type StreamEventType string

const (
	EventStreamStart      StreamEventType = "stream-start"
	EventResponseMetadata StreamEventType = "response-metadata"
	EventRaw              StreamEventType = "raw"
	EventTextStart        StreamEventType = "text-start"
	EventTextDelta        StreamEventType = "text-delta"
	EventTextEnd          StreamEventType = "text-end"
	EventToolInputStart   StreamEventType = "tool-input-start"
	EventToolInputDelta   StreamEventType = "tool-input-delta"
	EventToolInputEnd     StreamEventType = "tool-input-end"
	EventToolCall         StreamEventType = "tool-call"
	EventFinish           StreamEventType = "finish"
	EventError            StreamEventType = "error"
)

// StreamEvent is one event emitted to the host interface. Which fields are
// populated depends on Type; the zero values of the rest are meaningless.
type StreamEvent struct {
	Type StreamEventType

	// Warnings is set on stream-start. The slice is handed over once and
	// never mutated afterwards.
	Warnings []Warning

	// ID is the response id (response-metadata), text block id (text-*),
	// or tool-call id (tool-input-*, tool-call).
	ID string

	// Model and Timestamp are set on response-metadata.
	Model     string
	Timestamp time.Time

	// Raw wraps the backend chunk's native payload on raw events.
	Raw any

	// Delta carries a text fragment (text-delta) or argument-text fragment
	// (tool-input-delta).
	Delta string

	// ToolName is set on tool-input-start and tool-call.
	ToolName string
	// Input is the full accumulated argument text on tool-call.
	Input string

	// FinishReason and Usage are set on finish.
	FinishReason FinishReason
	Usage        *Usage

	// ProviderMetadata carries backend-specific extras (request id, raw
	// finish reason) on finish and response-metadata.
	ProviderMetadata map[string]any

	// Err is set on error events.
	Err error
}

// GenerateResult is the outcome of a one-shot generation call.
type GenerateResult struct {
	Content          []ContentPart
	FinishReason     FinishReason
	Usage            Usage
	Warnings         []Warning
	ProviderMetadata map[string]any
}

// StreamResult is the outcome of a streaming call: the event sequence plus
// the request summary that produced it.
type StreamResult struct {
	Events  <-chan StreamEvent
	Request RequestSummary
}

// Embedding is a single embedding vector in request order.
type Embedding []float32

// EmbedResult is the outcome of an embedding call.
type EmbedResult struct {
	Embeddings       []Embedding
	Usage            EmbedUsage
	Warnings         []Warning
	ProviderMetadata map[string]any
}

// EmbedUsage reports embedding token usage as one scalar total.
type EmbedUsage struct {
	Tokens int
}

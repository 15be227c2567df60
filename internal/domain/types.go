// Package domain defines the backend-agnostic types exchanged between the
// host LLM-client interface and the backend strategies: prompts, call
// options, stream events, results, and the shared error taxonomy.
package domain

// Backend identifies one of the two SAP AI Core API surfaces.
type Backend string

const (
	BackendOrchestration    Backend = "orchestration"
	BackendFoundationModels Backend = "foundation-models"
)

// Role is the author of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one ordered turn of a prompt.
type Message struct {
	Role  Role
	Parts []ContentPart
}

// ToolDefinition describes a tool the model may call. Only KindFunction
// tools are forwarded to the backends; other kinds produce a warning and
// are skipped.
type ToolDefinition struct {
	Kind        string // "function" or a provider-defined kind
	Name        string
	Description string
	// Parameters is the JSON-schema parameter description. It may be a
	// map[string]any or any value implementing SchemaConverter.
	Parameters any
}

// ToolKindFunction is the only tool kind the backends accept.
const ToolKindFunction = "function"

// SchemaConverter converts a dynamic schema-builder value into a static
// JSON schema. Values that do not implement it are treated as literal
// schema objects.
type SchemaConverter interface {
	JSONSchema() (map[string]any, error)
}

// ToolChoiceKind enumerates the host interface's tool-choice directives.
type ToolChoiceKind string

const (
	ToolChoiceAuto     ToolChoiceKind = "auto"
	ToolChoiceNone     ToolChoiceKind = "none"
	ToolChoiceRequired ToolChoiceKind = "required"
	ToolChoiceTool     ToolChoiceKind = "tool"
)

// ToolChoice directs how the backend should select tools.
type ToolChoice struct {
	Kind ToolChoiceKind
	// ToolName is set when Kind is ToolChoiceTool.
	ToolName string
}

// ResponseFormatKind enumerates response-format directives.
type ResponseFormatKind string

const (
	ResponseFormatText ResponseFormatKind = "text"
	ResponseFormatJSON ResponseFormatKind = "json"
)

// ResponseFormat requests plain text, free-form JSON, or schema-constrained
// JSON output.
type ResponseFormat struct {
	Kind        ResponseFormatKind
	Schema      map[string]any // nil means free-form json_object mode
	Name        string
	Description string
	Strict      *bool
}

// CallOptions is the per-call input from the host interface. The abort
// signal is carried by the context.Context passed alongside it.
type CallOptions struct {
	Prompt []Message

	Tools      []ToolDefinition
	ToolChoice *ToolChoice

	Temperature      *float64
	MaxOutputTokens  *int
	TopP             *float64
	TopK             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	StopSequences    []string
	Seed             *int

	ResponseFormat *ResponseFormat

	// IncludeRawChunks requests a raw event per backend chunk on streams.
	IncludeRawChunks bool

	// ProviderOptions is the backend-specific option bag, validated by the
	// active backend before use.
	ProviderOptions map[string]any
}

// StrategyConfig is the immutable per-model configuration shared by every
// call on a model handle.
type StrategyConfig struct {
	ModelID string

	// Either DeploymentID is set directly, or the resource-group triple
	// below is resolved into one.
	DeploymentID  string
	ResourceGroup string
	ModelName     string
	ModelVersion  string

	// DestinationURL is the logical base URL tag of the target system.
	DestinationURL string

	ProviderName string
}

// DeploymentRef returns the direct deployment id when configured.
func (c StrategyConfig) DeploymentRef() (string, bool) {
	return c.DeploymentID, c.DeploymentID != ""
}

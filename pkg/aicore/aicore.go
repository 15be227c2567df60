// Package aicore is the public surface of the SAP AI Core adapter: a
// Provider that owns transport and strategy construction, and model
// handles for chat completion and embeddings against the Orchestration
// and Foundation-Models backends.
package aicore

import (
	"github.com/anhofmann/aicore-go/internal/config"
	"github.com/anhofmann/aicore-go/internal/domain"
)

// Aliases re-export the host-interface types so embedders never import
// internal packages.
type (
	Backend        = domain.Backend
	Role           = domain.Role
	Message        = domain.Message
	ContentPart    = domain.ContentPart
	ToolDefinition = domain.ToolDefinition
	ToolChoice     = domain.ToolChoice
	ResponseFormat = domain.ResponseFormat
	CallOptions    = domain.CallOptions
	EmbedOptions   = domain.EmbedOptions

	Settings                 = domain.Settings
	OrchestrationSettings    = domain.OrchestrationSettings
	FoundationModelsSettings = domain.FoundationModelsSettings
	TemplateRef              = domain.TemplateRef

	ModelConfig = domain.StrategyConfig

	GenerateResult = domain.GenerateResult
	StreamResult   = domain.StreamResult
	StreamEvent    = domain.StreamEvent
	EmbedResult    = domain.EmbedResult
	Embedding      = domain.Embedding
	Usage          = domain.Usage
	Warning        = domain.Warning
	FinishReason   = domain.FinishReason

	ValidationError    = domain.ValidationError
	CapabilityError    = domain.CapabilityError
	TooManyValuesError = domain.TooManyValuesError
	APICallError       = domain.APICallError
	AbortError         = domain.AbortError

	// Config is the process-level destination configuration, loadable from
	// yaml and AICORE_* environment variables via LoadConfig.
	Config = config.Config

	// DeploymentResolver maps a model configuration to a running deployment
	// id. The default implementation queries the deployment catalog.
	DeploymentResolver = config.DeploymentResolver
)

const (
	BackendOrchestration    = domain.BackendOrchestration
	BackendFoundationModels = domain.BackendFoundationModels
)

const (
	EventStreamStart      = domain.EventStreamStart
	EventResponseMetadata = domain.EventResponseMetadata
	EventRaw              = domain.EventRaw
	EventTextStart        = domain.EventTextStart
	EventTextDelta        = domain.EventTextDelta
	EventTextEnd          = domain.EventTextEnd
	EventToolInputStart   = domain.EventToolInputStart
	EventToolInputDelta   = domain.EventToolInputDelta
	EventToolInputEnd     = domain.EventToolInputEnd
	EventToolCall         = domain.EventToolCall
	EventFinish           = domain.EventFinish
	EventError            = domain.EventError
)

// ErrAborted is the sentinel matched by errors.Is when a call was
// cancelled through its context.
var ErrAborted = domain.ErrAborted

// IsAborted reports whether err represents a caller-initiated abort.
func IsAborted(err error) bool { return domain.IsAborted(err) }

// LoadConfig reads the optional yaml descriptor at path and applies
// AICORE_* environment overrides.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

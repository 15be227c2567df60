package domain

// Settings is the tagged union of per-model defaults, discriminated by the
// backend it targets. Fields exclusive to one backend are rejected by the
// other backend's strategy with a CapabilityError.
type Settings interface {
	// API returns the backend this settings variant belongs to.
	API() Backend
}

// TemplateRef references a server-stored prompt template, either by id or
// by the scenario/name/version triple.
type TemplateRef struct {
	ID       string
	Scenario string
	Name     string
	Version  string
}

// OrchestrationSettings are model-creation defaults for the Orchestration
// backend. Module configurations are opaque payloads forwarded verbatim;
// only their presence is interpreted here.
type OrchestrationSettings struct {
	ModelParams map[string]any

	Masking     map[string]any
	Filtering   map[string]any
	Grounding   map[string]any
	Translation map[string]any

	// Template is an inline template: messages with {{?placeholder}} slots.
	Template []Message
	// TemplateRef selects a server-stored template instead.
	TemplateRef *TemplateRef
	// ConfigRef short-circuits local request assembly entirely (see the
	// reduced request mode in the orchestration strategy).
	ConfigRef string
	// Placeholders supplies template placeholder values.
	Placeholders map[string]string

	// EscapeTemplatePlaceholders defaults to true for this backend.
	EscapeTemplatePlaceholders *bool
	IncludeReasoning           bool

	ResponseFormat *ResponseFormat
	Tools          []ToolDefinition
}

func (OrchestrationSettings) API() Backend { return BackendOrchestration }

// FoundationModelsSettings are model-creation defaults for the
// Foundation-Models backend.
type FoundationModelsSettings struct {
	ModelParams map[string]any

	// DataSources configures "on your data" retrieval sources.
	DataSources []map[string]any

	IncludeReasoning bool

	ResponseFormat *ResponseFormat
	Tools          []ToolDefinition
}

func (FoundationModelsSettings) API() Backend { return BackendFoundationModels }

// EscapePlaceholders resolves the template-escaping default: on unless
// explicitly disabled.
func (s OrchestrationSettings) EscapePlaceholders() bool {
	if s.EscapeTemplatePlaceholders != nil {
		return *s.EscapeTemplatePlaceholders
	}
	return true
}

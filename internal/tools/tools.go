// Package tools converts host-interface tool definitions into the
// function-tool JSON shape both backends accept, normalizing parameter
// schemas along the way. Conversion never fails a call: anything that
// cannot be represented becomes a warning.
package tools

import (
	"fmt"

	"github.com/anhofmann/aicore-go/internal/domain"
)

// Tool is the wire shape of a function tool. Both backends use the same
// structure.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes the function signature.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice is the wire shape of a tool-choice directive: either a plain
// mode string or a function selector.
type ToolChoice struct {
	Mode     string // "auto", "none", "required"; empty when Function set
	Function string
}

// MarshalJSON emits the mode string or the function-selection object.
func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	if tc.Function != "" {
		return []byte(fmt.Sprintf(`{"type":"function","function":{"name":%q}}`, tc.Function)), nil
	}
	return []byte(fmt.Sprintf("%q", tc.Mode)), nil
}

// Convert translates tool definitions into wire tools. Unsupported tool
// kinds are skipped with a warning; schema problems fall back to an empty
// object schema.
func Convert(defs []domain.ToolDefinition) ([]Tool, []domain.Warning) {
	var (
		out      []Tool
		warnings []domain.Warning
	)
	for _, def := range defs {
		if def.Kind != domain.ToolKindFunction {
			warnings = append(warnings, domain.Warning{
				Kind:    domain.WarningUnsupportedTool,
				Param:   def.Name,
				Message: fmt.Sprintf("tool %q has unsupported kind %q and was skipped", def.Name, def.Kind),
			})
			continue
		}

		schema, warning := normalizeSchema(def)
		if warning != nil {
			warnings = append(warnings, *warning)
		}
		out = append(out, Tool{
			Type: "function",
			Function: FunctionDef{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  schema,
			},
		})
	}
	return out, warnings
}

// ConvertChoice maps a host tool-choice directive onto the wire shape.
// Unsupported values fall back to auto with a warning instead of failing.
func ConvertChoice(choice *domain.ToolChoice) (*ToolChoice, *domain.Warning) {
	if choice == nil {
		return nil, nil
	}
	switch choice.Kind {
	case domain.ToolChoiceAuto, domain.ToolChoiceNone, domain.ToolChoiceRequired:
		return &ToolChoice{Mode: string(choice.Kind)}, nil
	case domain.ToolChoiceTool:
		return &ToolChoice{Function: choice.ToolName}, nil
	default:
		return &ToolChoice{Mode: "auto"}, &domain.Warning{
			Kind:    domain.WarningUnsupportedToolChoice,
			Value:   string(choice.Kind),
			Message: fmt.Sprintf("tool choice %q is not supported, falling back to auto", choice.Kind),
		}
	}
}

// emptyObjectSchema is the fallback for schemas that cannot be used as
// given.
func emptyObjectSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// normalizeSchema coerces a tool's parameter schema into an object-typed
// JSON schema.
func normalizeSchema(def domain.ToolDefinition) (map[string]any, *domain.Warning) {
	switch params := def.Parameters.(type) {
	case nil:
		return emptyObjectSchema(), nil

	case domain.SchemaConverter:
		schema, err := params.JSONSchema()
		if err != nil {
			return emptyObjectSchema(), &domain.Warning{
				Kind:    domain.WarningSchemaFallback,
				Param:   def.Name,
				Message: fmt.Sprintf("schema conversion for tool %q failed (%v), using an empty object schema", def.Name, err),
			}
		}
		return sanitizeObjectSchema(schema), nil

	case map[string]any:
		return sanitizeObjectSchema(params), nil

	default:
		return emptyObjectSchema(), &domain.Warning{
			Kind:    domain.WarningSchemaFallback,
			Param:   def.Name,
			Message: fmt.Sprintf("tool %q has a non-object parameter schema, using an empty object schema", def.Name),
		}
	}
}

// sanitizeObjectSchema forces an object-typed root, keeps empty property
// sets empty, and drops a malformed required list.
func sanitizeObjectSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return emptyObjectSchema()
	}
	if t, ok := schema["type"].(string); !ok || t != "object" {
		return emptyObjectSchema()
	}

	out := make(map[string]any, len(schema))
	for k, v := range schema {
		out[k] = v
	}
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	if required, ok := out["required"]; ok && !isStringSlice(required) {
		delete(out, "required")
	}
	return out
}

func isStringSlice(v any) bool {
	switch s := v.(type) {
	case []string:
		return true
	case []any:
		for _, item := range s {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

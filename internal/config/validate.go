package config

import (
	"fmt"
	"math"

	"github.com/anhofmann/aicore-go/internal/domain"
)

// reservedProviderKeys are request-structural names per-call provider
// options may not override; they are owned by request assembly.
var reservedProviderKeys = map[string]struct{}{
	"messages":        {},
	"tools":           {},
	"tool_choice":     {},
	"response_format": {},
	"stream":          {},
	"stream_options":  {},
	"input":           {},
	"input_params":    {},
	"config_ref":      {},
}

// ValidateProviderOptions rejects provider options that would collide
// with structural request fields. The remaining keys pass through to the
// parameter bag unvalidated; the remote API is authoritative for them.
func ValidateProviderOptions(backend domain.Backend, opts map[string]any) error {
	for key := range opts {
		if _, reserved := reservedProviderKeys[key]; reserved {
			return &domain.ValidationError{
				Field:   "providerOptions." + key,
				Message: fmt.Sprintf("%q is assembled by the %s backend and cannot be overridden", key, backend),
			}
		}
	}
	return nil
}

// ValidateSettings performs the eager shape checks on model settings, so
// misconfiguration fails at model construction instead of on the first
// call.
func ValidateSettings(settings domain.Settings) error {
	switch s := settings.(type) {
	case nil:
		return nil

	case domain.OrchestrationSettings:
		if err := validateModelParams(s.ModelParams); err != nil {
			return err
		}
		return validateOrchestrationSettings(s)

	case domain.FoundationModelsSettings:
		if err := validateModelParams(s.ModelParams); err != nil {
			return err
		}
		for i, source := range s.DataSources {
			if len(source) == 0 {
				return &domain.ValidationError{
					Field:   fmt.Sprintf("dataSources[%d]", i),
					Message: "data source entries must be non-empty objects",
				}
			}
		}
		return nil

	default:
		return nil
	}
}

func validateOrchestrationSettings(s domain.OrchestrationSettings) error {
	if ref := s.TemplateRef; ref != nil {
		hasID := ref.ID != ""
		hasAnyTriple := ref.Scenario != "" || ref.Name != "" || ref.Version != ""
		hasFullTriple := ref.Scenario != "" && ref.Name != "" && ref.Version != ""

		switch {
		case hasID && hasAnyTriple:
			return &domain.ValidationError{
				Field:   "templateRef",
				Message: "set either id or the scenario/name/version triple, not both",
			}
		case !hasID && !hasFullTriple:
			return &domain.ValidationError{
				Field:   "templateRef",
				Message: "requires id or the complete scenario/name/version triple",
			}
		}

		if s.ConfigRef != "" {
			return &domain.ValidationError{
				Field:   "configRef",
				Message: "configRef and templateRef are both server references and exclude each other",
			}
		}
	}

	for key := range s.Placeholders {
		if key == "" {
			return &domain.ValidationError{
				Field:   "placeholders",
				Message: "placeholder names must be non-empty",
			}
		}
	}
	return nil
}

// validateModelParams rejects out-of-range generation parameters in the
// settings-level parameter bag. Unlike per-call options, which get soft
// warnings, bad settings fail at model construction: they would otherwise
// poison every call on the handle.
func validateModelParams(modelParams map[string]any) error {
	for key, value := range modelParams {
		num, isNum := asFloat(value)
		if !isNum {
			continue
		}

		var bad bool
		var want string
		switch key {
		case "temperature":
			bad, want = num < 0 || num > 2, "must be between 0 and 2"
		case "top_p":
			bad, want = num < 0 || num > 1, "must be between 0 and 1"
		case "frequency_penalty", "presence_penalty":
			bad, want = num < -2 || num > 2, "must be between -2 and 2"
		case "max_tokens":
			bad, want = num <= 0 || num != math.Trunc(num), "must be a positive integer"
		}
		if bad {
			return &domain.ValidationError{
				Field:   "modelParams." + key,
				Message: fmt.Sprintf("value %v %s", value, want),
			}
		}
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// ValidateStrategyConfig checks that a model handle has enough
// information to reach a deployment: a model id always, since deployment
// resolution falls back to it as the catalog model name.
func ValidateStrategyConfig(cfg domain.StrategyConfig) error {
	if cfg.ModelID == "" {
		return &domain.ValidationError{Field: "modelId", Message: "model id is required"}
	}
	return nil
}

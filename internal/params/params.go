// Package params resolves generation parameters from their three layered
// sources (call options, per-call provider options, model settings) into
// one flat backend parameter bag, using a declarative mapping table.
package params

import (
	"fmt"
	"math"

	"github.com/anhofmann/aicore-go/internal/capabilities"
	"github.com/anhofmann/aicore-go/internal/deepmerge"
	"github.com/anhofmann/aicore-go/internal/domain"
)

// Entry maps one host-interface parameter onto a backend parameter.
// OptionKey and SettingsKey name the parameter in the call-option bag and
// the settings bag respectively; either may be empty when that source
// cannot carry the parameter. OutputKey is the backend name.
type Entry struct {
	OptionKey   string
	SettingsKey string
	OutputKey   string

	// Supported gates the parameter on model capabilities. Nil means
	// always supported.
	Supported func(capabilities.Capabilities) bool
}

// Build produces the flat backend parameter bag. Precedence per entry is
// call option > provider option > settings default; the chosen value is
// written under OutputKey and any alias key is removed so no duplicate
// survives. Unknown keys in providerOpts and settings pass through merged
// (provider options win).
func Build(table []Entry, options, providerOpts, settings map[string]any, caps capabilities.Capabilities) (map[string]any, []domain.Warning, error) {
	merged, err := deepmerge.Merge(settings, providerOpts)
	if err != nil {
		return nil, nil, err
	}

	var warnings []domain.Warning
	for _, entry := range table {
		value, ok := pick(entry, options, providerOpts, settings)

		// Drop aliases regardless of which source won.
		if entry.OptionKey != "" && entry.OptionKey != entry.OutputKey {
			delete(merged, entry.OptionKey)
		}
		if entry.SettingsKey != "" && entry.SettingsKey != entry.OutputKey {
			delete(merged, entry.SettingsKey)
		}

		if !ok {
			continue
		}

		if entry.Supported != nil && !entry.Supported(caps) {
			delete(merged, entry.OutputKey)
			warnings = append(warnings, domain.Warning{
				Kind:    domain.WarningUnsupportedParam,
				Param:   entry.OutputKey,
				Value:   value,
				Message: fmt.Sprintf("parameter %q is not supported by this model and was omitted", entry.OutputKey),
			})
			continue
		}

		if w, out := checkRange(entry.OptionKey, value); out {
			warnings = append(warnings, w)
		}
		merged[entry.OutputKey] = value
	}

	return merged, warnings, nil
}

// OptionBag projects the typed call options into the option namespace the
// mapping tables consult. Unset pointers produce no key.
func OptionBag(opts domain.CallOptions) map[string]any {
	bag := make(map[string]any)
	if opts.MaxOutputTokens != nil {
		bag["maxOutputTokens"] = *opts.MaxOutputTokens
	}
	if opts.Temperature != nil {
		bag["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		bag["topP"] = *opts.TopP
	}
	if opts.TopK != nil {
		bag["topK"] = *opts.TopK
	}
	if opts.FrequencyPenalty != nil {
		bag["frequencyPenalty"] = *opts.FrequencyPenalty
	}
	if opts.PresencePenalty != nil {
		bag["presencePenalty"] = *opts.PresencePenalty
	}
	if opts.Seed != nil {
		bag["seed"] = *opts.Seed
	}
	if len(opts.StopSequences) > 0 {
		bag["stopSequences"] = opts.StopSequences
	}
	return bag
}

// pick returns the first defined value in precedence order. Provider
// options are backend-shaped, so they are consulted under OutputKey.
func pick(entry Entry, options, providerOpts, settings map[string]any) (any, bool) {
	if entry.OptionKey != "" {
		if v, ok := options[entry.OptionKey]; ok && v != nil {
			return v, true
		}
	}
	if v, ok := providerOpts[entry.OutputKey]; ok && v != nil {
		return v, true
	}
	if entry.SettingsKey != "" {
		if v, ok := settings[entry.SettingsKey]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// checkRange performs the soft range validation. Out-of-range values are
// forwarded anyway; the remote API is authoritative.
func checkRange(optionKey string, value any) (domain.Warning, bool) {
	num, isNum := asFloat(value)
	if !isNum {
		return domain.Warning{}, false
	}

	outOfRange := false
	switch optionKey {
	case "temperature":
		outOfRange = num < 0 || num > 2
	case "topP":
		outOfRange = num < 0 || num > 1
	case "frequencyPenalty", "presencePenalty":
		outOfRange = num < -2 || num > 2
	case "maxOutputTokens":
		outOfRange = num <= 0 || num != math.Trunc(num)
	default:
		return domain.Warning{}, false
	}

	if !outOfRange {
		return domain.Warning{}, false
	}
	return domain.Warning{
		Kind:    domain.WarningParamOutOfRange,
		Param:   optionKey,
		Value:   value,
		Message: fmt.Sprintf("value %v for %q is outside the documented range", value, optionKey),
	}, true
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

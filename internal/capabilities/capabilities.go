// Package capabilities maps model identifiers to the feature set the
// backends may rely on when shaping requests. Lookup is a pure function of
// the model id string; no caching is needed.
package capabilities

import "strings"

// SystemMessageMode says how system prompts should be presented to a model.
type SystemMessageMode string

const (
	SystemMessageSystem    SystemMessageMode = "system"
	SystemMessageDeveloper SystemMessageMode = "developer"
	SystemMessageRemove    SystemMessageMode = "remove"
)

// Capabilities is the per-model capability record consumed by the
// strategies to decide which parameters to forward.
type Capabilities struct {
	SupportsN                 bool
	SupportsParallelToolCalls bool
	SupportsStreaming         bool
	SupportsStructuredOutputs bool
	SupportsToolCalls         bool
	SupportsImageInputs       bool
	SystemMessageMode         SystemMessageMode
}

// rule pairs a substring pattern with the record it selects.
type rule struct {
	pattern string
	caps    Capabilities
}

// rules is matched top to bottom against the lowercased model id; the
// first match wins. Order is load-bearing: several patterns overlap (for
// example "o1" and "o1-mini"), so this stays a literal ordered list.
var rules = []rule{
	{"o1-mini", Capabilities{
		SupportsStreaming: true,
		SystemMessageMode: SystemMessageRemove,
	}},
	{"o1", Capabilities{
		SupportsStreaming:         true,
		SupportsStructuredOutputs: true,
		SupportsToolCalls:         true,
		SystemMessageMode:         SystemMessageDeveloper,
	}},
	{"o3", Capabilities{
		SupportsStreaming:         true,
		SupportsStructuredOutputs: true,
		SupportsToolCalls:         true,
		SystemMessageMode:         SystemMessageDeveloper,
	}},
	{"gpt-4o-mini", Capabilities{
		SupportsN:                 true,
		SupportsParallelToolCalls: true,
		SupportsStreaming:         true,
		SupportsStructuredOutputs: true,
		SupportsToolCalls:         true,
		SupportsImageInputs:       true,
		SystemMessageMode:         SystemMessageSystem,
	}},
	{"gpt-4", Capabilities{
		SupportsN:                 true,
		SupportsParallelToolCalls: true,
		SupportsStreaming:         true,
		SupportsStructuredOutputs: true,
		SupportsToolCalls:         true,
		SupportsImageInputs:       true,
		SystemMessageMode:         SystemMessageSystem,
	}},
	{"gpt-35-turbo", Capabilities{
		SupportsN:                 true,
		SupportsParallelToolCalls: true,
		SupportsStreaming:         true,
		SupportsToolCalls:         true,
		SystemMessageMode:         SystemMessageSystem,
	}},
	{"claude", Capabilities{
		SupportsParallelToolCalls: true,
		SupportsStreaming:         true,
		SupportsToolCalls:         true,
		SupportsImageInputs:       true,
		SystemMessageMode:         SystemMessageSystem,
	}},
	{"gemini", Capabilities{
		SupportsN:                 true,
		SupportsParallelToolCalls: true,
		SupportsStreaming:         true,
		SupportsStructuredOutputs: true,
		SupportsToolCalls:         true,
		SupportsImageInputs:       true,
		SystemMessageMode:         SystemMessageSystem,
	}},
	{"llama", Capabilities{
		SupportsStreaming: true,
		SupportsToolCalls: true,
		SystemMessageMode: SystemMessageSystem,
	}},
	{"mistral", Capabilities{
		SupportsStreaming: true,
		SupportsToolCalls: true,
		SystemMessageMode: SystemMessageSystem,
	}},
}

// defaults is the record for model ids no rule matches.
var defaults = Capabilities{
	SupportsStreaming: true,
	SupportsToolCalls: true,
	SystemMessageMode: SystemMessageSystem,
}

// Lookup returns the capability record for modelID. Vendor prefixes in the
// "vendor--model" form used by the model catalog are stripped before
// matching.
func Lookup(modelID string) Capabilities {
	id := strings.ToLower(modelID)
	if _, rest, found := strings.Cut(id, "--"); found {
		id = rest
	}
	for _, r := range rules {
		if strings.Contains(id, r.pattern) {
			return r.caps
		}
	}
	return defaults
}

// Vendor extracts the vendor prefix of a "vendor--model" id, or the empty
// string when the id carries none.
func Vendor(modelID string) string {
	if vendor, _, found := strings.Cut(modelID, "--"); found {
		return vendor
	}
	return ""
}

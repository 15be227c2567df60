package domain

import "strings"

// FinishKind is the backend-agnostic finish reason.
type FinishKind string

const (
	FinishStop          FinishKind = "stop"
	FinishLength        FinishKind = "length"
	FinishToolCalls     FinishKind = "tool-calls"
	FinishContentFilter FinishKind = "content-filter"
	FinishError         FinishKind = "error"
	FinishOther         FinishKind = "other"
)

// FinishReason pairs the unified finish reason with the raw string the
// backend reported. Raw is preserved as given, including the empty string.
type FinishReason struct {
	Kind FinishKind
	Raw  string
}

// MapFinishReason maps a backend finish-reason string to the unified enum.
// Matching is case-insensitive; unrecognized or absent values map to
// FinishOther.
func MapFinishReason(raw string) FinishReason {
	switch strings.ToLower(raw) {
	case "stop", "eos", "end_turn", "stop_sequence":
		return FinishReason{Kind: FinishStop, Raw: raw}
	case "length", "max_tokens", "max_tokens_reached":
		return FinishReason{Kind: FinishLength, Raw: raw}
	case "tool_call", "tool_calls", "function_call":
		return FinishReason{Kind: FinishToolCalls, Raw: raw}
	case "content_filter":
		return FinishReason{Kind: FinishContentFilter, Raw: raw}
	case "error":
		return FinishReason{Kind: FinishError, Raw: raw}
	default:
		return FinishReason{Kind: FinishOther, Raw: raw}
	}
}

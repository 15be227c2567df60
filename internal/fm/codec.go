package fm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anhofmann/aicore-go/internal/capabilities"
	"github.com/anhofmann/aicore-go/internal/domain"
	"github.com/anhofmann/aicore-go/internal/streaming"
)

// ConvertOptions shapes message conversion. EscapeText transforms every
// text fragment before it enters the wire message; nil means identity.
// The Orchestration backend passes its template-escaping function here,
// this backend always passes nil.
type ConvertOptions struct {
	IncludeReasoning bool
	Caps             capabilities.Capabilities
	EscapeText       func(string) string
}

// ConvertMessages translates the backend-agnostic prompt into wire
// messages. Parts a model cannot accept are skipped with a warning rather
// than failing the call.
func ConvertMessages(prompt []domain.Message, opts ConvertOptions) ([]ChatMessage, []domain.Warning, error) {
	escape := opts.EscapeText
	if escape == nil {
		escape = func(s string) string { return s }
	}

	var out []ChatMessage
	var warnings []domain.Warning

	for _, msg := range prompt {
		switch msg.Role {
		case domain.RoleSystem:
			role := "system"
			switch opts.Caps.SystemMessageMode {
			case capabilities.SystemMessageDeveloper:
				role = "developer"
			case capabilities.SystemMessageRemove:
				warnings = append(warnings, domain.Warning{
					Kind:    domain.WarningUnsupportedParam,
					Param:   "system",
					Message: "system messages are removed for this model",
				})
				continue
			}
			out = append(out, ChatMessage{Role: role, Content: escape(textOf(msg.Parts))})

		case domain.RoleUser:
			content, userWarnings := convertUserParts(msg.Parts, escape)
			warnings = append(warnings, userWarnings...)
			out = append(out, ChatMessage{Role: "user", Content: content})

		case domain.RoleAssistant:
			wire, err := convertAssistantParts(msg.Parts, opts.IncludeReasoning, escape)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, wire)

		case domain.RoleTool:
			for _, part := range msg.Parts {
				if part.Kind != domain.ContentToolResult {
					continue
				}
				content, err := stringifyResult(part.Result)
				if err != nil {
					return nil, nil, fmt.Errorf("tool result for call %q: %w", part.ToolCallID, err)
				}
				out = append(out, ChatMessage{
					Role:       "tool",
					ToolCallID: part.ToolCallID,
					Content:    content,
				})
			}

		default:
			return nil, nil, &domain.ValidationError{
				Field:   "prompt",
				Message: fmt.Sprintf("unsupported message role %q", msg.Role),
			}
		}
	}
	return out, warnings, nil
}

// textOf joins the text parts of a message, used for roles whose content
// is always a plain string.
func textOf(parts []domain.ContentPart) string {
	var b strings.Builder
	for _, part := range parts {
		if part.Kind == domain.ContentText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// convertUserParts returns a plain string for text-only messages and an
// item list for multimodal ones.
func convertUserParts(parts []domain.ContentPart, escape func(string) string) (any, []domain.Warning) {
	var warnings []domain.Warning
	items := make([]ContentItem, 0, len(parts))
	textOnly := true

	for _, part := range parts {
		switch part.Kind {
		case domain.ContentText:
			items = append(items, ContentItem{Type: "text", Text: escape(part.Text)})

		case domain.ContentFile:
			url, ok := fileURL(part.File)
			if !ok {
				warnings = append(warnings, domain.Warning{
					Kind:    domain.WarningUnsupportedParam,
					Param:   "file",
					Message: fmt.Sprintf("file parts of media type %q are not supported and were skipped", part.File.MediaType),
				})
				continue
			}
			textOnly = false
			items = append(items, ContentItem{Type: "image_url", ImageURL: &ImageURL{URL: url}})

		default:
			warnings = append(warnings, domain.Warning{
				Kind:    domain.WarningUnsupportedParam,
				Param:   string(part.Kind),
				Message: fmt.Sprintf("%s parts are not supported in user messages and were skipped", part.Kind),
			})
		}
	}

	if textOnly {
		var b strings.Builder
		for _, item := range items {
			b.WriteString(item.Text)
		}
		return b.String(), warnings
	}
	return items, warnings
}

// fileURL resolves a file part to an image URL, inlining byte payloads as
// data URLs.
func fileURL(file *domain.FilePart) (string, bool) {
	if file == nil || !strings.HasPrefix(file.MediaType, "image/") {
		return "", false
	}
	if file.URL != "" {
		return file.URL, true
	}
	encoded := base64.StdEncoding.EncodeToString(file.Data)
	return "data:" + file.MediaType + ";base64," + encoded, true
}

func convertAssistantParts(parts []domain.ContentPart, includeReasoning bool, escape func(string) string) (ChatMessage, error) {
	var text strings.Builder
	var toolCalls []ToolCall

	for _, part := range parts {
		switch part.Kind {
		case domain.ContentText:
			text.WriteString(escape(part.Text))
		case domain.ContentReasoning:
			if includeReasoning {
				text.WriteString(escape(part.Text))
			}
		case domain.ContentToolCall:
			args := part.Input
			if args == "" {
				args = "{}"
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:   part.ToolCallID,
				Type: "function",
				Function: FunctionCall{
					Name:      part.ToolName,
					Arguments: args,
				},
			})
		default:
			return ChatMessage{}, &domain.ValidationError{
				Field:   "prompt",
				Message: fmt.Sprintf("unsupported %s part in assistant message", part.Kind),
			}
		}
	}

	wire := ChatMessage{Role: "assistant", ToolCalls: toolCalls}
	if text.Len() > 0 {
		wire.Content = text.String()
	}
	return wire, nil
}

// stringifyResult serializes a tool result for the wire: strings pass
// through, everything else is JSON-encoded.
func stringifyResult(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ConvertResponseFormat maps the response-format directive to the wire
// form. Any schema produces a best-effort warning: adherence is
// model-dependent and not guaranteed by this layer. A schema on a model
// without structured-output support additionally falls back to free-form
// JSON mode.
func ConvertResponseFormat(rf *domain.ResponseFormat, caps capabilities.Capabilities) (*ResponseFormat, []domain.Warning) {
	if rf == nil || rf.Kind == domain.ResponseFormatText {
		return nil, nil
	}

	if rf.Schema == nil {
		return &ResponseFormat{Type: "json_object"}, nil
	}

	if !caps.SupportsStructuredOutputs {
		return &ResponseFormat{Type: "json_object"}, []domain.Warning{{
			Kind:    domain.WarningResponseFormatSchema,
			Param:   "responseFormat",
			Message: "the model does not support structured outputs; the schema was dropped and json_object mode used instead",
		}}
	}

	name := rf.Name
	if name == "" {
		name = "response"
	}
	return &ResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchemaFormat{
				Name:        name,
				Description: rf.Description,
				Schema:      rf.Schema,
				Strict:      rf.Strict,
			},
		}, []domain.Warning{{
			Kind:    domain.WarningResponseFormatSchema,
			Param:   "responseFormat",
			Message: "response schemas are applied best-effort; adherence depends on the model and is not guaranteed",
		}}
}

// ContentParts converts a response message back into backend-agnostic
// content parts.
func ContentParts(msg ChatMessage) []domain.ContentPart {
	var parts []domain.ContentPart
	if text, ok := msg.Content.(string); ok && text != "" {
		parts = append(parts, domain.TextPart(text))
	}
	for _, call := range msg.ToolCalls {
		parts = append(parts, domain.ToolCallPart(call.ID, call.Function.Name, call.Function.Arguments))
	}
	return parts
}

// ConvertUsage maps wire usage to the backend-agnostic breakdown. Only
// the totals are reported on this wire, so they are mirrored into the
// uncached and text buckets.
func ConvertUsage(u *Usage) domain.Usage {
	if u == nil {
		return domain.Usage{}
	}
	return domain.Usage{
		Input: domain.InputTokens{
			Total:   domain.Int(u.PromptTokens),
			NoCache: domain.Int(u.PromptTokens),
		},
		Output: domain.OutputTokens{
			Total: domain.Int(u.CompletionTokens),
			Text:  domain.Int(u.CompletionTokens),
		},
	}
}

// StreamChunk adapts one wire chunk to the normalizer's chunk shape.
func StreamChunk(ch *ChatCompletionChunk) streaming.Chunk {
	out := streaming.Chunk{ResponseID: ch.ID, Raw: ch}
	if ch.Usage != nil {
		out.Usage = &streaming.UsageSummary{
			PromptTokens:     ch.Usage.PromptTokens,
			CompletionTokens: ch.Usage.CompletionTokens,
			TotalTokens:      ch.Usage.TotalTokens,
		}
	}
	if len(ch.Choices) == 0 {
		return out
	}

	choice := ch.Choices[0]
	out.TextDelta = choice.Delta.Content
	if choice.FinishReason != nil {
		out.FinishReason = *choice.FinishReason
	}
	for _, tc := range choice.Delta.ToolCalls {
		delta := streaming.ToolDelta{Index: tc.Index, ID: tc.ID}
		if tc.Function != nil {
			delta.Name = tc.Function.Name
			delta.ArgsDelta = tc.Function.Arguments
		}
		out.ToolDeltas = append(out.ToolDeltas, delta)
	}
	return out
}

package domain

// ContentKind discriminates the parts of a message or result.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentFile       ContentKind = "file"
	ContentReasoning  ContentKind = "reasoning"
	ContentToolCall   ContentKind = "tool-call"
	ContentToolResult ContentKind = "tool-result"
)

// ContentPart is a single part of message content. The same shape is used
// for prompt input and for generated output.
type ContentPart struct {
	Kind ContentKind

	// For text and reasoning content.
	Text string

	// For file content.
	File *FilePart

	// For tool-call blocks (assistant invoking a tool). Input carries the
	// argument JSON as text.
	ToolCallID string
	ToolName   string
	Input      string

	// For tool-result blocks (tool output fed back to the model).
	Result any
}

// FilePart carries binary or referenced file content.
type FilePart struct {
	MediaType string
	// Exactly one of Data or URL is set.
	Data []byte
	URL  string
}

// TextPart creates a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// ReasoningPart creates a reasoning content part.
func ReasoningPart(text string) ContentPart {
	return ContentPart{Kind: ContentReasoning, Text: text}
}

// ToolCallPart creates a tool-call content part.
func ToolCallPart(id, name, input string) ContentPart {
	return ContentPart{Kind: ContentToolCall, ToolCallID: id, ToolName: name, Input: input}
}

// ToolResultPart creates a tool-result content part.
func ToolResultPart(toolCallID string, result any) ContentPart {
	return ContentPart{Kind: ContentToolResult, ToolCallID: toolCallID, Result: result}
}

// Package streaming reconstructs host-interface stream events from a raw
// backend chunk sequence. The transformer is a state machine advanced by a
// single consumer loop: text-block lifecycle, per-index tool-call
// accumulation, finish-reason precedence, and usage folding all live here
// so the backend strategies only have to produce chunks.
package streaming

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anhofmann/aicore-go/internal/domain"
)

// Chunk is one increment of a backend stream, already decoded from the
// wire. A chunk may carry any combination of text, tool deltas, a finish
// reason, and a usage summary.
type Chunk struct {
	// TextDelta is nil when the chunk carries no text. Empty-string deltas
	// are preserved so downstream accumulation sees the exact delta count.
	TextDelta *string

	ToolDeltas []ToolDelta

	// FinishReason is the raw backend string, empty when absent.
	FinishReason string

	// Usage is the terminal token summary when the backend includes one.
	Usage *UsageSummary

	// ResponseID is the backend request id when the chunk exposes one.
	ResponseID string

	// Raw is the chunk's native payload, forwarded on raw events.
	Raw any
}

// ToolDelta is one tool-call fragment keyed by the backend's integer
// index. Fragments without an index are skipped defensively.
type ToolDelta struct {
	Index     *int
	ID        string
	Name      string
	ArgsDelta string
}

// UsageSummary is the backend's flat token accounting. The backends here
// do not break down cache or reasoning tokens.
type UsageSummary struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result wraps one chunk or a mid-stream error from the backend client.
type Result struct {
	Chunk *Chunk
	Err   error
}

// Options configures one transformer run.
type Options struct {
	ModelID          string
	IncludeRawChunks bool

	// Warnings collected during request construction, handed over once on
	// stream-start and never mutated afterwards.
	Warnings []domain.Warning

	// WrapError classifies a mid-stream error before it is emitted. Nil
	// passes the error through unchanged.
	WrapError func(error) error

	// NewID generates response and text block ids. Defaults to uuid.
	NewID func() string

	Logger *slog.Logger
}

// toolAccumulator is the per-index record built up across chunks until the
// call is flushed as a single tool-call event.
type toolAccumulator struct {
	id                string
	name              string
	nameKnown         bool
	args              strings.Builder
	didEmitInputStart bool
	didEmitCall       bool
}

// Run consumes chunks and emits host-interface events on the returned
// channel, strictly in chunk-arrival order. The channel is closed after
// the terminal finish or error event; exactly one of the two is emitted.
func Run(chunks <-chan Result, opts Options) <-chan domain.StreamEvent {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	out := make(chan domain.StreamEvent)
	go func() {
		defer close(out)
		t := &transformer{opts: opts, out: out, accumulators: make(map[int]*toolAccumulator)}
		t.run(chunks)
	}()
	return out
}

type transformer struct {
	opts Options
	out  chan<- domain.StreamEvent

	emittedMetadata   bool
	responseID        string
	activeTextBlockID string

	// declared is the last server-declared finish reason; toolSignal is
	// the locally inferred tool-calls signal that also suppresses text.
	declared   *domain.FinishReason
	toolSignal bool

	usage        *UsageSummary
	accumulators map[int]*toolAccumulator
	// order preserves first-seen accumulator order for deterministic
	// flushing.
	order []int
}

func (t *transformer) run(chunks <-chan Result) {
	t.out <- domain.StreamEvent{Type: domain.EventStreamStart, Warnings: t.opts.Warnings}

	for result := range chunks {
		if result.Err != nil {
			err := result.Err
			if t.opts.WrapError != nil {
				err = t.opts.WrapError(err)
			}
			t.opts.Logger.Debug("stream terminated by backend error", slog.String("model", t.opts.ModelID))
			t.out <- domain.StreamEvent{Type: domain.EventError, Err: err}
			return
		}
		t.handleChunk(result.Chunk)
	}

	t.finish()
}

func (t *transformer) handleChunk(chunk *Chunk) {
	if !t.emittedMetadata {
		t.emittedMetadata = true
		t.responseID = t.opts.NewID()
		if chunk.ResponseID != "" {
			t.responseID = chunk.ResponseID
		}
		t.out <- domain.StreamEvent{
			Type:      domain.EventResponseMetadata,
			ID:        t.responseID,
			Model:     t.opts.ModelID,
			Timestamp: time.Now(),
		}
	}

	if t.opts.IncludeRawChunks {
		raw := chunk.Raw
		if raw == nil {
			raw = chunk
		}
		t.out <- domain.StreamEvent{Type: domain.EventRaw, Raw: raw}
	}

	// The tool-calls signal fires before any text handling so that text in
	// the same chunk is already suppressed.
	if len(chunk.ToolDeltas) > 0 {
		t.toolSignal = true
	}

	if chunk.TextDelta != nil && !t.toolSignal {
		if t.activeTextBlockID == "" {
			t.activeTextBlockID = t.opts.NewID()
			t.out <- domain.StreamEvent{Type: domain.EventTextStart, ID: t.activeTextBlockID}
		}
		t.out <- domain.StreamEvent{Type: domain.EventTextDelta, ID: t.activeTextBlockID, Delta: *chunk.TextDelta}
	}

	for _, delta := range chunk.ToolDeltas {
		t.handleToolDelta(delta)
	}

	if chunk.Usage != nil {
		t.usage = chunk.Usage
	}

	if chunk.FinishReason != "" {
		reason := domain.MapFinishReason(chunk.FinishReason)
		t.declared = &reason
		if reason.Kind == domain.FinishToolCalls {
			t.toolSignal = true
			t.closeTextBlock()
			t.flushAccumulators()
		}
	}
}

func (t *transformer) handleToolDelta(delta ToolDelta) {
	if delta.Index == nil {
		// No way to attribute the fragment; dropping it beats corrupting
		// another accumulator.
		t.opts.Logger.Debug("skipping tool-call delta without index", slog.String("model", t.opts.ModelID))
		return
	}
	index := *delta.Index

	acc, ok := t.accumulators[index]
	if !ok {
		acc = &toolAccumulator{}
		t.accumulators[index] = acc
		t.order = append(t.order, index)
	}

	// Ids may change mid-stream; last write wins. Names never clear once
	// set.
	if delta.ID != "" {
		acc.id = delta.ID
	}
	if delta.Name != "" && !acc.nameKnown {
		acc.name = delta.Name
		acc.nameKnown = true
	}

	if acc.nameKnown && !acc.didEmitInputStart {
		acc.didEmitInputStart = true
		t.out <- domain.StreamEvent{Type: domain.EventToolInputStart, ID: acc.id, ToolName: acc.name}
	}

	if delta.ArgsDelta != "" {
		acc.args.WriteString(delta.ArgsDelta)
		if acc.didEmitInputStart {
			t.out <- domain.StreamEvent{Type: domain.EventToolInputDelta, ID: acc.id, Delta: delta.ArgsDelta}
		}
	}
}

// flushAccumulators emits the terminal tool events for every accumulator
// that has not produced its tool-call yet.
func (t *transformer) flushAccumulators() {
	for _, index := range t.order {
		acc := t.accumulators[index]
		if acc.didEmitCall {
			continue
		}
		if !acc.didEmitInputStart {
			// The name never arrived; flush with an empty name rather
			// than dropping the call. The stream-start warnings snapshot
			// is already out, so this is surfaced via the log only.
			t.opts.Logger.Warn("tool call finished without a resolvable tool name",
				slog.String("model", t.opts.ModelID), slog.String("tool_call_id", acc.id))
			acc.didEmitInputStart = true
			t.out <- domain.StreamEvent{Type: domain.EventToolInputStart, ID: acc.id, ToolName: acc.name}
		}
		t.out <- domain.StreamEvent{Type: domain.EventToolInputEnd, ID: acc.id}
		t.out <- domain.StreamEvent{
			Type:     domain.EventToolCall,
			ID:       acc.id,
			ToolName: acc.name,
			Input:    acc.args.String(),
		}
		acc.didEmitCall = true
	}
}

func (t *transformer) closeTextBlock() {
	if t.activeTextBlockID == "" {
		return
	}
	t.out <- domain.StreamEvent{Type: domain.EventTextEnd, ID: t.activeTextBlockID}
	t.activeTextBlockID = ""
}

// finish runs after the chunk sequence is exhausted: remaining
// accumulators are flushed (some backends omit the tool_calls finish
// reason), the text block is closed, and the single finish event goes out.
func (t *transformer) finish() {
	t.closeTextBlock()
	t.flushAccumulators()

	// The server-declared reason wins over the locally inferred one.
	reason := domain.FinishReason{Kind: domain.FinishOther}
	if t.toolSignal {
		reason = domain.FinishReason{Kind: domain.FinishToolCalls}
	}
	if t.declared != nil {
		reason = *t.declared
	}

	usage := domain.Usage{}
	if t.usage != nil {
		// Totals are mirrored into the single non-cached/text category;
		// these backends do not break down cache or reasoning tokens.
		usage.Input.Total = domain.Int(t.usage.PromptTokens)
		usage.Input.NoCache = domain.Int(t.usage.PromptTokens)
		usage.Output.Total = domain.Int(t.usage.CompletionTokens)
		usage.Output.Text = domain.Int(t.usage.CompletionTokens)
	}

	meta := map[string]any{"responseId": t.responseID}
	if t.declared != nil {
		meta["rawFinishReason"] = t.declared.Raw
	}

	t.out <- domain.StreamEvent{
		Type:             domain.EventFinish,
		FinishReason:     reason,
		Usage:            &usage,
		ProviderMetadata: meta,
	}
}

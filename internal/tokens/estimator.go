// Package tokens estimates token usage locally with tiktoken encodings.
// Backends occasionally end a stream without a usage summary; the
// estimator fills the gap so consumers always see output-token counts,
// marked as estimates.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens for model output. Codecs are cached per
// encoding; the estimator is safe for concurrent use.
type Estimator struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewEstimator creates an Estimator.
func NewEstimator() *Estimator {
	return &Estimator{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// encodingFor picks the encoding by model id. Vendor prefixes in the
// "vendor--model" catalog form are stripped first. Non-OpenAI models have
// no exact tokenizer here; o200k_base is the closest stand-in and keeps
// estimates in the right order of magnitude.
func encodingFor(modelID string) tokenizer.Encoding {
	id := strings.ToLower(modelID)
	if _, rest, found := strings.Cut(id, "--"); found {
		id = rest
	}

	switch {
	case strings.HasPrefix(id, "gpt-4o"), strings.HasPrefix(id, "gpt-4.1"),
		strings.HasPrefix(id, "o1"), strings.HasPrefix(id, "o3"), strings.HasPrefix(id, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(id, "gpt-4"), strings.HasPrefix(id, "gpt-35"), strings.HasPrefix(id, "gpt-3.5"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(id, "text-embedding"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

func (e *Estimator) codec(modelID string) (tokenizer.Codec, error) {
	encoding := encodingFor(modelID)

	e.mu.RLock()
	if cached, ok := e.codecs[encoding]; ok {
		e.mu.RUnlock()
		return cached, nil
	}
	e.mu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	e.mu.Lock()
	e.codecs[encoding] = codec
	e.mu.Unlock()
	return codec, nil
}

// Count returns the token count of text under the model's encoding.
func (e *Estimator) Count(modelID, text string) (int, error) {
	codec, err := e.codec(modelID)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

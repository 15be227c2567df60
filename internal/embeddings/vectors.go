// Package embeddings normalizes backend embedding payloads: vectors may
// arrive as plain numeric arrays or as base64-encoded packed little-endian
// float32 buffers, and are not guaranteed to come back in request order.
package embeddings

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/anhofmann/aicore-go/internal/domain"
)

// Vector is the wire union of an embedding value. Unmarshalling keeps the
// raw form; Floats performs the normalization.
type Vector struct {
	floats  []float32
	encoded string
}

// UnmarshalJSON accepts a JSON number array or a base64 string.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.encoded = s
		v.floats = nil
		return nil
	}

	var nums []float64
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("embedding value is neither a number array nor a base64 string: %w", err)
	}
	v.floats = make([]float32, len(nums))
	for i, n := range nums {
		v.floats[i] = float32(n)
	}
	v.encoded = ""
	return nil
}

// Floats returns the vector as float32 values. Base64 payloads decode to
// bit-identical floats of the packed representation.
func (v *Vector) Floats() (domain.Embedding, error) {
	if v.encoded == "" {
		return domain.Embedding(v.floats), nil
	}

	raw, err := base64.StdEncoding.DecodeString(v.encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 embedding: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("base64 embedding has %d bytes, not a multiple of 4", len(raw))
	}

	out := make(domain.Embedding, len(raw)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// Item is one embedding entry with its explicit result index.
type Item struct {
	Index  int
	Vector Vector
}

// Normalize re-sorts items by index and decodes every vector. Backends are
// not guaranteed to return vectors in request order.
func Normalize(items []Item) ([]domain.Embedding, error) {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	out := make([]domain.Embedding, len(sorted))
	for i, item := range sorted {
		floats, err := item.Vector.Floats()
		if err != nil {
			return nil, fmt.Errorf("embedding at index %d: %w", item.Index, err)
		}
		out[i] = floats
	}
	return out, nil
}

// EncodeFloats packs values as little-endian float32 base64, the inverse
// of the decode path. Used by tests and fixtures.
func EncodeFloats(values []float32) string {
	raw := make([]byte, len(values)*4)
	for i, f := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

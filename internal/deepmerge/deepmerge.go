// Package deepmerge merges layered configuration maps key by key, with the
// guards needed for untrusted input: unsafe key skipping, bounded depth,
// and cycle detection. Inputs are never mutated.
package deepmerge

import (
	"errors"
	"reflect"
)

// maxDepth bounds recursion for both merging and cloning.
const maxDepth = 100

// ErrDepthExceeded is returned when nesting exceeds maxDepth levels.
var ErrDepthExceeded = errors.New("deepmerge: maximum depth exceeded")

// ErrCycleDetected is returned when a value contains itself.
var ErrCycleDetected = errors.New("deepmerge: cycle detected")

// unsafeKeys are always skipped. The merged bags are serialized into
// requests consumed by JavaScript-side services, so the prototype-pollution
// key set is filtered here rather than at the wire boundary.
var unsafeKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// Merge combines sources key by key; later sources take precedence. When
// both values at a key are plain maps they merge recursively; any other
// pairing replaces wholesale (slices are replaced, not concatenated). Nil
// sources are ignored. The result shares no sub-structure with any input.
func Merge(sources ...map[string]any) (map[string]any, error) {
	out := make(map[string]any)
	seen := make(map[uintptr]struct{})
	for _, src := range sources {
		if src == nil {
			continue
		}
		if err := mergeInto(out, src, seen, 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mergeInto(dst, src map[string]any, seen map[uintptr]struct{}, depth int) error {
	if depth > maxDepth {
		return ErrDepthExceeded
	}

	ptr := reflect.ValueOf(src).Pointer()
	if _, ok := seen[ptr]; ok {
		return ErrCycleDetected
	}
	seen[ptr] = struct{}{}
	defer delete(seen, ptr)

	for key, incoming := range src {
		if _, unsafe := unsafeKeys[key]; unsafe {
			continue
		}

		existing, present := dst[key]
		existingMap, existingIsMap := existing.(map[string]any)
		incomingMap, incomingIsMap := incoming.(map[string]any)

		if present && existingIsMap && incomingIsMap {
			if err := mergeInto(existingMap, incomingMap, seen, depth+1); err != nil {
				return err
			}
			continue
		}

		cloned, err := clone(incoming, seen, depth+1)
		if err != nil {
			return err
		}
		dst[key] = cloned
	}
	return nil
}

// CloneDeep returns a copy of v sharing no maps or slices with it, using
// the same depth and cycle discipline as Merge.
func CloneDeep(v any) (any, error) {
	return clone(v, make(map[uintptr]struct{}), 0)
}

func clone(v any, seen map[uintptr]struct{}, depth int) (any, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}

	switch val := v.(type) {
	case map[string]any:
		ptr := reflect.ValueOf(val).Pointer()
		if _, ok := seen[ptr]; ok {
			return nil, ErrCycleDetected
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)

		out := make(map[string]any, len(val))
		for k, inner := range val {
			if _, unsafe := unsafeKeys[k]; unsafe {
				continue
			}
			cloned, err := clone(inner, seen, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = cloned
		}
		return out, nil

	case []any:
		ptr := reflect.ValueOf(val).Pointer()
		if _, ok := seen[ptr]; ok {
			return nil, ErrCycleDetected
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)

		out := make([]any, len(val))
		for i, inner := range val {
			cloned, err := clone(inner, seen, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = cloned
		}
		return out, nil

	default:
		// Scalars, structs, and typed values pass through by value.
		return v, nil
	}
}

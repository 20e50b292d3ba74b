// Package jsonval provides the dynamic-JSON-value helpers the manifest and
// metadata filter evaluator share: dot-path resolution, structural deep
// equality, and numeric projection, all over the tree encoding/json produces
// when a value is decoded as `any` (null, bool, float64, string, []any,
// map[string]any).
package jsonval

import (
	"bytes"
	"encoding/json"
)

// Decode parses raw JSON into the dynamic value tree. Numbers are read as
// json.Number and then converted to float64, so every number in the result
// is a float64; integers beyond float64's exact range lose precision.
func Decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

// normalizeNumbers walks a json.Number-bearing tree and converts every
// json.Number to float64, so numbers project onto a double for comparisons
// and for the manifest's dimension lookup alike. A number that fails to
// convert becomes 0.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0.0
		}
		return f
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeNumbers(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeNumbers(val)
		}
		return out
	default:
		return v
	}
}

// Encode produces the canonical JSON encoding of v. encoding/json marshals
// map[string]any keys in sorted order, which is the canonical form this
// package's round-trip guarantee relies on.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// ResolvePath navigates root by the dot-delimited segments of path. At each
// step, if the current node is an object (map[string]any), it descends by
// key; otherwise, or if the key is absent, the path is missing.
//
// Returns (value, true) if the terminal lookup succeeds (including when the
// resolved value is JSON null), or (nil, false) if the path is missing.
func ResolvePath(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}

	current := root
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			segment := path[start:i]
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			val, exists := obj[segment]
			if !exists {
				return nil, false
			}
			current = val
			start = i + 1
		}
	}
	return current, true
}

// DeepEqual reports whether a and b are structurally equal: numbers compare
// by value, strings by code point, arrays/objects element-wise.
func DeepEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := toFloat64(b)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !DeepEqual(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// AsFloat64 projects v onto a double for numeric comparisons (gte/lte).
// Only numbers project; every other type fails.
func AsFloat64(v any) (float64, bool) {
	return toFloat64(v)
}

// ContainsValue reports whether haystack (expected to be a []any) contains
// an element deeply equal to needle.
func ContainsValue(haystack any, needle any) bool {
	arr, ok := haystack.([]any)
	if !ok {
		return false
	}
	for _, item := range arr {
		if DeepEqual(item, needle) {
			return true
		}
	}
	return false
}

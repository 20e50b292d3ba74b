package vpack

import (
	"github.com/vpackhq/vpack-go/internal/jsonval"
	"github.com/vpackhq/vpack-go/internal/vpkerr"
)

// Manifest is the structured document describing the pipeline (source,
// chunker, embedder, ...) that produced a batch of EmbeddedChunks. The core
// interprets only the "plugins" field's embedder entry; everything else is
// opaque and round-trips through Decode/Encode modulo canonical JSON
// re-encoding.
type Manifest struct {
	value any
}

// NewManifest wraps an already-decoded dynamic JSON value (as produced by
// jsonval.Decode or a caller's own encoding/json unmarshal into `any`) as a
// Manifest.
func NewManifest(value any) Manifest {
	return Manifest{value: value}
}

// DecodeManifest parses raw JSON bytes into a Manifest.
func DecodeManifest(raw []byte) (Manifest, error) {
	v, err := jsonval.Decode(raw)
	if err != nil {
		return Manifest{}, vpkerr.DeserializeFailed(err.Error())
	}
	return Manifest{value: v}, nil
}

// Value returns the manifest's dynamic JSON value tree.
func (m Manifest) Value() any {
	return m.value
}

// JSON returns the canonical JSON encoding of the manifest.
func (m Manifest) JSON() ([]byte, error) {
	return jsonval.Encode(m.value)
}

// dimensions resolves the index dimensionality by finding the first plugin
// entry whose kind == "embedder" and reading its "dimensions" field as a
// non-negative integer.
func (m Manifest) dimensions() (int, *vpkerr.Error) {
	const missingDimsMsg = "Embedder plugin config must include dimensions"

	root, ok := m.value.(map[string]any)
	if !ok {
		return 0, vpkerr.UnknownModel(missingDimsMsg)
	}

	plugins, ok := root["plugins"].([]any)
	if !ok {
		return 0, vpkerr.UnknownModel(missingDimsMsg)
	}

	for _, p := range plugins {
		plugin, ok := p.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := plugin["kind"].(string)
		if kind != "embedder" {
			continue
		}

		dimsVal, present := plugin["dimensions"]
		if !present {
			return 0, vpkerr.UnknownModel(missingDimsMsg)
		}
		dims, ok := dimsVal.(float64)
		if !ok || dims < 0 || dims != float64(int(dims)) {
			return 0, vpkerr.UnknownModel(missingDimsMsg)
		}
		return int(dims), nil
	}

	return 0, vpkerr.UnknownModel(missingDimsMsg)
}

// Package vpkerr provides the closed error taxonomy for the VPack engine.
//
// Every error the engine raises carries one of a fixed set of short codes
// plus a human-readable message. Codes are stable across implementations
// (Go, the Rust engine it was ported from, and any future host binding) and
// are suitable for machine handling at a foreign-function boundary.
package vpkerr

// Code identifies one member of the closed VPack error taxonomy.
type Code string

const (
	// CodeDimensionMismatch: vector length != index dimensionality (build or
	// query), or an embed-function's output length != its declared dimensions.
	CodeDimensionMismatch Code = "DIMENSION_MISMATCH"

	// CodeModelMismatch: the query-time model identifier differs from the one
	// baked into the index. Hard error — never weakened to a warning.
	CodeModelMismatch Code = "MODEL_MISMATCH"

	// CodeEmptyIndex: Build was called with zero chunks.
	CodeEmptyIndex Code = "EMPTY_INDEX"

	// CodeModelHashMismatch: locally cached model weights hash differs from
	// the manifest-pinned hash.
	CodeModelHashMismatch Code = "MODEL_HASH_MISMATCH"

	// CodeUnknownModel: unknown/unsupported model name, missing or malformed
	// embedder dimensions, or an unsupported provider.
	CodeUnknownModel Code = "UNKNOWN_MODEL"

	// CodeSerializeFailed: payload encoding failure.
	CodeSerializeFailed Code = "SERIALIZE_FAILED"

	// CodeDeserializeFailed: bad magic, version, length, truncation, or
	// invalid manifest JSON.
	CodeDeserializeFailed Code = "DESERIALIZE_FAILED"
)

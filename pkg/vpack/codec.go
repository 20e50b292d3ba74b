package vpack

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/vpackhq/vpack-go/internal/vpkerr"
)

// warnOnCleanupFailure reports a best-effort cleanup step (unlocking a
// flock, removing a stale temp file) that failed without affecting the
// operation's outcome. The caller already has a success/error result to
// return; losing this failure silently would otherwise leave a host with no
// way to notice an accumulating pile of stale .tmp or .lock files. Logs via
// slog's default logger, which a host can redirect to a rotating file with
// obslog.Setup.
func warnOnCleanupFailure(op string, err error) {
	if err != nil {
		slog.Warn("vpack: cleanup step failed", "op", op, "error", err)
	}
}

// vpackMagic is the 4-byte magic prefix of every .vpack artifact.
var vpackMagic = [4]byte{'V', 'P', 'A', 'K'}

// vpackVersion is the codec version this package reads and writes. Readers
// reject any other version with DESERIALIZE_FAILED rather than guess at a
// forward-compatible layout.
const vpackVersion byte = 0x02

// payload is the gob-encoded body framed by the .vpack header. It carries
// the manifest as a canonical JSON blob (not gob-encoded directly) so that
// the manifest's dynamic value tree survives a language-agnostic re-read of
// just that field.
type payload struct {
	ManifestJSON []byte
	// Dimensions is carried for wire inspection only; Deserialize re-derives
	// dimensionality from the manifest via Build rather than trusting it.
	Dimensions int
	Chunks     []payloadChunk
}

type payloadChunk struct {
	ID             string
	Text           string
	SourcePlugin   string
	SourceID       string
	SourceURL      *string
	CreatedAt      *string
	UpdatedAt      *string
	PackName       string
	ChunkerPlugin  string
	ExtraJSON      []byte
	Vector         []float32
}

// Serialize encodes idx into the .vpack binary format: a 4-byte magic, a
// 1-byte version, a little-endian uint32 payload length, then the
// gob-encoded payload.
func Serialize(idx *Index) ([]byte, error) {
	manifestJSON, err := idx.manifest.JSON()
	if err != nil {
		return nil, vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to encode manifest", err)
	}

	p := payload{
		ManifestJSON: manifestJSON,
		Dimensions:   idx.dimensions,
		Chunks:       make([]payloadChunk, len(idx.chunks)),
	}
	for i, c := range idx.chunks {
		extraJSON, err := encodeExtra(c.Chunk.Metadata.Extra)
		if err != nil {
			return nil, vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to encode chunk metadata", err)
		}
		p.Chunks[i] = payloadChunk{
			ID:            c.Chunk.ID,
			Text:          c.Chunk.Text,
			SourcePlugin:  c.Chunk.Metadata.SourcePlugin,
			SourceID:      c.Chunk.Metadata.SourceID,
			SourceURL:     c.Chunk.Metadata.SourceURL,
			CreatedAt:     c.Chunk.Metadata.CreatedAt,
			UpdatedAt:     c.Chunk.Metadata.UpdatedAt,
			PackName:      c.Chunk.Metadata.PackName,
			ChunkerPlugin: c.Chunk.Metadata.ChunkerPlugin,
			ExtraJSON:     extraJSON,
			Vector:        c.Vector,
		}
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(p); err != nil {
		return nil, vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to encode payload", err)
	}

	out := make([]byte, 0, 4+1+4+body.Len())
	out = append(out, vpackMagic[:]...)
	out = append(out, vpackVersion)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(body.Len()))
	out = append(out, lenBuf[:]...)
	out = append(out, body.Bytes()...)

	return out, nil
}

// Deserialize decodes a .vpack artifact back into an Index. It reconstructs
// the embedded chunks and manifest, then reruns them through Build, so a
// corrupt or tampered artifact fails with the same EMPTY_INDEX,
// DIMENSION_MISMATCH, or UNKNOWN_MODEL errors a fresh Build call would
// produce rather than deserializing into an index whose invariants were
// never checked. The returned index is equivalent to the original modulo
// canonical JSON re-encoding of the manifest and any Extra metadata.
func Deserialize(data []byte) (*Index, error) {
	if len(data) < 4+1+4 {
		return nil, vpkerr.DeserializeFailed("truncated header")
	}
	if !bytes.Equal(data[:4], vpackMagic[:]) {
		return nil, vpkerr.DeserializeFailed("bad magic")
	}
	version := data[4]
	if version != vpackVersion {
		return nil, vpkerr.DeserializeFailed(fmt.Sprintf("unsupported version %d", version))
	}
	length := binary.LittleEndian.Uint32(data[5:9])
	if uint64(len(data)) < 9+uint64(length) {
		return nil, vpkerr.DeserializeFailed("truncated payload")
	}
	// Bytes past 9+length are a reserved appendix area and are tolerated;
	// only the framed payload_length prefix is decoded.
	body := data[9 : 9+length]

	var p payload
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&p); err != nil {
		return nil, vpkerr.DeserializeFailed("malformed payload: " + err.Error())
	}

	manifest, err := DecodeManifest(p.ManifestJSON)
	if err != nil {
		return nil, err
	}

	chunks := make([]EmbeddedChunk, len(p.Chunks))
	for i, pc := range p.Chunks {
		extra, err := decodeExtra(pc.ExtraJSON)
		if err != nil {
			return nil, vpkerr.DeserializeFailed("malformed chunk metadata: " + err.Error())
		}
		chunks[i] = EmbeddedChunk{
			Chunk: Chunk{
				ID:   pc.ID,
				Text: pc.Text,
				Metadata: ChunkMetadata{
					SourcePlugin:  pc.SourcePlugin,
					SourceID:      pc.SourceID,
					SourceURL:     pc.SourceURL,
					CreatedAt:     pc.CreatedAt,
					UpdatedAt:     pc.UpdatedAt,
					PackName:      pc.PackName,
					ChunkerPlugin: pc.ChunkerPlugin,
					Extra:         extra,
				},
			},
			Vector: pc.Vector,
		}
	}

	idx, err := Build(chunks, manifest)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func encodeExtra(extra map[string]any) ([]byte, error) {
	if extra == nil {
		return nil, nil
	}
	m := NewManifest(extra)
	return m.JSON()
}

func decodeExtra(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	manifest, err := DecodeManifest(raw)
	if err != nil {
		return nil, err
	}
	m, ok := manifest.Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("extra metadata is not an object")
	}
	return m, nil
}

// SaveFile writes idx to path as a .vpack artifact, atomically and safe for
// concurrent writers across processes: a cross-process exclusive lock
// (gofrs/flock) guards a temp-file-then-rename sequence, mirroring the
// store layer's on-disk persistence idiom.
func SaveFile(idx *Index, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to create directory", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to acquire write lock", err)
	}
	defer func() { warnOnCleanupFailure("unlock write lock", lock.Unlock()) }()

	data, err := Serialize(idx)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to write temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		warnOnCleanupFailure("remove stale temp file", os.Remove(tmpPath))
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to rename temp file", err)
	}
	return nil
}

// LoadFile reads and decodes a .vpack artifact from path.
func LoadFile(path string) (*Index, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, vpkerr.Wrap(vpkerr.CodeDeserializeFailed, "failed to acquire read lock", err)
	}
	defer func() { warnOnCleanupFailure("unlock read lock", lock.Unlock()) }()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vpkerr.Wrap(vpkerr.CodeDeserializeFailed, "failed to read file", err)
	}
	return Deserialize(data)
}

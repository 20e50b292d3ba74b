// Package annindex is an alternate, ANN-backed implementation of the same
// build/query contract pkg/vpack.Index exposes — a sub-linear substitute
// for large chunk counts that uses the same error taxonomy and query result
// contract as the exact-scan core. Its build-side validation is limited to
// vector lengths: it does not check dims against the manifest's embedder
// entry and accepts an empty index.
package annindex

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/vpackhq/vpack-go/internal/filter"
	"github.com/vpackhq/vpack-go/internal/vpkerr"
	"github.com/vpackhq/vpack-go/pkg/vpack"
)

// Index is a concurrency-safe, HNSW-backed approximate index. Unlike
// pkg/vpack.Index it supports incremental Add/Delete, trading the core
// engine's build-once immutability for sub-linear query time on large
// chunk counts; Query still honors the filter/score/sort/cutoff/truncate
// pipeline contract, with approximate rather than exact top-k recall.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	dims   int
	metric string

	chunks  map[uint64]vpack.EmbeddedChunk
	idMap   map[string]uint64
	nextKey uint64

	manifest vpack.Manifest
}

// gobChunk is EmbeddedChunk re-shaped for gob encoding: gob cannot encode a
// map[string]any's dynamic values without per-type registration, so Extra
// travels as a JSON blob instead, the same trick pkg/vpack's codec uses.
type gobChunk struct {
	ID            string
	Text          string
	SourcePlugin  string
	SourceID      string
	SourceURL     *string
	CreatedAt     *string
	UpdatedAt     *string
	PackName      string
	ChunkerPlugin string
	ExtraJSON     []byte
	Vector        []float32
}

func toGobChunk(c vpack.EmbeddedChunk) (gobChunk, error) {
	var extraJSON []byte
	if c.Chunk.Metadata.Extra != nil {
		raw, err := json.Marshal(c.Chunk.Metadata.Extra)
		if err != nil {
			return gobChunk{}, err
		}
		extraJSON = raw
	}
	return gobChunk{
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
	}, nil
}

func fromGobChunk(g gobChunk) (vpack.EmbeddedChunk, error) {
	var extra map[string]any
	if len(g.ExtraJSON) > 0 {
		if err := json.Unmarshal(g.ExtraJSON, &extra); err != nil {
			return vpack.EmbeddedChunk{}, err
		}
	}
	return vpack.EmbeddedChunk{
		Chunk: vpack.Chunk{
			ID:   g.ID,
			Text: g.Text,
			Metadata: vpack.ChunkMetadata{
				SourcePlugin:  g.SourcePlugin,
				SourceID:      g.SourceID,
				SourceURL:     g.SourceURL,
				CreatedAt:     g.CreatedAt,
				UpdatedAt:     g.UpdatedAt,
				PackName:      g.PackName,
				ChunkerPlugin: g.ChunkerPlugin,
				Extra:         extra,
			},
		},
		Vector: g.Vector,
	}, nil
}

// annMetadata is the gob-serializable sidecar persisted alongside the HNSW
// graph export.
type annMetadata struct {
	Chunks       map[uint64]gobChunk
	IDMap        map[string]uint64
	NextKey      uint64
	Dimensions   int
	Metric       string
	ManifestJSON []byte
}

// New constructs an empty ANN index for the given manifest. dims is the
// vector length Add and Query enforce; it is taken as given and is not
// compared with the dimensions the manifest's embedder entry declares.
func New(manifest vpack.Manifest, dims int) *Index {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &Index{
		graph:    graph,
		dims:     dims,
		metric:   "cos",
		chunks:   make(map[uint64]vpack.EmbeddedChunk),
		idMap:    make(map[string]uint64),
		manifest: manifest,
	}
}

// Add inserts or replaces embedded chunks. Replacing an existing ID orphans
// its old graph node rather than deleting it in place, avoiding a known
// coder/hnsw issue deleting a graph's last remaining node.
func (idx *Index) Add(chunks []vpack.EmbeddedChunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, c := range chunks {
		if len(c.Vector) != idx.dims {
			return vpkerr.DimensionMismatch(idx.dims, len(c.Vector))
		}
	}

	for _, c := range chunks {
		if oldKey, exists := idx.idMap[c.Chunk.ID]; exists {
			delete(idx.chunks, oldKey)
		}

		key := idx.nextKey
		idx.nextKey++

		vec := make([]float32, len(c.Vector))
		copy(vec, c.Vector)
		normalizeInPlace(vec)

		idx.graph.Add(hnsw.MakeNode(key, vec))
		idx.idMap[c.Chunk.ID] = key
		idx.chunks[key] = c
	}
	return nil
}

// Delete removes chunks by ID. Uses the same lazy-deletion idiom as Add's
// replace path: the graph node is orphaned, not excised.
func (idx *Index) Delete(ids []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		if key, exists := idx.idMap[id]; exists {
			delete(idx.chunks, key)
			delete(idx.idMap, id)
		}
	}
}

// Count returns the number of live (non-orphaned) chunks.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.idMap)
}

// Query performs an approximate nearest-neighbor search, then applies the
// same filter/min-score/top-k contract as pkg/vpack.Index.Query.
func (idx *Index) Query(queryVector []float32, opts vpack.QueryOptions) ([]vpack.QueryResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(queryVector) != idx.dims {
		return nil, vpkerr.DimensionMismatch(idx.dims, len(queryVector))
	}
	if len(idx.idMap) == 0 {
		return []vpack.QueryResult{}, nil
	}

	topK := opts.TopK
	if topK == 0 {
		topK = vpack.DefaultQueryOptions().TopK
	}

	q := make([]float32, len(queryVector))
	copy(q, queryVector)
	normalizeInPlace(q)

	// Over-fetch from the ANN graph since filtering may discard candidates;
	// searching for more than topK compensates without requiring an exact
	// scan.
	fetchK := topK * 4
	if fetchK < topK+16 {
		fetchK = topK + 16
	}
	if fetchK > len(idx.idMap) {
		fetchK = len(idx.idMap)
	}

	nodes := idx.graph.Search(q, fetchK)

	type candidate struct {
		chunk vpack.EmbeddedChunk
		score float32
	}
	candidates := make([]candidate, 0, len(nodes))
	for _, node := range nodes {
		c, ok := idx.chunks[node.Key]
		if !ok {
			continue // orphaned node
		}
		if opts.Filter != nil && !filter.Evaluate(c.Chunk.Metadata.Projection(), *opts.Filter) {
			continue
		}
		distance := idx.graph.Distance(q, node.Value)
		candidates = append(candidates, candidate{chunk: c, score: distanceToScore(distance)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if opts.MinScore != nil {
		filtered := candidates[:0]
		for _, c := range candidates {
			if c.score >= *opts.MinScore {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	if topK < len(candidates) {
		candidates = candidates[:topK]
	}

	results := make([]vpack.QueryResult, len(candidates))
	for rank, c := range candidates {
		results[rank] = vpack.QueryResult{
			Chunk: c.chunk.Chunk.Clone(),
			Score: c.score,
			Rank:  rank,
		}
		if opts.IncludeVectors {
			vec := make([]float32, len(c.chunk.Vector))
			copy(vec, c.chunk.Vector)
			results[rank].Vector = vec
		}
	}
	return results, nil
}

// Save persists the graph and its chunk/ID sidecar atomically, via a
// temp-file-then-rename sequence for each file.
func (idx *Index) Save(graphPath, metaPath string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tmpGraph := graphPath + ".tmp"
	f, err := os.Create(tmpGraph)
	if err != nil {
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to create graph file", err)
	}
	if err := idx.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmpGraph)
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to export graph", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpGraph)
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to close graph file", err)
	}
	if err := os.Rename(tmpGraph, graphPath); err != nil {
		os.Remove(tmpGraph)
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to rename graph file", err)
	}

	manifestJSON, err := idx.manifest.JSON()
	if err != nil {
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to encode manifest", err)
	}

	gobChunks := make(map[uint64]gobChunk, len(idx.chunks))
	for key, c := range idx.chunks {
		gc, err := toGobChunk(c)
		if err != nil {
			return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to encode chunk metadata", err)
		}
		gobChunks[key] = gc
	}

	meta := annMetadata{
		Chunks:       gobChunks,
		IDMap:        idx.idMap,
		NextKey:      idx.nextKey,
		Dimensions:   idx.dims,
		Metric:       idx.metric,
		ManifestJSON: manifestJSON,
	}

	tmpMeta := metaPath + ".tmp"
	mf, err := os.Create(tmpMeta)
	if err != nil {
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to create metadata file", err)
	}
	if err := gob.NewEncoder(mf).Encode(meta); err != nil {
		mf.Close()
		os.Remove(tmpMeta)
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to encode metadata", err)
	}
	if err := mf.Close(); err != nil {
		os.Remove(tmpMeta)
		return vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to close metadata file", err)
	}
	return os.Rename(tmpMeta, metaPath)
}

// Load restores an Index previously written by Save.
func Load(graphPath, metaPath string) (*Index, error) {
	mf, err := os.Open(metaPath)
	if err != nil {
		return nil, vpkerr.Wrap(vpkerr.CodeDeserializeFailed, "failed to open metadata file", err)
	}
	defer mf.Close()

	var meta annMetadata
	if err := gob.NewDecoder(mf).Decode(&meta); err != nil {
		return nil, vpkerr.Wrap(vpkerr.CodeDeserializeFailed, "failed to decode metadata", err)
	}

	manifest, verr := vpack.DecodeManifest(meta.ManifestJSON)
	if verr != nil {
		return nil, verr
	}

	chunks := make(map[uint64]vpack.EmbeddedChunk, len(meta.Chunks))
	for key, gc := range meta.Chunks {
		c, err := fromGobChunk(gc)
		if err != nil {
			return nil, vpkerr.Wrap(vpkerr.CodeDeserializeFailed, "malformed chunk metadata", err)
		}
		chunks[key] = c
	}

	idx := New(manifest, meta.Dimensions)
	idx.chunks = chunks
	idx.idMap = meta.IDMap
	idx.nextKey = meta.NextKey
	idx.metric = meta.Metric

	gf, err := os.Open(graphPath)
	if err != nil {
		return nil, vpkerr.Wrap(vpkerr.CodeDeserializeFailed, "failed to open graph file", err)
	}
	defer gf.Close()

	if err := idx.graph.Import(bufio.NewReader(gf)); err != nil {
		return nil, vpkerr.Wrap(vpkerr.CodeDeserializeFailed, "failed to import graph", err)
	}

	return idx, nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore converts coder/hnsw's cosine distance (0 identical, 2
// opposite) into the [−1, 1]-ish cosine similarity score pkg/vpack's exact
// scan produces, so approximate and exact results are comparable.
func distanceToScore(distance float32) float32 {
	return 1.0 - distance
}

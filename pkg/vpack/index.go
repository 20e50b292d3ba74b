package vpack

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vpackhq/vpack-go/internal/filter"
	"github.com/vpackhq/vpack-go/internal/vecmath"
	"github.com/vpackhq/vpack-go/internal/vpkerr"
)

// parallelQueryThreshold is the chunk count at or above which Query shards the
// filter+score pass across goroutines instead of scanning sequentially.
// Below this, goroutine setup cost dwarfs the scoring work it would save.
const parallelQueryThreshold = 4096

// Index is the immutable, in-memory, queryable vector index. It owns its
// chunk buffer exclusively; once built via Build or Deserialize, no method
// mutates it, so any number of goroutines may call Query concurrently
// without synchronization.
type Index struct {
	chunks     []EmbeddedChunk
	dimensions int
	manifest   Manifest
}

// Build validates a batch of embedded chunks against manifest and
// constructs an Index:
//  1. chunks must be non-empty (EMPTY_INDEX).
//  2. the manifest's embedder plugin must declare a valid dimensions field
//     (UNKNOWN_MODEL).
//  3. every chunk's vector must have length == dimensions (DIMENSION_MISMATCH).
//
// Build takes ownership of chunks; callers should not mutate the slice
// afterward.
func Build(chunks []EmbeddedChunk, manifest Manifest) (*Index, error) {
	if len(chunks) == 0 {
		return nil, vpkerr.EmptyIndex()
	}

	dims, verr := manifest.dimensions()
	if verr != nil {
		return nil, verr
	}

	for _, c := range chunks {
		if len(c.Vector) != dims {
			return nil, vpkerr.DimensionMismatch(dims, len(c.Vector))
		}
	}

	return &Index{chunks: chunks, dimensions: dims, manifest: manifest}, nil
}

// ChunkCount returns the number of chunks in the index.
func (idx *Index) ChunkCount() int { return len(idx.chunks) }

// Dimensions returns the index's vector dimensionality.
func (idx *Index) Dimensions() int { return idx.dimensions }

// Manifest returns the manifest the index was built with.
func (idx *Index) Manifest() Manifest { return idx.manifest }

// QueryOptions configures Query.
type QueryOptions struct {
	// TopK caps the number of returned results. Zero means "use the
	// default of 10"; there is no TopK value that requests zero results.
	TopK int
	// MinScore, if non-nil, drops any result scoring strictly below it.
	MinScore *float32
	// Filter, if non-nil, restricts matches to chunks whose metadata
	// satisfies the predicate.
	Filter *filter.Filter
	// IncludeVectors includes each result's original vector when true.
	IncludeVectors bool
}

// DefaultQueryOptions returns the default QueryOptions: TopK 10, no
// min-score cutoff, no filter, vectors excluded.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{TopK: 10}
}

// QueryResult is a single ranked match.
type QueryResult struct {
	Chunk  Chunk
	Score  float32
	Rank   int
	Vector []float32 // nil unless QueryOptions.IncludeVectors
}

type scored struct {
	score float32
	index int
}

// Query ranks the index's chunks against queryVector by cosine similarity,
// applying the optional filter, min-score cutoff, and top-K truncation.
func (idx *Index) Query(queryVector []float32, opts QueryOptions) ([]QueryResult, error) {
	if len(queryVector) != idx.dimensions {
		return nil, vpkerr.DimensionMismatch(idx.dimensions, len(queryVector))
	}

	topK := opts.TopK
	if topK == 0 {
		topK = DefaultQueryOptions().TopK
	}

	candidates := idx.scoreAll(queryVector, opts.Filter)

	sort.SliceStable(candidates, func(i, j int) bool {
		return less(candidates[i], candidates[j])
	})

	if opts.MinScore != nil {
		min := *opts.MinScore
		cut := len(candidates)
		for i, c := range candidates {
			if math.IsNaN(float64(c.score)) || c.score < min {
				cut = i
				break
			}
		}
		candidates = candidates[:cut]
	}

	if topK < len(candidates) {
		candidates = candidates[:topK]
	}

	results := make([]QueryResult, len(candidates))
	for rank, c := range candidates {
		chunk := idx.chunks[c.index]
		results[rank] = QueryResult{
			Chunk: chunk.Chunk.Clone(),
			Score: c.score,
			Rank:  rank,
		}
		if opts.IncludeVectors {
			vec := make([]float32, len(chunk.Vector))
			copy(vec, chunk.Vector)
			results[rank].Vector = vec
		}
	}

	return results, nil
}

// less implements the descending-score, insertion-index tie-break order:
// stable on ties, with NaN scores sorted after every finite score.
func less(a, b scored) bool {
	aNaN, bNaN := math.IsNaN(float64(a.score)), math.IsNaN(float64(b.score))
	switch {
	case aNaN && bNaN:
		return a.index < b.index
	case aNaN:
		return false
	case bNaN:
		return true
	case a.score != b.score:
		return a.score > b.score
	default:
		return a.index < b.index
	}
}

// scoreAll evaluates the optional filter and cosine score for every chunk,
// in stored order. For large indexes it shards the work across goroutines
// via errgroup; the merge preserves original insertion index per candidate
// so the subsequent stable sort's tie-break is unaffected by shard order.
func (idx *Index) scoreAll(queryVector []float32, f *filter.Filter) []scored {
	n := len(idx.chunks)
	if n < parallelQueryThreshold {
		return scoreRange(idx.chunks, queryVector, f, 0, n)
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	chunkSize := (n + workers - 1) / workers

	results := make([][]scored, workers)
	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		start := w * chunkSize
		if start >= n {
			continue
		}
		end := start + chunkSize
		if end > n {
			end = n
		}
		g.Go(func() error {
			results[w] = scoreRange(idx.chunks, queryVector, f, start, end)
			return nil
		})
	}
	_ = g.Wait() // scoreRange never errors; Wait only synchronizes.

	out := make([]scored, 0, n)
	for _, shard := range results {
		out = append(out, shard...)
	}
	return out
}

func scoreRange(chunks []EmbeddedChunk, queryVector []float32, f *filter.Filter, start, end int) []scored {
	out := make([]scored, 0, end-start)
	for i := start; i < end; i++ {
		c := chunks[i]
		if f != nil && !filter.Evaluate(c.Chunk.Metadata.Projection(), *f) {
			continue
		}
		out = append(out, scored{score: vecmath.Cosine(queryVector, c.Vector), index: i})
	}
	return out
}

package annindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpackhq/vpack-go/internal/filter"
	"github.com/vpackhq/vpack-go/pkg/vpack"
)

func testManifest() vpack.Manifest {
	return vpack.NewManifest(map[string]any{
		"plugins": []any{
			map[string]any{"kind": "embedder", "dimensions": 3.0},
		},
	})
}

func testChunk(id string, vector []float32, extra map[string]any) vpack.EmbeddedChunk {
	return vpack.EmbeddedChunk{
		Chunk: vpack.Chunk{
			ID:   id,
			Text: "text-" + id,
			Metadata: vpack.ChunkMetadata{
				SourcePlugin: "@vpack/source-fs",
				SourceID:     id,
				Extra:        extra,
			},
		},
		Vector: vector,
	}
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	idx := New(testManifest(), 3)
	err := idx.Add([]vpack.EmbeddedChunk{testChunk("a", []float32{1, 2}, nil)})
	require.Error(t, err)
}

func TestAddAndQueryFindsNearest(t *testing.T) {
	idx := New(testManifest(), 3)
	require.NoError(t, idx.Add([]vpack.EmbeddedChunk{
		testChunk("high", []float32{1, 0, 0}, nil),
		testChunk("low", []float32{0, 1, 0}, nil),
	}))

	results, err := idx.Query([]float32{1, 0, 0}, vpack.QueryOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "high", results[0].Chunk.ID)
}

func TestQueryOnEmptyIndexReturnsEmpty(t *testing.T) {
	idx := New(testManifest(), 3)
	results, err := idx.Query([]float32{1, 0, 0}, vpack.DefaultQueryOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteOrphansNode(t *testing.T) {
	idx := New(testManifest(), 3)
	require.NoError(t, idx.Add([]vpack.EmbeddedChunk{testChunk("a", []float32{1, 0, 0}, nil)}))
	assert.Equal(t, 1, idx.Count())
	idx.Delete([]string{"a"})
	assert.Equal(t, 0, idx.Count())
}

func TestQueryAppliesFilter(t *testing.T) {
	idx := New(testManifest(), 3)
	require.NoError(t, idx.Add([]vpack.EmbeddedChunk{
		testChunk("a", []float32{1, 0, 0}, map[string]any{"category": "finance"}),
		testChunk("b", []float32{1, 0, 0}, map[string]any{"category": "ops"}),
	}))

	f := filter.New("category", filter.OpEq, "ops")
	results, err := idx.Query([]float32{1, 0, 0}, vpack.QueryOptions{TopK: 10, Filter: &f})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Chunk.ID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx := New(testManifest(), 3)
	require.NoError(t, idx.Add([]vpack.EmbeddedChunk{
		testChunk("a", []float32{1, 0, 0}, map[string]any{"category": "finance"}),
	}))

	dir := t.TempDir()
	graphPath := filepath.Join(dir, "graph.bin")
	metaPath := filepath.Join(dir, "meta.bin")
	require.NoError(t, idx.Save(graphPath, metaPath))

	loaded, err := Load(graphPath, metaPath)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Count())

	results, err := loaded.Query([]float32{1, 0, 0}, vpack.DefaultQueryOptions())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "finance", results[0].Chunk.Metadata.Extra["category"])
}

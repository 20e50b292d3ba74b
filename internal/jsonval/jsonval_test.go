package jsonval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathNested(t *testing.T) {
	root := map[string]any{
		"metadata": map[string]any{
			"extra": map[string]any{
				"category": "finance",
			},
		},
	}

	v, ok := ResolvePath(root, "metadata.extra.category")
	require.True(t, ok)
	assert.Equal(t, "finance", v)
}

func TestResolvePathMissing(t *testing.T) {
	root := map[string]any{"a": map[string]any{"b": 1.0}}

	_, ok := ResolvePath(root, "a.c")
	assert.False(t, ok)

	_, ok = ResolvePath(root, "a.b.c") // descending through a non-object
	assert.False(t, ok)
}

func TestResolvePathNullIsPresent(t *testing.T) {
	root := map[string]any{"a": nil}
	v, ok := ResolvePath(root, "a")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestDeepEqualNumbers(t *testing.T) {
	assert.True(t, DeepEqual(float64(3), float64(3)))
	assert.True(t, DeepEqual([]any{1.0, "x"}, []any{1.0, "x"}))
	assert.False(t, DeepEqual([]any{1.0}, []any{2.0}))
}

func TestDeepEqualObjects(t *testing.T) {
	a := map[string]any{"x": 1.0, "y": "z"}
	b := map[string]any{"y": "z", "x": 1.0}
	assert.True(t, DeepEqual(a, b))

	c := map[string]any{"x": 1.0}
	assert.False(t, DeepEqual(a, c))
}

func TestAsFloat64(t *testing.T) {
	f, ok := AsFloat64(float64(5))
	assert.True(t, ok)
	assert.Equal(t, 5.0, f)

	_, ok = AsFloat64("5")
	assert.False(t, ok)
}

func TestContainsValue(t *testing.T) {
	assert.True(t, ContainsValue([]any{"a", "b"}, "a"))
	assert.False(t, ContainsValue([]any{"a", "b"}, "c"))
	assert.False(t, ContainsValue("not-an-array", "a"))
}

func TestDecodePreservesIntegerDimensions(t *testing.T) {
	v, err := Decode([]byte(`{"dimensions": 768}`))
	require.NoError(t, err)
	m := v.(map[string]any)
	assert.Equal(t, 768.0, m["dimensions"])
}

func TestEncodeIsSortedKeyCanonical(t *testing.T) {
	v := map[string]any{"b": 1.0, "a": 2.0}
	out, err := Encode(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(out))
}

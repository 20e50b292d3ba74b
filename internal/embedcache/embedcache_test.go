package embedcache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrLoadCachesOnMiss(t *testing.T) {
	c := New[string](4)
	calls := 0
	load := func() (string, error) {
		calls++
		return "handle", nil
	}

	h1, err := c.GetOrLoad("model-a", load)
	require.NoError(t, err)
	assert.Equal(t, "handle", h1)

	h2, err := c.GetOrLoad("model-a", load)
	require.NoError(t, err)
	assert.Equal(t, "handle", h2)
	assert.Equal(t, 1, calls)
}

func TestGetOrLoadPropagatesLoadError(t *testing.T) {
	c := New[string](4)
	_, err := c.GetOrLoad("model-a", func() (string, error) {
		return "", errors.New("load failed")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestRemoveEvicts(t *testing.T) {
	c := New[string](4)
	_, _ = c.GetOrLoad("model-a", func() (string, error) { return "handle", nil })
	assert.Equal(t, 1, c.Len())
	c.Remove("model-a")
	assert.Equal(t, 0, c.Len())
}

func TestZeroOrNegativeSizeCoercesToDefault(t *testing.T) {
	c := New[string](0)
	assert.NotNil(t, c.inner)
}

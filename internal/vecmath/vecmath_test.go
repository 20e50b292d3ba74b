package vecmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineIdentical(t *testing.T) {
	v := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-6)
}

func TestCosineOrthogonal(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-6)
}

func TestCosineAntiparallel(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	assert.InDelta(t, -1.0, Cosine(a, b), 1e-6)
}

func TestCosineZeroNormIsZeroNotNaN(t *testing.T) {
	zero := []float32{0, 0, 0}
	other := []float32{1, 2, 3}
	assert.Equal(t, float32(0), Cosine(zero, other))
	assert.Equal(t, float32(0), Cosine(zero, zero))
}

func TestEuclidean(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{3, 4}
	assert.InDelta(t, 5.0, Euclidean(a, b), 1e-6)
}

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	assert.InDelta(t, 32.0, Dot(a, b), 1e-6)
}

package vpkerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	a := DimensionMismatch(3, 4)
	b := DimensionMismatch(10, 20)

	assert.True(t, errors.Is(a, b), "two DIMENSION_MISMATCH errors should match by code")
	assert.False(t, errors.Is(a, EmptyIndex()))
}

func TestWrapNilCauseReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(CodeSerializeFailed, "x", nil))
}

func TestFormatHostError(t *testing.T) {
	err := EmptyIndex()
	assert.Equal(t, "EMPTY_INDEX|index is empty — call Build() before Query()", FormatHostError(err))
	assert.Equal(t, "", FormatHostError(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeUnknownModel, GetCode(UnknownModel("bad")))
	assert.Equal(t, Code(""), GetCode(errors.New("plain")))
}

package vpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpackhq/vpack-go/internal/modelregistry"
	"github.com/vpackhq/vpack-go/internal/vpkerr"
)

func TestFormatErrorEngineError(t *testing.T) {
	assert.Equal(t, "EMPTY_INDEX|index is empty — call Build() before Query()", FormatError(vpkerr.EmptyIndex()))
}

func TestFormatErrorNil(t *testing.T) {
	assert.Equal(t, "", FormatError(nil))
}

func TestBindAndVerifyModelIdentity(t *testing.T) {
	reg, err := modelregistry.Open("")
	require.NoError(t, err)
	defer reg.Close()

	require.NoError(t, BindModelIdentity(reg, "docs-pack", "bge-small", "hash1"))
	assert.NoError(t, VerifyModelIdentity(reg, "docs-pack", "bge-small", "hash1"))

	err = VerifyModelIdentity(reg, "docs-pack", "bge-large", "hash1")
	require.Error(t, err)
	assert.Equal(t, vpkerr.CodeModelMismatch, vpkerr.GetCode(err))
}

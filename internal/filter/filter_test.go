package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meta(fields map[string]any) any {
	return fields
}

func TestEqWithValue(t *testing.T) {
	m := meta(map[string]any{"source_plugin": "@vpack/source-fs"})
	f := New("source_plugin", OpEq, "@vpack/source-fs")
	assert.True(t, Evaluate(m, f))

	f2 := New("source_plugin", OpEq, "@vpack/source-notion")
	assert.False(t, Evaluate(m, f2))
}

func TestEqWithoutValueMeansMissing(t *testing.T) {
	m := meta(map[string]any{"a": 1.0})
	assert.True(t, Evaluate(m, NewWithoutValue("b", OpEq)))
	assert.False(t, Evaluate(m, NewWithoutValue("a", OpEq)))
}

func TestNeqWithoutValueMeansPresent(t *testing.T) {
	m := meta(map[string]any{"a": 1.0})
	assert.True(t, Evaluate(m, NewWithoutValue("a", OpNeq)))
	assert.False(t, Evaluate(m, NewWithoutValue("b", OpNeq)))
}

func TestNeqWithValue(t *testing.T) {
	m := meta(map[string]any{"category": "finance"})
	assert.False(t, Evaluate(m, New("category", OpNeq, "finance")))
	assert.True(t, Evaluate(m, New("category", OpNeq, "engineering")))
	assert.True(t, Evaluate(m, New("missing", OpNeq, "finance")))
}

func TestInRequiresArrayValue(t *testing.T) {
	m := meta(map[string]any{"category": "finance"})
	assert.True(t, Evaluate(m, New("category", OpIn, []any{"finance", "ops"})))
	assert.False(t, Evaluate(m, New("category", OpIn, []any{"engineering"})))
	assert.False(t, Evaluate(m, New("category", OpIn, "finance")))
	assert.False(t, Evaluate(m, New("missing", OpIn, []any{"finance"})))
}

func TestNinMissingIsFalse(t *testing.T) {
	m := meta(map[string]any{"category": "finance"})
	assert.False(t, Evaluate(m, New("missing", OpNin, []any{"finance"})))
	assert.True(t, Evaluate(m, New("category", OpNin, []any{"engineering"})))
	assert.False(t, Evaluate(m, New("category", OpNin, []any{"finance"})))
}

func TestGteLte(t *testing.T) {
	m := meta(map[string]any{"score": 5.0})
	assert.True(t, Evaluate(m, New("score", OpGte, 5.0)))
	assert.True(t, Evaluate(m, New("score", OpGte, 4.0)))
	assert.False(t, Evaluate(m, New("score", OpGte, 6.0)))
	assert.True(t, Evaluate(m, New("score", OpLte, 5.0)))
	assert.False(t, Evaluate(m, New("score", OpLte, 4.0)))
}

func TestGteFailsToProjectNonNumeric(t *testing.T) {
	m := meta(map[string]any{"name": "x"})
	assert.False(t, Evaluate(m, New("name", OpGte, 1.0)))
}

func TestExists(t *testing.T) {
	m := meta(map[string]any{"a": 1.0, "b": nil})
	assert.True(t, Evaluate(m, NewWithoutValue("a", OpExists)))
	assert.False(t, Evaluate(m, NewWithoutValue("b", OpExists))) // null is not "exists"
	assert.False(t, Evaluate(m, NewWithoutValue("c", OpExists)))
}

func TestEvaluateIdempotent(t *testing.T) {
	m := meta(map[string]any{"category": "finance"})
	f := New("category", OpEq, "finance")
	assert.Equal(t, Evaluate(m, f), Evaluate(m, f))
}

func TestUnmarshalRejectsUnknownOp(t *testing.T) {
	var f Filter
	err := json.Unmarshal([]byte(`{"field":"x","op":"bogus"}`), &f)
	assert.Error(t, err)
}

func TestUnmarshalWithoutValue(t *testing.T) {
	var f Filter
	require.NoError(t, json.Unmarshal([]byte(`{"field":"x","op":"exists"}`), &f))
	assert.False(t, f.hasValue)
}

func TestMarshalRoundTrip(t *testing.T) {
	f := New("category", OpIn, []any{"finance"})
	data, err := json.Marshal(f)
	require.NoError(t, err)

	var out Filter
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, f.Field, out.Field)
	assert.Equal(t, f.Op, out.Op)
	assert.True(t, out.hasValue)
}

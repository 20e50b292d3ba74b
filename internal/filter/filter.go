// Package filter evaluates a single structured metadata predicate against
// the dynamic JSON projection of a chunk's metadata.
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/vpackhq/vpack-go/internal/jsonval"
)

// Op is a metadata filter operator.
type Op string

const (
	OpEq     Op = "eq"
	OpNeq    Op = "neq"
	OpIn     Op = "in"
	OpNin    Op = "nin"
	OpGte    Op = "gte"
	OpLte    Op = "lte"
	OpExists Op = "exists"
)

// validOps is used by UnmarshalJSON to reject unknown operators at
// construction time — the filter deserializer's job, not the evaluator's.
var validOps = map[Op]bool{
	OpEq: true, OpNeq: true, OpIn: true, OpNin: true,
	OpGte: true, OpLte: true, OpExists: true,
}

// Filter is a single metadata predicate: {field, op, value?}.
type Filter struct {
	// Field is a dot-delimited path into the chunk's flattened metadata
	// projection, e.g. "source_plugin" or "category".
	Field string `json:"field"`
	Op    Op     `json:"op"`
	// Value is absent for some eq/neq/exists uses. Presence is recorded in
	// hasValue, not by Value being nil: a nil Value with hasValue set is an
	// explicit JSON null, valid for eq/neq against a null field.
	Value    any  `json:"value,omitempty"`
	hasValue bool // tracks whether Value was present in the source JSON
}

// UnmarshalJSON implements json.Unmarshaler, validating Op and recording
// whether Value was present (as opposed to defaulted to nil).
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field string          `json:"field"`
		Op    Op              `json:"op"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !validOps[raw.Op] {
		return fmt.Errorf("filter: unknown operator %q", raw.Op)
	}

	f.Field = raw.Field
	f.Op = raw.Op
	f.hasValue = len(raw.Value) > 0
	if f.hasValue {
		v, err := jsonval.Decode(raw.Value)
		if err != nil {
			return fmt.Errorf("filter: invalid value: %w", err)
		}
		f.Value = v
	} else {
		f.Value = nil
	}
	return nil
}

// MarshalJSON implements json.Marshaler, omitting "value" entirely when the
// filter was constructed without one (as opposed to with an explicit null).
func (f Filter) MarshalJSON() ([]byte, error) {
	if f.hasValue {
		return json.Marshal(struct {
			Field string `json:"field"`
			Op    Op     `json:"op"`
			Value any    `json:"value"`
		}{f.Field, f.Op, f.Value})
	}
	return json.Marshal(struct {
		Field string `json:"field"`
		Op    Op     `json:"op"`
	}{f.Field, f.Op})
}

// New builds a Filter programmatically (as opposed to via JSON
// unmarshaling), recording that value is present.
func New(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value, hasValue: true}
}

// NewWithoutValue builds a Filter with no value (valid for eq/neq/exists).
func NewWithoutValue(field string, op Op) Filter {
	return Filter{Field: field, Op: op, hasValue: false}
}

// Evaluate evaluates f against metadata, a dynamic JSON value tree rooted at
// the chunk's flattened metadata (fixed fields plus the flattened extra
// mapping).
func Evaluate(metadata any, f Filter) bool {
	value, present := jsonval.ResolvePath(metadata, f.Field)
	isMissing := !present

	switch f.Op {
	case OpEq:
		if f.hasValue {
			return present && jsonval.DeepEqual(value, f.Value)
		}
		return isMissing

	case OpNeq:
		if f.hasValue {
			return isMissing || !jsonval.DeepEqual(value, f.Value)
		}
		return present

	case OpIn:
		if !f.hasValue {
			return false
		}
		if _, ok := f.Value.([]any); !ok {
			return false
		}
		return present && jsonval.ContainsValue(f.Value, value)

	case OpNin:
		if !f.hasValue {
			return false
		}
		if _, ok := f.Value.([]any); !ok {
			return false
		}
		if isMissing {
			return false
		}
		return !jsonval.ContainsValue(f.Value, value)

	case OpGte:
		return compareNumeric(value, present, f.Value, f.hasValue, func(a, b float64) bool { return a >= b })

	case OpLte:
		return compareNumeric(value, present, f.Value, f.hasValue, func(a, b float64) bool { return a <= b })

	case OpExists:
		if isMissing {
			return false
		}
		return value != nil

	default:
		return false
	}
}

func compareNumeric(lhs any, lhsPresent bool, rhs any, rhsPresent bool, cmp func(a, b float64) bool) bool {
	if !lhsPresent || !rhsPresent {
		return false
	}
	a, aok := jsonval.AsFloat64(lhs)
	b, bok := jsonval.AsFloat64(rhs)
	if !aok || !bok {
		return false
	}
	return cmp(a, b)
}

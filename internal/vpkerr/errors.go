package vpkerr

import (
	"errors"
	"fmt"
)

// Error is the structured error type for the VPack engine. It implements the
// standard error interface and supports errors.Is/errors.As by comparing
// codes.
type Error struct {
	// Code is one of the fixed VPack error codes.
	Code Code

	// Message is the human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap supports errors.Is/errors.As chaining to the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error with the given code, wrapping cause. Returns nil if
// cause is nil.
func Wrap(code Code, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: cause}
}

// DimensionMismatch builds a CodeDimensionMismatch error with the expected
// and actual vector lengths baked into the message.
func DimensionMismatch(expected, got int) *Error {
	return New(CodeDimensionMismatch, fmt.Sprintf(
		"dimension mismatch: index expects %dd vectors, got %dd", expected, got))
}

// ModelMismatch builds a CodeModelMismatch error.
func ModelMismatch(expected, got string) *Error {
	return New(CodeModelMismatch, fmt.Sprintf(
		"model mismatch: index built with %q, query uses %q — results would be meaningless. This is a hard error, not a warning.",
		expected, got))
}

// EmptyIndex builds a CodeEmptyIndex error.
func EmptyIndex() *Error {
	return New(CodeEmptyIndex, "index is empty — call Build() before Query()")
}

// ModelHashMismatch builds a CodeModelHashMismatch error.
func ModelHashMismatch(model, expected, got string) *Error {
	return New(CodeModelHashMismatch, fmt.Sprintf(
		"model hash mismatch for %q: manifest pins %s, local weights hash to %s", model, expected, got))
}

// UnknownModel builds a CodeUnknownModel error.
func UnknownModel(message string) *Error {
	return New(CodeUnknownModel, message)
}

// SerializeFailed builds a CodeSerializeFailed error.
func SerializeFailed(cause error) *Error {
	return Wrap(CodeSerializeFailed, fmt.Sprintf("serialization failed: %v", cause), cause)
}

// DeserializeFailed builds a CodeDeserializeFailed error.
func DeserializeFailed(message string) *Error {
	return New(CodeDeserializeFailed, fmt.Sprintf("invalid .vpack file: %s", message))
}

// GetCode extracts the code from err, if it is (or wraps) a *Error.
// Returns an empty Code if err is not a *Error.
func GetCode(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// FormatHostError renders err as the "{CODE}|{message}" string host bindings
// use when marshaling errors across a foreign-function boundary. Non-*Error
// values are rendered with an empty code.
func FormatHostError(err error) string {
	if err == nil {
		return ""
	}
	if ae, ok := err.(*Error); ok {
		return fmt.Sprintf("%s|%s", ae.Code, ae.Message)
	}
	return fmt.Sprintf("|%s", err.Error())
}

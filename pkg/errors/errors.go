// Package errors provides structured error types for skeleplex.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the library and the CLI
//   - Machine-readable error codes for programmatic handling
//   - A small set of categories (validation, not found, serialization,
//     numeric) that callers can branch on without knowing every code
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Each code belongs to exactly one [Category]:
//   - validation: malformed input paths, short point sequences, bad options,
//     duplicate discriminator registrations
//   - not_found: missing nodes, edges or files
//   - serialization: unknown discriminators, reserved key collisions
//   - numeric: arc-length inversion that does not converge, degenerate curves
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidPath, "edge %d has %d points", i, n)
//	if errors.IsValidation(err) {
//	    // Handle bad input
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDecodeFailed, origErr, "read %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Validation errors
	ErrCodeInvalidInput           Code = "INVALID_INPUT"
	ErrCodeInvalidPath            Code = "INVALID_PATH"
	ErrCodeInvalidOption          Code = "INVALID_OPTION"
	ErrCodeFitFailed              Code = "FIT_FAILED"
	ErrCodeDuplicateDiscriminator Code = "DUPLICATE_DISCRIMINATOR"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeNodeNotFound Code = "NODE_NOT_FOUND"
	ErrCodeEdgeNotFound Code = "EDGE_NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Serialization errors
	ErrCodeUnknownDiscriminator Code = "UNKNOWN_DISCRIMINATOR"
	ErrCodeReservedKey          Code = "RESERVED_KEY"
	ErrCodeDecodeFailed         Code = "DECODE_FAILED"

	// Numeric errors
	ErrCodeNoConvergence   Code = "NO_CONVERGENCE"
	ErrCodeDegenerateCurve Code = "DEGENERATE_CURVE"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Category groups codes into the four failure families callers care about.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryNotFound      Category = "not_found"
	CategorySerialization Category = "serialization"
	CategoryNumeric       Category = "numeric"
	CategoryInternal      Category = "internal"
)

var categories = map[Code]Category{
	ErrCodeInvalidInput:           CategoryValidation,
	ErrCodeInvalidPath:            CategoryValidation,
	ErrCodeInvalidOption:          CategoryValidation,
	ErrCodeFitFailed:              CategoryValidation,
	ErrCodeDuplicateDiscriminator: CategoryValidation,

	ErrCodeNotFound:     CategoryNotFound,
	ErrCodeNodeNotFound: CategoryNotFound,
	ErrCodeEdgeNotFound: CategoryNotFound,
	ErrCodeFileNotFound: CategoryNotFound,

	ErrCodeUnknownDiscriminator: CategorySerialization,
	ErrCodeReservedKey:          CategorySerialization,
	ErrCodeDecodeFailed:         CategorySerialization,

	ErrCodeNoConvergence:   CategoryNumeric,
	ErrCodeDegenerateCurve: CategoryNumeric,

	ErrCodeInternal: CategoryInternal,
}

// CategoryOf returns the category of a code. Unknown codes are internal.
func CategoryOf(code Code) Category {
	if c, ok := categories[code]; ok {
		return c
	}
	return CategoryInternal
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Category returns the category of the error's code.
func (e *Error) Category() Category {
	return CategoryOf(e.Code)
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetCategory returns the category of the outermost *Error in the chain,
// or the empty category when err carries no code.
func GetCategory(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category()
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return GetCategory(err) == CategoryValidation }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return GetCategory(err) == CategoryNotFound }

// IsSerialization reports whether err is a serialization failure.
func IsSerialization(err error) bool { return GetCategory(err) == CategorySerialization }

// IsNumeric reports whether err is a numeric failure.
func IsNumeric(err error) bool { return GetCategory(err) == CategoryNumeric }

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

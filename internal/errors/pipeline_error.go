// Package errors provides the typed error taxonomy for pipeline operations.
// Every failure carries a Kind so callers can tell a missing input file apart
// from a malformed table or an unwritable destination with errors.Is.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindInternal Kind = iota
	KindMissingInput
	KindSchema
	KindIO
	KindDataIntegrity
	KindInvalidInput
)

// String returns the taxonomy name used in messages and logs.
func (k Kind) String() string {
	switch k {
	case KindMissingInput:
		return "MissingInputError"
	case KindSchema:
		return "SchemaError"
	case KindIO:
		return "IOError"
	case KindDataIntegrity:
		return "DataIntegrityError"
	case KindInvalidInput:
		return "InvalidInputError"
	default:
		return "InternalError"
	}
}

// PipelineError represents a failure in one pipeline operation.
type PipelineError struct {
	Kind    Kind
	Op      string // Operation name (e.g., "load", "join", "persist")
	Path    string // File path if applicable
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	switch {
	case e.Column != "":
		msg += fmt.Sprintf(" on column '%s'", e.Column)
	case e.Path != "":
		msg += fmt.Sprintf(" for %s", e.Path)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error wrapping support
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches sentinels by kind and fully-specified errors field by field.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	if t.Op == "" && t.Column == "" && t.Path == "" && t.Message == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op && e.Column == t.Column && e.Path == t.Path && e.Message == t.Message
}

// Sentinels for errors.Is checks by kind.
var (
	ErrMissingInput  = &PipelineError{Kind: KindMissingInput}
	ErrSchema        = &PipelineError{Kind: KindSchema}
	ErrIO            = &PipelineError{Kind: KindIO}
	ErrDataIntegrity = &PipelineError{Kind: KindDataIntegrity}
	ErrInvalidInput  = &PipelineError{Kind: KindInvalidInput}
)

// KindOf returns the kind of the first PipelineError in err's chain.
func KindOf(err error) Kind {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// NewMissingInputError reports a required input that is absent or unreadable.
func NewMissingInputError(op, path string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindMissingInput,
		Op:      op,
		Path:    path,
		Message: "required input is missing or unreadable",
		Cause:   cause,
	}
}

// NewSchemaError reports a malformed or missing key column.
func NewSchemaError(op, column, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindSchema,
		Op:      op,
		Column:  column,
		Message: message,
	}
}

// NewColumnNotFoundError creates an error for operations on non-existent columns
func NewColumnNotFoundError(op, column string) *PipelineError {
	return NewSchemaError(op, column, "column does not exist")
}

// NewIOError reports a file that could not be read, created or written.
func NewIOError(op, path string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindIO,
		Op:      op,
		Path:    path,
		Message: "file operation failed",
		Cause:   cause,
	}
}

// NewDataIntegrityError reports row-count or ordering violations.
func NewDataIntegrityError(op, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindDataIntegrity,
		Op:      op,
		Message: message,
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindInvalidInput,
		Op:      op,
		Message: message,
	}
}

// NewUnsupportedTypeError creates an error for unsupported data types
func NewUnsupportedTypeError(op, column, typeName string) *PipelineError {
	return &PipelineError{
		Kind:    KindInvalidInput,
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("unsupported type: %s", typeName),
	}
}

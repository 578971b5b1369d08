// Package errors provides categorized errors for image directory operations.
//
// Every error produced by the layout and layers packages is a *BuildError
// carrying the failed operation, the filesystem path involved (when there is
// one), and the underlying cause. Callers can branch on the category or
// unwrap the cause with the standard errors package.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents different categories of errors for better handling
type ErrorCategory string

const (
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryFilesystem    ErrorCategory = "filesystem"
	ErrorCategorySerialization ErrorCategory = "serialization"
	ErrorCategoryArchive       ErrorCategory = "archive"
)

// BuildError represents an error with categorization and path context
type BuildError struct {
	Category  ErrorCategory `json:"category"`
	Operation string        `json:"operation,omitempty"`
	Path      string        `json:"path,omitempty"`
	Message   string        `json:"message"`
	Cause     error         `json:"-"`
}

// Error implements the error interface
func (e *BuildError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s %s: %s", e.Category, e.Operation, e.Path, msg)
	}
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Category, e.Operation, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Category, msg)
}

// Unwrap returns the underlying error
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates an error for content that fails validation,
// such as an unrecognized layout version. The observed value belongs in msg.
func NewValidationError(operation, path, msg string) *BuildError {
	return &BuildError{
		Category:  ErrorCategoryValidation,
		Operation: operation,
		Path:      path,
		Message:   msg,
	}
}

// NewFilesystemError creates an error for a failed filesystem operation,
// attaching the offending path for diagnosis.
func NewFilesystemError(operation, path string, cause error) *BuildError {
	return &BuildError{
		Category:  ErrorCategoryFilesystem,
		Operation: operation,
		Path:      path,
		Cause:     cause,
	}
}

// NewSerializationError creates an error for a value that cannot be encoded
func NewSerializationError(operation string, cause error) *BuildError {
	return &BuildError{
		Category:  ErrorCategorySerialization,
		Operation: operation,
		Cause:     cause,
	}
}

// NewArchiveError creates an error for a failure while walking or archiving
// a filesystem tree.
func NewArchiveError(operation, path string, cause error) *BuildError {
	return &BuildError{
		Category:  ErrorCategoryArchive,
		Operation: operation,
		Path:      path,
		Cause:     cause,
	}
}

// CategoryOf returns the category of err, or the empty category if err is
// not a *BuildError.
func CategoryOf(err error) ErrorCategory {
	var be *BuildError
	if stderrors.As(err, &be) {
		return be.Category
	}
	return ErrorCategory("")
}

package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrRejected          = errors.New("no tickets available")
	ErrNotFound          = errors.New("ticket not found")
	ErrTransientConflict = errors.New("transient conflict, retry")
	ErrStorageFailure    = errors.New("storage failure")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field level detail and matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(fields ...FieldError) *ValidationError {
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// storageError wraps a driver error so callers can match ErrStorageFailure
// while still reaching the cause.
type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageFailure, e.op, e.err)
}

func (e *storageError) Unwrap() []error {
	return []error{ErrStorageFailure, e.err}
}

// StorageFailure tags err as a failed unit of work.
func StorageFailure(op string, err error) error {
	return &storageError{op: op, err: err}
}

// Kind names the error class for logs and metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransientConflict):
		return "conflict"
	default:
		return "storage"
	}
}

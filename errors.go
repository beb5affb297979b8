package sealfs

import (
	"errors"
	"fmt"
)

// Sentinel errors. Operations wrap these with fmt.Errorf("...: %w", ...)
// where extra context helps, so callers should test with errors.Is.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNilConfig          = errors.New("config cannot be nil")
	ErrNotSealedFile      = errors.New("not a sealed container file")
	ErrUnsupportedVersion = errors.New("unsupported container version")
	ErrModeMismatch       = errors.New("container protection mode does not match open mode")
	ErrNameMismatch       = errors.New("container is bound to a different file name")
	ErrNameTooLong        = errors.New("file name too long")
	ErrCorrupted          = errors.New("container corrupted")
	ErrCryptoFailure      = errors.New("cryptographic operation failed")
	ErrFlushFailed        = errors.New("flush failed")
	ErrWriteToDiskFailed  = errors.New("write to disk failed")
	ErrMemoryCorrupted    = errors.New("in-memory file state corrupted")
	ErrFileClosed         = errors.New("file is closed")
	ErrFileNotInitialized = errors.New("file is not initialized")
	ErrReadOnly           = errors.New("file opened read-only")
	ErrRecoveryNeeded     = errors.New("recovery journal replay needed")
)

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IOError represents a host filesystem I/O error
type IOError struct {
	Operation string // "read", "write", "seek", "open", "sync", etc.
	Path      string // Host file path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptionError represents an integrity check failure on a container
// node. It always matches errors.Is(err, ErrCorrupted).
type CorruptionError struct {
	Path    string // Container path
	Node    uint64 // Physical node number
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *CorruptionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("corruption error: %s (node %d): %s", e.Path, e.Node, e.Message)
	}
	return fmt.Sprintf("corruption error: node %d: %s", e.Node, e.Message)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewCorruptionError creates a new corruption error for a physical node
func NewCorruptionError(path string, node uint64, message string) error {
	return &CorruptionError{
		Path:    path,
		Node:    node,
		Message: message,
		Err:     ErrCorrupted,
	}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsCorruptionError checks if an error is a corruption error
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

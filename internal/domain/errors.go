package domain

import (
	"errors"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrValidation = errors.New("validation failed")

	// ErrCalculationTimeout indicates a subtree aggregation exceeded the
	// database statement timeout. Callers should surface it as retryable
	// rather than treating the run as corrupt.
	ErrCalculationTimeout = errors.New("folder calculation timed out")
)

// CalculationTimeoutError carries the folder whose aggregation was cancelled
// by the database statement timeout.
type CalculationTimeoutError struct {
	FolderUUID string
}

// Error implements the error interface
func (e *CalculationTimeoutError) Error() string {
	return "calculation timed out for folder " + e.FolderUUID
}

// Is allows errors.Is() to match against ErrCalculationTimeout
func (e *CalculationTimeoutError) Is(target error) bool {
	return target == ErrCalculationTimeout
}

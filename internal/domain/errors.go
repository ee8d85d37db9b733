package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the fusion engine. Callers match with errors.Is.
var (
	// ErrSchema marks a malformed or missing observation field. Surfaced to
	// the caller, not recoverable locally.
	ErrSchema = errors.New("schema error")

	// ErrUnknownCategory marks a categorical value outside the trained
	// encoder's domain. Never silently zero-filled.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInsufficientData aborts training when the corpus is too small or
	// imbalanced to fit a component. No partial state is committed.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrStateMismatch aborts an artifact import whose bundle is partial or
	// internally inconsistent. The previously active state remains live.
	ErrStateMismatch = errors.New("state mismatch")
)

// SchemaErrorf wraps ErrSchema with field context.
func SchemaErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

// UnknownCategoryErrorf wraps ErrUnknownCategory with the offending value.
func UnknownCategoryErrorf(feature, value string) error {
	return fmt.Errorf("%w: %s=%q not seen during training", ErrUnknownCategory, feature, value)
}

package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Fit failures
	ErrNotEnoughData              = errors.New("not enough valid rows to fit")
	ErrIdenticalIndependentValues = errors.New("independent variable has identical values")
	ErrIdenticalFieldSelection    = errors.New("independent and dependent fields are the same")
	ErrNoFieldSelected            = errors.New("independent and dependent fields must be selected")
	ErrNonFiniteFit               = errors.New("fit statistics are not finite")

	// Table edit failures
	ErrInvalidColumnOperation = errors.New("invalid column operation")
	ErrColumnNotFound         = fmt.Errorf("%w: column not found", ErrInvalidColumnOperation)
	ErrRowOutOfRange          = errors.New("row index out of range")

	// Viewport and tab failures
	ErrInvalidViewport = errors.New("invalid viewport operation")
	ErrInvalidTab      = errors.New("unknown tab")

	// Registry and snapshot failures
	ErrNotFound        = errors.New("resource not found")
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)
	ErrInvalidSnapshot = errors.New("invalid session snapshot")
)

// Stable error codes exposed to the presentation layer.
const (
	CodeNotEnoughData          = "NOT_ENOUGH_DATA"
	CodeIdenticalX             = "IDENTICAL_X_VALUES"
	CodeSameVariables          = "SAME_VARIABLES"
	CodeMissingFields          = "MISSING_FIELDS"
	CodeNumericOverflow        = "NUMERIC_OVERFLOW"
	CodeInvalidColumnOperation = "INVALID_COLUMN_OPERATION"
	CodeRowOutOfRange          = "ROW_OUT_OF_RANGE"
	CodeInvalidViewport        = "INVALID_VIEWPORT"
	CodeInvalidTab             = "INVALID_TAB"
	CodeSessionNotFound        = "SESSION_NOT_FOUND"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidSnapshot        = "INVALID_SNAPSHOT"
	CodeUnknown                = "UNKNOWN"
)

// CodeOf classifies err into a stable code. Wrapped errors are unwrapped.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotEnoughData):
		return CodeNotEnoughData
	case errors.Is(err, ErrIdenticalIndependentValues):
		return CodeIdenticalX
	case errors.Is(err, ErrIdenticalFieldSelection):
		return CodeSameVariables
	case errors.Is(err, ErrNoFieldSelected):
		return CodeMissingFields
	case errors.Is(err, ErrNonFiniteFit):
		return CodeNumericOverflow
	case errors.Is(err, ErrInvalidColumnOperation):
		return CodeInvalidColumnOperation
	case errors.Is(err, ErrRowOutOfRange):
		return CodeRowOutOfRange
	case errors.Is(err, ErrInvalidViewport):
		return CodeInvalidViewport
	case errors.Is(err, ErrInvalidTab):
		return CodeInvalidTab
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidSnapshot):
		return CodeInvalidSnapshot
	default:
		return CodeUnknown
	}
}

// Error constructors with context
func NewColumnError(column string, reason string) error {
	return fmt.Errorf("%w: column %q %s", ErrInvalidColumnOperation, column, reason)
}

func NewRowRangeError(index, rowCount int) error {
	return fmt.Errorf("%w: index %d, row count %d", ErrRowOutOfRange, index, rowCount)
}

func NewViewportError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidViewport, reason)
}

func NewSessionNotFoundError(id SessionID) error {
	return fmt.Errorf("%w with id %s", ErrSessionNotFound, id)
}

func NewNotFoundError(kind, key string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, key)
}

func NewSnapshotError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSnapshot, reason)
}

// Error checking helpers
func IsFitError(err error) bool {
	return errors.Is(err, ErrNotEnoughData) ||
		errors.Is(err, ErrIdenticalIndependentValues) ||
		errors.Is(err, ErrIdenticalFieldSelection) ||
		errors.Is(err, ErrNoFieldSelected) ||
		errors.Is(err, ErrNonFiniteFit)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

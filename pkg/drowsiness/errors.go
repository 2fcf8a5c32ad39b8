package drowsiness

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrDegenerateGeometry is returned when an eye has no usable horizontal
	// span (coincident corners) or non-finite coordinates.
	ErrDegenerateGeometry = errors.New("drowsiness: degenerate eye geometry")

	// ErrInvalidConfig is wrapped by every ConfigError.
	ErrInvalidConfig = errors.New("drowsiness: invalid configuration")

	// ErrUnknownPreset is returned by Preset for names it does not know.
	ErrUnknownPreset = errors.New("drowsiness: unknown preset")
)

// ConfigError describes a rejected configuration value.
type ConfigError struct {
	// Field is the JSON name of the offending field.
	Field string

	// Value is the rejected value.
	Value any

	// Reason says what the field must satisfy.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("drowsiness: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidConfig so callers can match with errors.Is.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

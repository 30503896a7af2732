package db

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized is returned by any operation invoked before Initialize
	// or after Close.
	ErrNotInitialized = errors.New("storage not initialized")

	// ErrConflict is returned when a write would violate a uniqueness rule.
	ErrConflict = errors.New("storage conflict")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidObservationType is returned for observation types outside the known set.
	ErrInvalidObservationType = errors.New("invalid observation type")

	// ErrInvalidArgument is returned when a required argument is missing or out of range.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ConfigError reports an invalid or incomplete adapter selection.
// It is returned at construction time, before any I/O.
type ConfigError struct {
	Adapter string   // adapter being configured, if known
	Field   string   // configuration key at fault
	Value   string   // offending value
	Valid   []string // accepted values, if enumerable
	Hint    string   // actionable remedy
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	if e.Adapter != "" {
		b.WriteString(e.Adapter)
		b.WriteString(" adapter: ")
	}
	if e.Value != "" {
		fmt.Fprintf(&b, "invalid %s %q", e.Field, e.Value)
	} else {
		fmt.Fprintf(&b, "missing %s", e.Field)
	}
	if len(e.Valid) > 0 {
		fmt.Fprintf(&b, " (available: %s)", strings.Join(e.Valid, ", "))
	}
	if e.Hint != "" {
		b.WriteString(": ")
		b.WriteString(e.Hint)
	}
	return b.String()
}

// NotInitialized returns ErrNotInitialized annotated with the backend name.
func NotInitialized(backend string) error {
	return fmt.Errorf("%s: %w (call Initialize first)", backend, ErrNotInitialized)
}

// InvalidObservationType returns ErrInvalidObservationType annotated with the value.
func InvalidObservationType(value string) error {
	return fmt.Errorf("%w %q", ErrInvalidObservationType, value)
}

// InvalidArgument returns ErrInvalidArgument annotated with a description.
func InvalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

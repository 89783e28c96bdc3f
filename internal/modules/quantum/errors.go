package quantum

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyVocabulary marks lookups against a tokenizer that has not been trained.
	// Callers recover with a fallback id or an empty result; it is only surfaced in logs.
	ErrEmptyVocabulary = errors.New("vocabulary is empty")

	// ErrDegenerateState marks a normalization of a (near) zero vector.
	// The register recovers by resetting to |0...0>.
	ErrDegenerateState = errors.New("degenerate quantum state")

	// ErrStaleCache marks a tokenizer loaded without a usable entanglement artifact.
	// The tokenizer recovers by rebuilding the matrix.
	ErrStaleCache = errors.New("entanglement cache missing or stale")

	// ErrInvalidQubit is wrapped by errors for qubit indices outside the register.
	ErrInvalidQubit = errors.New("invalid qubit index")

	// ErrDimensionMismatch is returned when a vector does not fit the register.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// ConfigurationError reports an invalid construction parameter.
type ConfigurationError struct {
	Field  string
	Value  interface{}
	Reason string
	Err    error // optional sentinel kind, e.g. ErrInvalidQubit
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s=%v: %v: %s", e.Field, e.Value, e.Err, e.Reason)
	}
	return fmt.Sprintf("invalid %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap exposes the sentinel kind to errors.Is
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError
func NewConfigurationError(field string, value interface{}, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

// IsConfigurationError reports whether err (or anything it wraps) is a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

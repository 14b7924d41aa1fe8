// ABOUTME: Error types for decoding, validating, and rendering visualization specs.
// ABOUTME: Unknown variants surface as UnsupportedVariantError instead of a silent no-op.

package viz

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks a payload that is not a well-formed spec envelope.
	ErrMalformed = errors.New("viz: malformed spec")
	// ErrNoJSONObject is returned when generator text contains no JSON object.
	ErrNoJSONObject = errors.New("viz: no JSON object in output")
)

// UnsupportedVariantError is returned for a component name outside the known variants.
type UnsupportedVariantError struct {
	Kind Kind
}

func (e *UnsupportedVariantError) Error() string {
	if e.Kind == "" {
		return "viz: empty visualization spec"
	}
	return fmt.Sprintf("viz: unsupported variant %q", string(e.Kind))
}

// ValidationError explains why a decoded spec was rejected.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("viz: invalid %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("viz: invalid %s: %s %s", e.Kind, e.Field, e.Reason)
}

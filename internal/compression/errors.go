package compression

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrDuplicateAlgorithm = errors.New("duplicate algorithm name")
	ErrRegistrySealed     = errors.New("initialization registry already consumed")
	ErrInvalidParam       = errors.New("invalid algorithm parameter")
	ErrNoRegistry         = errors.New("no algorithm registry")
)

// UnknownAlgorithmError reports a configuration entry naming an
// algorithm the registry cannot build.
type UnknownAlgorithmError struct {
	Name  string   // Offending configuration key
	Known []string // Registered algorithm names
}

// Error implements the error interface.
func (e *UnknownAlgorithmError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown compression algorithm %q", e.Name)
	}
	return fmt.Sprintf("unknown compression algorithm %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// MissingInitializationError reports a calibration resource that an
// algorithm mandates but the InitRegistry does not hold.
type MissingInitializationError struct {
	Algorithm string
	Kind      InitKind
}

// Error implements the error interface.
func (e *MissingInitializationError) Error() string {
	return fmt.Sprintf("algorithm %q requires %q initialization data, none attached", e.Algorithm, e.Kind)
}

// InvalidStateError reports an operation invoked outside its legal window.
type InvalidStateError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state for %s: %s", e.Op, e.Reason)
}

// DistributedSetupError reports which algorithm failed its distributed
// adaptation. Algorithms converted before it stay converted.
type DistributedSetupError struct {
	Algorithm string
	Converted []string // Algorithms converted before the failure
	Err       error
}

// Error implements the error interface.
func (e *DistributedSetupError) Error() string {
	return fmt.Sprintf("distributed setup failed for algorithm %q (already converted: [%s]): %v",
		e.Algorithm, strings.Join(e.Converted, ", "), e.Err)
}

// Unwrap returns the algorithm's own error.
func (e *DistributedSetupError) Unwrap() error {
	return e.Err
}

// paramError wraps ErrInvalidParam with the offending key.
func paramError(key string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidParam, key, fmt.Sprintf(format, args...))
}

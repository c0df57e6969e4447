// Package engerr defines the engine's structured error hierarchy.
//
// The teacher repo wraps errors ad hoc with fmt.Errorf("...: %w", err) and
// returns []error from validators (see period_service.go's ValidateHierarchy).
// That convention is kept here for wrapping, but callers also need to
// recover a *kind* of failure (cyclic dependency vs. unbound variable vs.
// unknown metric) without parsing messages, so every error the engine
// returns is a *EngineError carrying one of the kinds below.
package engerr

import "fmt"

// Kind classifies an EngineError into one of the families spec §7 names.
type Kind string

const (
	// GraphStructure
	KindDuplicateVertex   Kind = "DuplicateVertex"
	KindUnknownVertex     Kind = "UnknownVertex"
	KindCyclicDependency  Kind = "CyclicDependency"
	KindMissingInput      Kind = "MissingInput"
	KindInvalidPeriod     Kind = "InvalidPeriod"

	// Calculation
	KindUnboundVariable Kind = "UnboundVariable"
	KindDivisionByZero  Kind = "DivisionByZero"
	KindStrategyMismatch Kind = "StrategyMismatch"
	KindMissingValue    Kind = "MissingValue"

	// Registry
	KindUnknownMetric         Kind = "UnknownMetric"
	KindUnknownStrategy       Kind = "UnknownStrategy"
	KindDuplicateRegistration Kind = "DuplicateRegistration"

	// Adjustment
	KindInvalidAdjustment Kind = "InvalidAdjustment"

	// Forecast
	KindUnknownForecastStrategy Kind = "UnknownForecastStrategy"
	KindInvalidHorizon          Kind = "InvalidHorizon"

	// Serialization
	KindChecksumMismatch Kind = "ChecksumMismatch"
	KindSchemaError      Kind = "SchemaError"
	KindUnsupportedVersion Kind = "UnsupportedVersion"
)

// EngineError is the single root error type every engine package returns.
// Context carries offending-vertex/period/cycle-path style detail; it is
// deliberately a map rather than per-kind structs so call sites can add a
// field without widening the type's API.
type EngineError struct {
	Kind    Kind
	Message string
	Context map[string]any
	cause   error
}

func (e *EngineError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.cause }

// New builds an EngineError with no wrapped cause.
func New(kind Kind, format string, args ...any) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an EngineError that unwraps to cause.
func Wrap(kind Kind, cause error, format string, args ...any) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithContext returns e with a context field set, for chaining at the call site:
//
//	return nil, engerr.New(engerr.KindUnknownVertex, "no such vertex %q", name).
//		WithContext("vertex", name)
func (e *EngineError) WithContext(key string, value any) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]any, 2)
	}
	e.Context[key] = value
	return e
}

// Is lets errors.Is match two EngineErrors by kind alone; Kind itself does
// not implement error, so the target is usually built with Sentinel below.
func (e *EngineError) Is(target error) bool {
	other, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel returns a zero-context EngineError of the given kind, useful for
// errors.Is(err, engerr.Sentinel(engerr.KindCyclicDependency)) checks.
func Sentinel(kind Kind) *EngineError { return &EngineError{Kind: kind} }

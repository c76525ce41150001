package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration runs.
var (
	// ErrInvalidConfig indicates a non-positive step size, tolerance or step budget.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrDiverged indicates a state component became NaN or Inf.
	ErrDiverged = errors.New("dynamo: integration diverged (NaN or Inf detected)")

	// ErrDimensionMismatch indicates an initial state whose length does not match the field.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and field")

	// ErrUnknownField indicates a vector field name missing from the registry.
	ErrUnknownField = errors.New("dynamo: unknown vector field")
)

type ConfigError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dynamo: invalid %s %g: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// DivergenceError records where a run produced a non-finite state.
type DivergenceError struct {
	Step  int
	Time  float64
	State State
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("dynamo: diverged at step %d (t=%.6g): %v", e.Step, e.Time, e.State)
}

func (e *DivergenceError) Unwrap() error {
	return ErrDiverged
}

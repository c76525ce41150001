package integrators

import "github.com/san-kum/attractor/internal/dynamo"

// Euler is the explicit first-order stepper, kept as a baseline for compare runs.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(field dynamo.VectorField, h float64, x dynamo.State, t float64) dynamo.StepResult {
	dx := field.Derive(x, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + h*dx[i]
	}
	return dynamo.StepResult{State: result, Time: t + h}
}

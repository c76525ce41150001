// Package dynamo provides the core value types for integrating ordinary
// differential equations.
//
// The package defines the vocabulary shared by the steppers, the adaptive
// controller and the trajectory accumulator:
//
//   - [State]: vector representing system state
//   - [VectorField]: dX/dt = f(X, t)
//   - [StepResult]: outcome of a single integration step
//   - [ErrorEstimate]: step-doubling comparison of one step against two halves
//   - [Trajectory]: append-only sequence of accepted states
//   - [Config]: step size, tolerance and step budget for a run
//
// # Example
//
//	field := physics.NewLorenz(physics.DefaultLorenzParams())
//	acc := sim.New(field, integrators.NewRK4())
//	res, _ := acc.IntegrateFixed(ctx, x0, cfg)
//
// # Numeric Divergence
//
// Non-finite components propagate silently through every stepper. Set
// [Config.CheckDivergence] to abort a run with a [*DivergenceError] instead.
package dynamo

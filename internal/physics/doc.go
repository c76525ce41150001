// Package physics provides vector fields for trajectory integration.
//
// Each field implements [dynamo.VectorField]; its constants are captured at
// construction and never change afterwards:
//
//   - [Lorenz]: butterfly attractor (a=16, r=45, b=4 by default)
//   - [Rossler]: spiral attractor
//   - [Decay]: linear decay dx/dt = -k x, used to check integrator order
//
// All fields also implement [dynamo.Dimensioned] and [dynamo.Parameterized].
//
// # Example
//
//	field := physics.NewLorenz(physics.DefaultLorenzParams())
//	dx := field.Derive(dynamo.State{-13, -12, 52}, 0)
package physics

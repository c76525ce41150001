package integrators

import "github.com/san-kum/attractor/internal/dynamo"

// RK4 is the classical fourth-order Runge-Kutta stepper. It keeps stage
// buffers between calls and must not be shared across goroutines.
type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
}

// Step advances x by h. The stages are stored pre-multiplied by h:
//
//	k1 = h f(x, t)
//	k2 = h f(x + k1/2, t + h/2)
//	k3 = h f(x + k2/2, t + h/2)
//	k4 = h f(x + k3, t + h)
//	x' = x + (k1 + 2 k2 + 2 k3 + k4) / 6
func (r *RK4) Step(field dynamo.VectorField, h float64, x dynamo.State, t float64) dynamo.StepResult {
	n := len(x)
	r.ensureScratch(n)
	half := h / 2

	d := field.Derive(x, t)
	for i := 0; i < n; i++ {
		r.k1[i] = h * d[i]
		r.scratch[i] = x[i] + r.k1[i]/2
	}

	d = field.Derive(r.scratch, t+half)
	for i := 0; i < n; i++ {
		r.k2[i] = h * d[i]
		r.scratch[i] = x[i] + r.k2[i]/2
	}

	d = field.Derive(r.scratch, t+half)
	for i := 0; i < n; i++ {
		r.k3[i] = h * d[i]
		r.scratch[i] = x[i] + r.k3[i]
	}

	d = field.Derive(r.scratch, t+h)
	for i := 0; i < n; i++ {
		r.k4[i] = h * d[i]
	}

	result := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		result[i] = x[i] + (r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])/6
	}

	return dynamo.StepResult{State: result, Time: t + h}
}

package integrators

import "github.com/san-kum/attractor/internal/dynamo"

// Doubling estimates local error by comparing one step of size h with two
// consecutive steps of size h/2 from the same starting point. The returned
// state is the two half step result. Err is a practical proxy for the local
// truncation error, not a bound.
type Doubling struct {
	stepper dynamo.Stepper
}

// NewDoubling wraps stepper; a nil stepper means RK4.
func NewDoubling(stepper dynamo.Stepper) *Doubling {
	if stepper == nil {
		stepper = NewRK4()
	}
	return &Doubling{stepper: stepper}
}

func (d *Doubling) Estimate(field dynamo.VectorField, h float64, x dynamo.State, t float64) dynamo.ErrorEstimate {
	full := d.stepper.Step(field, h, x, t)
	half := d.stepper.Step(field, h/2, x, t)
	half = d.stepper.Step(field, h/2, half.State, half.Time)

	return dynamo.ErrorEstimate{
		State: half.State,
		Time:  half.Time,
		Err:   full.State.Distance(half.State),
	}
}

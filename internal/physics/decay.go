package physics

import (
	"math"

	"github.com/san-kum/attractor/internal/dynamo"
)

// Decay is dx/dt = -k x in any dimension. Its exact solution x0*exp(-k t)
// makes it the reference problem for convergence checks.
type Decay struct {
	k   float64
	dim int
}

func NewDecay(k float64, dim int) *Decay { return &Decay{k: k, dim: dim} }

func (d *Decay) StateDim() int { return d.dim }

func (d *Decay) Derive(s dynamo.State, _ float64) dynamo.State {
	return s.Scale(-d.k)
}

func (d *Decay) Exact(x0 dynamo.State, t float64) dynamo.State {
	return x0.Scale(math.Exp(-d.k * t))
}

func (d *Decay) DefaultState() dynamo.State {
	s := make(dynamo.State, d.dim)
	for i := range s {
		s[i] = 1
	}
	return s
}

func (d *Decay) Params() map[string]float64 {
	return map[string]float64{"k": d.k}
}

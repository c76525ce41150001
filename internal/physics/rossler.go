package physics

import (
	"fmt"

	"github.com/san-kum/attractor/internal/dynamo"
)

type Rossler struct{ a, b, c float64 }

func NewRossler(a, b, c float64) *Rossler { return &Rossler{a, b, c} }

// NewRosslerFrom overlays the keys a, b and c of m onto the classic 0.2, 0.2, 5.7.
func NewRosslerFrom(m map[string]float64) (*Rossler, error) {
	r := &Rossler{0.2, 0.2, 5.7}
	for k, v := range m {
		switch k {
		case "a":
			r.a = v
		case "b":
			r.b = v
		case "c":
			r.c = v
		default:
			return nil, fmt.Errorf("rossler: unknown parameter %q", k)
		}
	}
	return r, nil
}

func (r *Rossler) StateDim() int { return 3 }

// Derive calculates the Rossler attractor derivatives.
func (r *Rossler) Derive(s dynamo.State, _ float64) dynamo.State {
	return dynamo.State{-s[1] - s[2], s[0] + r.a*s[1], r.b + s[2]*(s[0]-r.c)}
}
func (r *Rossler) DefaultState() dynamo.State { return dynamo.State{1.0, 1.0, 1.0} }
func (r *Rossler) Params() map[string]float64 {
	return map[string]float64{"a": r.a, "b": r.b, "c": r.c}
}

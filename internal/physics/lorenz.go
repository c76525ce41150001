package physics

import (
	"fmt"

	"github.com/san-kum/attractor/internal/dynamo"
)

type LorenzParams struct {
	A float64 `yaml:"a"`
	R float64 `yaml:"r"`
	B float64 `yaml:"b"`
}

func DefaultLorenzParams() LorenzParams { return LorenzParams{A: 16.0, R: 45.0, B: 4.0} }

// LorenzParamsFrom overlays the keys a, r and b of m onto the defaults.
func LorenzParamsFrom(m map[string]float64) (LorenzParams, error) {
	p := DefaultLorenzParams()
	for k, v := range m {
		switch k {
		case "a":
			p.A = v
		case "r":
			p.R = v
		case "b":
			p.B = v
		default:
			return p, fmt.Errorf("lorenz: unknown parameter %q", k)
		}
	}
	return p, nil
}

type Lorenz struct{ a, r, b float64 }

func NewLorenz(p LorenzParams) *Lorenz { return &Lorenz{p.A, p.R, p.B} }
func (l *Lorenz) StateDim() int       { return 3 }

// Derive calculates the Lorenz attractor derivatives.
func (l *Lorenz) Derive(s dynamo.State, _ float64) dynamo.State {
	return dynamo.State{l.a * (s[1] - s[0]), l.r*s[0] - s[1] - s[0]*s[2], s[0]*s[1] - l.b*s[2]}
}
func (l *Lorenz) DefaultState() dynamo.State { return dynamo.State{-13.0, -12.0, 52.0} }
func (l *Lorenz) Params() map[string]float64 {
	return map[string]float64{"a": l.a, "r": l.r, "b": l.b}
}

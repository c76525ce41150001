package metrics

import (
	"math"

	"github.com/san-kum/attractor/internal/dynamo"
)

// LorenzEnvelope bounds every component of the Lorenz attractor for the
// default constants. Leaving it signals a numerical regression.
const LorenzEnvelope = 100.0

// Envelope reports the fraction of observed states whose components all stay
// strictly inside (-bound, bound).
type Envelope struct {
	name       string
	bound      float64
	violations int
	samples    int
}

func NewEnvelope(bound float64) *Envelope {
	return &Envelope{
		name:  "envelope",
		bound: bound,
	}
}

func (e *Envelope) Name() string {
	return e.name
}

func (e *Envelope) Observe(x dynamo.State, _, _ float64) {
	e.samples++
	for _, val := range x {
		if !(math.Abs(val) < e.bound) {
			e.violations++
			break
		}
	}
}

func (e *Envelope) Value() float64 {
	if e.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(e.violations)/float64(e.samples)
}

func (e *Envelope) Violations() int { return e.violations }

func (e *Envelope) Reset() {
	e.violations = 0
	e.samples = 0
}

// MaxAbs is the largest absolute component seen.
type MaxAbs struct {
	max float64
}

func NewMaxAbs() *MaxAbs { return &MaxAbs{} }

func (m *MaxAbs) Name() string { return "max_abs" }

func (m *MaxAbs) Observe(x dynamo.State, _, _ float64) {
	for _, val := range x {
		if a := math.Abs(val); a > m.max || math.IsNaN(a) {
			m.max = a
		}
	}
}

func (m *MaxAbs) Value() float64 { return m.max }
func (m *MaxAbs) Reset()         { m.max = 0 }

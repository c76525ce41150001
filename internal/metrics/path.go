package metrics

import "github.com/san-kum/attractor/internal/dynamo"

// PathLength is the polyline length through the observed states.
type PathLength struct {
	name   string
	length float64
	prev   dynamo.State
}

func NewPathLength() *PathLength {
	return &PathLength{
		name: "path_length",
	}
}

func (p *PathLength) Name() string {
	return p.name
}

func (p *PathLength) Observe(x dynamo.State, _, _ float64) {
	if p.prev != nil {
		p.length += x.Distance(p.prev)
	}
	p.prev = x.Clone()
}

func (p *PathLength) Value() float64 {
	return p.length
}

func (p *PathLength) Reset() {
	p.length = 0
	p.prev = nil
}

// Defaults is the metric set attached to every CLI run. The envelope is
// only included for a positive bound.
func Defaults(bound float64) []dynamo.Metric {
	ms := []dynamo.Metric{
		NewMaxAbs(),
		NewPathLength(),
		NewStepSize(StepMean),
		NewStepSize(StepMin),
		NewStepSize(StepMax),
	}
	if bound > 0 {
		ms = append([]dynamo.Metric{NewEnvelope(bound)}, ms...)
	}
	return ms
}

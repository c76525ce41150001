package metrics

import (
	"math"

	"github.com/san-kum/attractor/internal/dynamo"
)

type StepStat int

const (
	StepMean StepStat = iota
	StepMin
	StepMax
)

// StepSize summarises the step sizes of recorded states. The initial state
// carries h = 0 and is skipped.
type StepSize struct {
	stat    StepStat
	sum     float64
	min     float64
	max     float64
	samples int
}

func NewStepSize(stat StepStat) *StepSize {
	s := &StepSize{stat: stat}
	s.Reset()
	return s
}

func (s *StepSize) Name() string {
	switch s.stat {
	case StepMin:
		return "h_min"
	case StepMax:
		return "h_max"
	default:
		return "h_mean"
	}
}

func (s *StepSize) Observe(_ dynamo.State, _, h float64) {
	if h <= 0 {
		return
	}
	s.sum += h
	s.min = math.Min(s.min, h)
	s.max = math.Max(s.max, h)
	s.samples++
}

func (s *StepSize) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	switch s.stat {
	case StepMin:
		return s.min
	case StepMax:
		return s.max
	default:
		return s.sum / float64(s.samples)
	}
}

func (s *StepSize) Reset() {
	s.sum = 0
	s.min = math.Inf(1)
	s.max = 0
	s.samples = 0
}

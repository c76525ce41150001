package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Distance is the Euclidean norm of s - other.
func (s State) Distance(other State) float64 {
	return s.Sub(other).Norm()
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Equal reports exact component-wise equality.
func (s State) Equal(other State) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// VectorField is the right-hand side of an autonomous or time-dependent ODE.
// Implementations must be pure: the same (x, t) always yields the same
// derivative and x is never modified.
type VectorField interface {
	Derive(x State, t float64) State
}

// Dimensioned is implemented by fields with a fixed state length.
type Dimensioned interface {
	StateDim() int
}

// FieldFunc adapts an ordinary function to VectorField.
type FieldFunc func(x State, t float64) State

func (f FieldFunc) Derive(x State, t float64) State { return f(x, t) }

// Parameterized exposes the constants a field was constructed with.
type Parameterized interface {
	Params() map[string]float64
}

type StepResult struct {
	State State
	Time  float64
}

// ErrorEstimate carries the refined (two half step) result together with the
// distance between it and the single full step.
type ErrorEstimate struct {
	State State
	Time  float64
	Err   float64
}

type Stepper interface {
	Step(field VectorField, h float64, x State, t float64) StepResult
}

type Estimator interface {
	Estimate(field VectorField, h float64, x State, t float64) ErrorEstimate
}

// Metric accumulates a scalar over every state appended to a trajectory.
type Metric interface {
	Name() string
	Observe(x State, t, h float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, t, h float64)
}

// Stats counts what the integration loop did. Fixed runs fill only Ticks and
// Accepted.
type Stats struct {
	Ticks     int `json:"ticks"`
	Accepted  int `json:"accepted"`
	Grown     int `json:"grown"`
	Rejected  int `json:"rejected"`
	FloorHits int `json:"floor_hits"`
	Estimates int `json:"estimates"`
}

// Trajectory is an append-only sequence of states. Index 0 is always the
// initial condition; Steps[i] is the step size that produced States[i]
// (zero for the initial condition).
type Trajectory struct {
	States []State
	Times  []float64
	Steps  []float64
	Stats  Stats
}

func NewTrajectory(x0 State, t0 float64, capacity int) *Trajectory {
	if capacity < 1 {
		capacity = 1
	}
	tr := &Trajectory{
		States: make([]State, 0, capacity),
		Times:  make([]float64, 0, capacity),
		Steps:  make([]float64, 0, capacity),
	}
	tr.Append(x0, t0, 0)
	return tr
}

// Append stores a private copy of x.
func (tr *Trajectory) Append(x State, t, h float64) {
	tr.States = append(tr.States, x.Clone())
	tr.Times = append(tr.Times, t)
	tr.Steps = append(tr.Steps, h)
}

func (tr *Trajectory) Len() int { return len(tr.States) }

func (tr *Trajectory) Last() (State, float64) {
	n := len(tr.States) - 1
	return tr.States[n], tr.Times[n]
}

// Component returns the series of a single state component.
func (tr *Trajectory) Component(idx int) []float64 {
	out := make([]float64, 0, len(tr.States))
	for _, s := range tr.States {
		if idx < len(s) {
			out = append(out, s[idx])
		}
	}
	return out
}

const (
	// DefaultMinH is the step size floor of the adaptive controller.
	DefaultMinH = 1e-10
	// DefaultMaxH bounds step growth when no ceiling is configured. Without
	// it a zero error estimate (a fixed point, or a field the method solves
	// exactly) doubles h until time overflows.
	DefaultMaxH = 1e6
	// AcceptBand is the fraction of the tolerance below which a step is
	// considered too conservative.
	AcceptBand = 0.95
)

type Config struct {
	H               float64
	Tolerance       float64
	Steps           int
	T0              float64
	MinH            float64
	MaxH            float64 // zero means DefaultMaxH
	CheckDivergence bool
}

func DefaultConfig() Config {
	return Config{
		H:         0.001,
		Tolerance: 1e-6,
		Steps:     10000,
		MinH:      DefaultMinH,
	}
}

// ValidateFixed allows a zero step count: the trajectory is then just x0.
func (c Config) ValidateFixed() error {
	if c.Steps < 0 {
		return &ConfigError{Field: "steps", Value: float64(c.Steps), Reason: "must not be negative"}
	}
	return c.validateH()
}

func (c Config) ValidateAdaptive() error {
	if c.Steps <= 0 {
		return &ConfigError{Field: "steps", Value: float64(c.Steps), Reason: "must be positive"}
	}
	if err := c.validateH(); err != nil {
		return err
	}
	if !(c.Tolerance > 0) || math.IsInf(c.Tolerance, 0) {
		return &ConfigError{Field: "tolerance", Value: c.Tolerance, Reason: "must be positive and finite"}
	}
	if c.MinH < 0 || math.IsNaN(c.MinH) {
		return &ConfigError{Field: "min_h", Value: c.MinH, Reason: "must not be negative"}
	}
	if c.H < c.Floor() {
		return &ConfigError{Field: "h", Value: c.H, Reason: "must be at least min_h"}
	}
	if c.MaxH != 0 && c.MaxH < c.H {
		return &ConfigError{Field: "max_h", Value: c.MaxH, Reason: "must be zero or at least h"}
	}
	return nil
}

func (c Config) validateH() error {
	if !(c.H > 0) || math.IsInf(c.H, 0) {
		return &ConfigError{Field: "h", Value: c.H, Reason: "must be positive and finite"}
	}
	return nil
}

// Floor returns the effective minimum step size.
func (c Config) Floor() float64 {
	if c.MinH > 0 {
		return c.MinH
	}
	return DefaultMinH
}

// Ceiling returns the effective maximum step size. It is never below H.
func (c Config) Ceiling() float64 {
	if c.MaxH > 0 {
		return c.MaxH
	}
	return math.Max(DefaultMaxH, c.H)
}

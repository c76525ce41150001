package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/attractor/internal/config"
	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/sim"
)

type defaultStater interface {
	DefaultState() dynamo.State
}

// Experiment is one configured run: a field, its stepper and estimator, the
// default metrics and the initial state resolved from the config.
type Experiment struct {
	cfg   *config.Config
	mode  sim.Mode
	field dynamo.VectorField
	x0    dynamo.State
	acc   *sim.Accumulator
}

func New(cfg *config.Config, reg *Registry, logger *slog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := cfg.RunMode()
	if err != nil {
		return nil, err
	}

	field, err := reg.GetField(cfg.Field, cfg.Params)
	if err != nil {
		return nil, err
	}
	stepper, err := reg.GetStepper(cfg.Stepper)
	if err != nil {
		return nil, err
	}
	estimator, err := reg.GetEstimator(cfg.Estimator, stepper)
	if err != nil {
		return nil, err
	}

	x0 := dynamo.State(cfg.InitState).Clone()
	if len(x0) == 0 {
		ds, ok := field.(defaultStater)
		if !ok {
			return nil, fmt.Errorf("%w: field %s has no default initial state", dynamo.ErrInvalidConfig, cfg.Field)
		}
		x0 = ds.DefaultState()
	}

	acc := sim.New(field, stepper)
	acc.SetEstimator(estimator)
	acc.SetLogger(logger)
	for _, m := range reg.DefaultMetrics(cfg.Field) {
		acc.AddMetric(m)
	}

	return &Experiment{cfg: cfg, mode: mode, field: field, x0: x0, acc: acc}, nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.acc.Run(ctx, e.mode, e.x0, e.cfg.Dynamo())
}

func (e *Experiment) Config() *config.Config        { return e.cfg }
func (e *Experiment) Field() dynamo.VectorField     { return e.field }
func (e *Experiment) InitialState() dynamo.State    { return e.x0.Clone() }
func (e *Experiment) Accumulator() *sim.Accumulator { return e.acc }

// FieldParams reports the constants actually in use, defaults included.
func (e *Experiment) FieldParams() map[string]float64 {
	if p, ok := e.field.(dynamo.Parameterized); ok {
		return p.Params()
	}
	return nil
}

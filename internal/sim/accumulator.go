package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/integrators"
)

type Mode string

const (
	ModeFixed    Mode = "fixed"
	ModeAdaptive Mode = "adaptive"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFixed, ModeAdaptive:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want fixed or adaptive)", s)
}

// Accumulator builds trajectories for a single vector field. It is the only
// writer of the trajectory it returns and is not safe for concurrent use.
type Accumulator struct {
	field     dynamo.VectorField
	stepper   dynamo.Stepper
	estimator dynamo.Estimator
	metrics   []dynamo.Metric
	observers []dynamo.Observer
	logger    *slog.Logger
}

// New uses RK4 when stepper is nil. Adaptive runs estimate error by step
// doubling over the same stepper unless SetEstimator is called.
func New(field dynamo.VectorField, stepper dynamo.Stepper) *Accumulator {
	if stepper == nil {
		stepper = integrators.NewRK4()
	}
	return &Accumulator{
		field:     field,
		stepper:   stepper,
		estimator: integrators.NewDoubling(stepper),
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]dynamo.Observer, 0),
		logger:    slog.New(slog.DiscardHandler),
	}
}

func (a *Accumulator) AddMetric(m dynamo.Metric)     { a.metrics = append(a.metrics, m) }
func (a *Accumulator) AddObserver(o dynamo.Observer) { a.observers = append(a.observers, o) }

func (a *Accumulator) SetEstimator(e dynamo.Estimator) {
	if e != nil {
		a.estimator = e
	}
}

func (a *Accumulator) SetLogger(l *slog.Logger) {
	if l != nil {
		a.logger = l
	}
}

type Result struct {
	Mode       Mode
	Trajectory *dynamo.Trajectory
	Metrics    map[string]float64
	Elapsed    time.Duration
}

// Run dispatches on mode.
func (a *Accumulator) Run(ctx context.Context, mode Mode, x0 dynamo.State, cfg dynamo.Config) (*Result, error) {
	switch mode {
	case ModeFixed:
		return a.IntegrateFixed(ctx, x0, cfg)
	case ModeAdaptive:
		return a.IntegrateAdaptive(ctx, x0, cfg)
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}

// IntegrateFixed takes exactly cfg.Steps steps of size cfg.H. The trajectory
// always holds cfg.Steps+1 states unless divergence checking aborts the run,
// in which case the offending state is the last one recorded.
func (a *Accumulator) IntegrateFixed(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*Result, error) {
	if err := cfg.ValidateFixed(); err != nil {
		return nil, err
	}
	if err := a.checkDim(x0); err != nil {
		return nil, err
	}

	start := time.Now()
	a.reset()
	tr := dynamo.NewTrajectory(x0, cfg.T0, cfg.Steps+1)
	a.observe(tr.States[0], cfg.T0, 0)

	x, t := tr.States[0], cfg.T0
	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return a.finish(ModeFixed, tr, start), ctx.Err()
		default:
		}

		res := a.stepper.Step(a.field, cfg.H, x, t)
		x, t = res.State, res.Time
		tr.Append(x, t, cfg.H)
		tr.Stats.Ticks++
		tr.Stats.Accepted++

		if err := a.afterAppend(cfg, tr.Len()-1, x, t, cfg.H); err != nil {
			return a.finish(ModeFixed, tr, start), err
		}
	}

	return a.finish(ModeFixed, tr, start), nil
}

// IntegrateAdaptive runs cfg.Steps controller ticks. The number of recorded
// states depends on how often the controller accepts or grows.
func (a *Accumulator) IntegrateAdaptive(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*Result, error) {
	if err := cfg.ValidateAdaptive(); err != nil {
		return nil, err
	}
	if err := a.checkDim(x0); err != nil {
		return nil, err
	}

	start := time.Now()
	a.reset()
	a.observe(x0, cfg.T0, 0)

	hook := func(index int, x dynamo.State, t, h float64) error {
		return a.afterAppend(cfg, index, x, t, h)
	}
	ctrl := integrators.NewController(a.estimator,
		integrators.WithLogger(a.logger),
		integrators.WithAppendHook(hook),
	)

	tr, err := ctrl.Run(ctx, a.field, x0, cfg)
	if tr == nil {
		return nil, err
	}
	return a.finish(ModeAdaptive, tr, start), err
}

func (a *Accumulator) checkDim(x0 dynamo.State) error {
	if d, ok := a.field.(dynamo.Dimensioned); ok && d.StateDim() != len(x0) {
		return fmt.Errorf("%w: field wants %d components, initial state has %d",
			dynamo.ErrDimensionMismatch, d.StateDim(), len(x0))
	}
	return nil
}

func (a *Accumulator) afterAppend(cfg dynamo.Config, index int, x dynamo.State, t, h float64) error {
	if cfg.CheckDivergence && !x.IsValid() {
		return &dynamo.DivergenceError{Step: index, Time: t, State: x.Clone()}
	}
	a.observe(x, t, h)
	return nil
}

func (a *Accumulator) observe(x dynamo.State, t, h float64) {
	for _, m := range a.metrics {
		m.Observe(x, t, h)
	}
	for _, o := range a.observers {
		o.OnStep(x, t, h)
	}
}

func (a *Accumulator) reset() {
	for _, m := range a.metrics {
		m.Reset()
	}
}

func (a *Accumulator) finish(mode Mode, tr *dynamo.Trajectory, start time.Time) *Result {
	res := &Result{
		Mode:       mode,
		Trajectory: tr,
		Metrics:    make(map[string]float64, len(a.metrics)),
		Elapsed:    time.Since(start),
	}
	for _, m := range a.metrics {
		res.Metrics[m.Name()] = m.Value()
	}

	_, tEnd := tr.Last()
	a.logger.Info("integration finished",
		"mode", mode,
		"points", tr.Len(),
		"t_end", tEnd,
		"ticks", tr.Stats.Ticks,
		"grown", tr.Stats.Grown,
		"rejected", tr.Stats.Rejected,
		"floor_hits", tr.Stats.FloorHits,
		"elapsed", res.Elapsed,
	)
	return res
}

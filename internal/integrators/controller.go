package integrators

import (
	"context"
	"log/slog"
	"math"

	"github.com/san-kum/attractor/internal/dynamo"
)

// phase is the branch of the controller that owns a given error magnitude.
type phase int

const (
	phaseAccept phase = iota
	phaseGrow
	phaseShrink
	// phaseStalled is only reachable with a NaN error.
	phaseStalled
)

func (p phase) String() string {
	switch p {
	case phaseAccept:
		return "accept"
	case phaseGrow:
		return "grow"
	case phaseShrink:
		return "shrink"
	default:
		return "stalled"
	}
}

// classify maps err onto the three tolerance bands:
//
//	err <  0.95 tol   grow (unless h already sits at the ceiling)
//	err in [0.95 tol, tol]  accept
//	err >  tol        shrink
func classify(err, tol, h, ceiling float64) phase {
	lower := tol * dynamo.AcceptBand
	switch {
	case err >= lower && err <= tol:
		return phaseAccept
	case err < lower && h >= ceiling:
		return phaseAccept
	case err < lower:
		return phaseGrow
	case err > tol:
		return phaseShrink
	}
	return phaseStalled
}

// AppendFunc is called after every state the controller records. index is the
// position of x in the trajectory. A non-nil error stops the run.
type AppendFunc func(index int, x dynamo.State, t, h float64) error

// Controller drives the adaptive step size loop. Every tick it
//
//  1. takes one step at the current h if the last error is inside the band,
//  2. doubles h while the error is below the band, recording each doubled step,
//  3. halves h while the error is above tolerance, discarding each trial.
//
// If halving reaches the floor with the error still above tolerance the trial
// at the floor is recorded anyway so that the run always makes progress.
type Controller struct {
	estimator dynamo.Estimator
	logger    *slog.Logger
	onAppend  AppendFunc
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithAppendHook(fn AppendFunc) Option {
	return func(c *Controller) { c.onAppend = fn }
}

// NewController uses step doubling over RK4 when est is nil.
func NewController(est dynamo.Estimator, opts ...Option) *Controller {
	if est == nil {
		est = NewDoubling(NewRK4())
	}
	c := &Controller{
		estimator: est,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs cfg.Steps ticks starting from (x0, cfg.T0) with initial step
// cfg.H. The trajectory returned alongside an error holds everything recorded
// up to the failure.
func (c *Controller) Run(ctx context.Context, field dynamo.VectorField, x0 dynamo.State, cfg dynamo.Config) (*dynamo.Trajectory, error) {
	if err := cfg.ValidateAdaptive(); err != nil {
		return nil, err
	}

	tol := cfg.Tolerance
	floor, ceiling := cfg.Floor(), cfg.Ceiling()
	h := cfg.H
	tr := dynamo.NewTrajectory(x0, cfg.T0, cfg.Steps+1)

	// The priming estimate advances the state but is not recorded.
	est := c.estimate(field, h, x0, cfg.T0, &tr.Stats)
	x, t, errMag := est.State, est.Time, est.Err

	for tick := 0; tick < cfg.Steps; tick++ {
		select {
		case <-ctx.Done():
			return tr, ctx.Err()
		default:
		}
		tr.Stats.Ticks++

		if classify(errMag, tol, h, ceiling) == phaseAccept {
			est = c.estimate(field, h, x, t, &tr.Stats)
			x, t, errMag = est.State, est.Time, est.Err
			if err := c.record(tr, x, t, h); err != nil {
				return tr, err
			}
			tr.Stats.Accepted++
		}

		for classify(errMag, tol, h, ceiling) == phaseGrow {
			h = math.Min(h*2, ceiling)
			est = c.estimate(field, h, x, t, &tr.Stats)
			x, t, errMag = est.State, est.Time, est.Err
			if err := c.record(tr, x, t, h); err != nil {
				return tr, err
			}
			tr.Stats.Grown++
		}

		var trial *dynamo.ErrorEstimate
		for classify(errMag, tol, h, ceiling) == phaseShrink && h > floor {
			h = math.Max(h/2, floor)
			probe := c.estimate(field, h, x, t, &tr.Stats)
			trial = &probe
			errMag = probe.Err
			tr.Stats.Rejected++
		}

		if classify(errMag, tol, h, ceiling) == phaseShrink {
			if trial == nil {
				probe := c.estimate(field, h, x, t, &tr.Stats)
				trial = &probe
			}
			x, t, errMag = trial.State, trial.Time, trial.Err
			if err := c.record(tr, x, t, h); err != nil {
				return tr, err
			}
			tr.Stats.FloorHits++
			c.logger.Debug("step size floor reached",
				"tick", tick, "t", t, "h", h, "err", errMag, "tolerance", tol)
		}
	}

	return tr, nil
}

func (c *Controller) estimate(field dynamo.VectorField, h float64, x dynamo.State, t float64, stats *dynamo.Stats) dynamo.ErrorEstimate {
	stats.Estimates++
	return c.estimator.Estimate(field, h, x, t)
}

func (c *Controller) record(tr *dynamo.Trajectory, x dynamo.State, t, h float64) error {
	tr.Append(x, t, h)
	if c.onAppend != nil {
		return c.onAppend(tr.Len()-1, x, t, h)
	}
	return nil
}

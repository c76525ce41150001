package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/attractor/internal/config"
	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/experiment"
)

// ParameterSweep integrates the base config once per value of Param, spread
// evenly over [Min, Max].
type ParameterSweep struct {
	Base    *config.Config
	Param   string
	Min     float64
	Max     float64
	Points  int
	Workers int
}

type SweepResult struct {
	Value      float64
	FinalState dynamo.State
	Points     int
	MaxAbs     float64
	Diverged   bool
}

func (p *ParameterSweep) Values() []float64 {
	if p.Points == 1 {
		return []float64{p.Min}
	}
	values := make([]float64, p.Points)
	step := (p.Max - p.Min) / float64(p.Points-1)
	for i := range values {
		values[i] = p.Min + float64(i)*step
	}
	return values
}

// RunSweep builds a fresh field for every value. A run that diverges is
// reported as such instead of failing the sweep.
func RunSweep(ctx context.Context, sweep *ParameterSweep, reg *experiment.Registry, logger *slog.Logger) ([]SweepResult, error) {
	if sweep.Points < 1 {
		return nil, fmt.Errorf("sweep needs at least one point, got %d", sweep.Points)
	}
	if logger == nil {
		logger = slog.Default()
	}

	values := sweep.Values()
	results := make([]SweepResult, len(values))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(sweep.Workers, 1))
	for i, v := range values {
		g.Go(func() error {
			cfg := sweep.Base.Clone()
			if cfg.Params == nil {
				cfg.Params = make(map[string]float64)
			}
			cfg.Params[sweep.Param] = v
			cfg.CheckDivergence = true

			exp, err := experiment.New(cfg, reg, nil)
			if err != nil {
				return fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
			}

			res, err := exp.Run(ctx)
			var div *dynamo.DivergenceError
			switch {
			case errors.As(err, &div):
				results[i] = SweepResult{Value: v, Diverged: true, Points: div.Step}
				logger.Warn("sweep run diverged", sweep.Param, v, "step", div.Step)
				return nil
			case err != nil:
				return fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
			}

			final, _ := res.Trajectory.Last()
			results[i] = SweepResult{
				Value:      v,
				FinalState: final,
				Points:     res.Trajectory.Len(),
				MaxAbs:     res.Metrics["max_abs"],
			}
			logger.Debug("sweep point done", sweep.Param, v, "points", res.Trajectory.Len())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/san-kum/attractor/internal/config"
	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/experiment"
	"github.com/san-kum/attractor/internal/sim"
)

// PerturbationStudy integrates Trials copies of the base run, each started
// from the base initial state plus uniform noise in [-Perturbation, Perturbation].
type PerturbationStudy struct {
	Base         *config.Config
	Perturbation float64
	Trials       int
	Seed         int64
	Workers      int
}

type PerturbationResult struct {
	Trial      int
	InitState  dynamo.State
	FinalState dynamo.State
	// Separation is the distance between this trial's final state and the
	// unperturbed run's.
	Separation float64
}

// RunPerturbation returns the unperturbed reference followed by one result
// per trial. Trials share no state and run on an ensemble.
func RunPerturbation(ctx context.Context, study *PerturbationStudy, reg *experiment.Registry, logger *slog.Logger) (*sim.Result, []PerturbationResult, error) {
	if study.Trials < 1 {
		return nil, nil, fmt.Errorf("perturbation study needs at least one trial, got %d", study.Trials)
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := experiment.New(study.Base, reg, nil)
	if err != nil {
		return nil, nil, err
	}
	ref, err := base.Run(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reference run: %w", err)
	}
	refFinal, _ := ref.Trajectory.Last()

	seed := study.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	x0 := base.InitialState()
	starts := make([]dynamo.State, study.Trials)
	for trial := range starts {
		s := x0.Clone()
		for i := range s {
			s[i] += (rng.Float64() - 0.5) * 2 * study.Perturbation
		}
		starts[trial] = s
	}

	factory := func() *sim.Accumulator {
		exp, _ := experiment.New(study.Base, reg, nil) // validated above
		return exp.Accumulator()
	}
	mode, _ := study.Base.RunMode()
	runs, err := sim.NewEnsemble(factory, study.Workers).Run(ctx, mode, starts, study.Base.Dynamo())
	if err != nil {
		return nil, nil, err
	}

	results := make([]PerturbationResult, len(runs))
	for i, r := range runs {
		final, _ := r.Trajectory.Last()
		results[i] = PerturbationResult{
			Trial:      i,
			InitState:  starts[i],
			FinalState: final,
			Separation: final.Distance(refFinal),
		}
	}

	logger.Info("perturbation study finished", "trials", study.Trials, "seed", seed)
	return ref, results, nil
}

// SeparationStats summarizes how far the trials drifted from the reference.
func SeparationStats(results []PerturbationResult) (mean, maxSep float64) {
	if len(results) == 0 {
		return 0, 0
	}
	for _, r := range results {
		mean += r.Separation
		if r.Separation > maxSep {
			maxSep = r.Separation
		}
	}
	return mean / float64(len(results)), maxSep
}

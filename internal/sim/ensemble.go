package sim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/attractor/internal/dynamo"
)

// Ensemble integrates several initial conditions of the same field. Each
// trajectory is still built sequentially by its own Accumulator; only the
// members run concurrently.
type Ensemble struct {
	newAccumulator func() *Accumulator
	workers        int
}

// NewEnsemble calls factory once per member so that no stepper scratch space
// is shared between goroutines.
func NewEnsemble(factory func() *Accumulator, workers int) *Ensemble {
	if workers < 1 {
		workers = 1
	}
	return &Ensemble{newAccumulator: factory, workers: workers}
}

func (e *Ensemble) Run(ctx context.Context, mode Mode, starts []dynamo.State, cfg dynamo.Config) ([]*Result, error) {
	results := make([]*Result, len(starts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, x0 := range starts {
		g.Go(func() error {
			res, err := e.newAccumulator().Run(ctx, mode, x0, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

package sim

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/integrators"
	"github.com/san-kum/attractor/internal/physics"
)

func lorenz() *physics.Lorenz { return physics.NewLorenz(physics.DefaultLorenzParams()) }

// blowUp is dx/dt = x^2, which reaches infinity at t = 1/x0.
var blowUp = dynamo.FieldFunc(func(x dynamo.State, _ float64) dynamo.State {
	return dynamo.State{x[0] * x[0]}
})

type countingMetric struct {
	count int
	sumH  float64
}

func (c *countingMetric) Name() string { return "count" }
func (c *countingMetric) Observe(_ dynamo.State, _, h float64) {
	c.count++
	c.sumH += h
}
func (c *countingMetric) Value() float64 { return float64(c.count) }
func (c *countingMetric) Reset()         { c.count, c.sumH = 0, 0 }

type recorder struct{ times []float64 }

func (r *recorder) OnStep(_ dynamo.State, t, _ float64) { r.times = append(r.times, t) }

func TestIntegrateFixed_LorenzReference(t *testing.T) {
	acc := New(lorenz(), nil)
	x0 := dynamo.State{-13, -12, 52}
	cfg := dynamo.Config{H: 0.001, Steps: 10000}

	res, err := acc.IntegrateFixed(context.Background(), x0, cfg)
	require.NoError(t, err)

	tr := res.Trajectory
	require.Equal(t, 10001, tr.Len())
	assert.True(t, tr.States[0].Equal(x0), "first state must equal the initial condition exactly")
	assert.InDelta(t, 10.0, tr.Times[tr.Len()-1], 1e-9)

	for i, s := range tr.States {
		for j, v := range s {
			if math.Abs(v) >= 100 {
				t.Fatalf("state %d component %d left the attractor envelope: %v", i, j, v)
			}
		}
	}
}

func TestIntegrateFixed_Length(t *testing.T) {
	acc := New(lorenz(), nil)
	x0 := dynamo.State{-13, -12, 52}

	for _, n := range []int{0, 1, 2, 7, 100} {
		res, err := acc.IntegrateFixed(context.Background(), x0, dynamo.Config{H: 0.01, Steps: n})
		require.NoError(t, err)
		assert.Equal(t, n+1, res.Trajectory.Len(), "steps=%d", n)
		assert.True(t, res.Trajectory.States[0].Equal(x0))
		assert.Equal(t, n, res.Trajectory.Stats.Accepted)
	}
}

func TestIntegrateFixed_MatchesStepper(t *testing.T) {
	field := lorenz()
	x0 := dynamo.State{-13, -12, 52}
	res, err := New(field, nil).IntegrateFixed(context.Background(), x0, dynamo.Config{H: 0.01, Steps: 3})
	require.NoError(t, err)

	rk := integrators.NewRK4()
	x, tm := x0, 0.0
	for i := 1; i <= 3; i++ {
		step := rk.Step(field, 0.01, x, tm)
		x, tm = step.State, step.Time
		assert.True(t, res.Trajectory.States[i].Equal(x), "state %d", i)
		assert.Equal(t, tm, res.Trajectory.Times[i])
	}
}

func TestIntegrate_InvalidConfig(t *testing.T) {
	acc := New(lorenz(), nil)
	x0 := dynamo.State{-13, -12, 52}

	tests := []struct {
		name string
		mode Mode
		cfg  dynamo.Config
	}{
		{"zero h", ModeFixed, dynamo.Config{H: 0, Steps: 10}},
		{"negative steps", ModeFixed, dynamo.Config{H: 0.01, Steps: -1}},
		{"zero adaptive steps", ModeAdaptive, dynamo.Config{H: 0.01, Steps: 0, Tolerance: 1e-6}},
		{"zero tolerance", ModeAdaptive, dynamo.Config{H: 0.01, Steps: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := acc.Run(context.Background(), tt.mode, x0, tt.cfg)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, dynamo.ErrInvalidConfig)
		})
	}
}

func TestIntegrate_DimensionMismatch(t *testing.T) {
	acc := New(lorenz(), nil)
	_, err := acc.IntegrateFixed(context.Background(), dynamo.State{1, 2}, dynamo.Config{H: 0.01, Steps: 1})
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}

func TestIntegrateFixed_Divergence(t *testing.T) {
	cfg := dynamo.Config{H: 0.1, Steps: 100}

	res, err := New(blowUp, nil).IntegrateFixed(context.Background(), dynamo.State{1}, cfg)
	require.NoError(t, err, "divergence propagates silently unless checking is enabled")
	last, _ := res.Trajectory.Last()
	assert.False(t, last.IsValid())

	cfg.CheckDivergence = true
	res, err = New(blowUp, nil).IntegrateFixed(context.Background(), dynamo.State{1}, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, dynamo.ErrDiverged)

	var div *dynamo.DivergenceError
	require.True(t, errors.As(err, &div))
	assert.Equal(t, res.Trajectory.Len()-1, div.Step)
	assert.Less(t, div.Step, 100)
	assert.False(t, div.State.IsValid())
}

func TestIntegrateAdaptive_Divergence(t *testing.T) {
	cfg := dynamo.Config{H: 0.1, Steps: 50, Tolerance: 1e-6, MinH: 1e-3, CheckDivergence: true}
	res, err := New(blowUp, nil).IntegrateAdaptive(context.Background(), dynamo.State{1}, cfg)
	if err != nil {
		assert.ErrorIs(t, err, dynamo.ErrDiverged)
		require.NotNil(t, res)
	}
	states := res.Trajectory.States
	for _, s := range states[:len(states)-1] {
		assert.True(t, s.IsValid(), "only the offending state may be non-finite")
	}
}

func TestIntegrateAdaptive_Lorenz(t *testing.T) {
	acc := New(lorenz(), nil)
	m := &countingMetric{}
	acc.AddMetric(m)
	rec := &recorder{}
	acc.AddObserver(rec)

	x0 := dynamo.State{-13, -12, 52}
	cfg := dynamo.Config{H: 0.005, Tolerance: 1e-6, Steps: 200}
	res, err := acc.IntegrateAdaptive(context.Background(), x0, cfg)
	require.NoError(t, err)

	tr := res.Trajectory
	assert.Equal(t, ModeAdaptive, res.Mode)
	assert.True(t, tr.States[0].Equal(x0))
	assert.Equal(t, 200, tr.Stats.Ticks)
	assert.Equal(t, tr.Len(), m.count, "metrics see the initial state and every recorded state")
	assert.Equal(t, float64(tr.Len()), res.Metrics["count"])
	assert.Len(t, rec.times, tr.Len())

	for i := 1; i < tr.Len(); i++ {
		assert.Greater(t, tr.Times[i], tr.Times[i-1])
	}
}

func TestIntegrateAdaptive_CustomEstimator(t *testing.T) {
	acc := New(lorenz(), nil)
	acc.SetEstimator(integrators.NewDormandPrince())
	res, err := acc.IntegrateAdaptive(context.Background(), dynamo.State{-13, -12, 52},
		dynamo.Config{H: 0.005, Tolerance: 1e-6, Steps: 20})
	require.NoError(t, err)
	assert.Greater(t, res.Trajectory.Len(), 1)
}

func TestMetricsResetBetweenRuns(t *testing.T) {
	acc := New(lorenz(), nil)
	m := &countingMetric{}
	acc.AddMetric(m)

	x0 := dynamo.State{-13, -12, 52}
	_, err := acc.IntegrateFixed(context.Background(), x0, dynamo.Config{H: 0.01, Steps: 5})
	require.NoError(t, err)
	res, err := acc.IntegrateFixed(context.Background(), x0, dynamo.Config{H: 0.01, Steps: 5})
	require.NoError(t, err)

	assert.Equal(t, 6.0, res.Metrics["count"])
	assert.InDelta(t, 0.05, m.sumH, 1e-12)
}

func TestIntegrateFixed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(lorenz(), nil).IntegrateFixed(ctx, dynamo.State{-13, -12, 52}, dynamo.Config{H: 0.01, Steps: 10})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Trajectory.Len())
}

func TestLoggerSummary(t *testing.T) {
	var buf bytes.Buffer
	acc := New(lorenz(), nil)
	acc.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := acc.IntegrateFixed(context.Background(), dynamo.State{-13, -12, 52}, dynamo.Config{H: 0.01, Steps: 2})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "integration finished")
	assert.Contains(t, buf.String(), "points=3")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("adaptive")
	require.NoError(t, err)
	assert.Equal(t, ModeAdaptive, m)

	_, err = ParseMode("rk45")
	assert.Error(t, err)
}

func TestEnsemble(t *testing.T) {
	starts := []dynamo.State{
		{-13, -12, 52},
		{-13.001, -12, 52},
		{1, 1, 1},
	}
	ens := NewEnsemble(func() *Accumulator { return New(lorenz(), nil) }, 2)

	results, err := ens.Run(context.Background(), ModeFixed, starts, dynamo.Config{H: 0.01, Steps: 50})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.True(t, res.Trajectory.States[0].Equal(starts[i]))
		assert.Equal(t, 51, res.Trajectory.Len())
	}

	_, err = ens.Run(context.Background(), ModeFixed, starts, dynamo.Config{H: -1, Steps: 50})
	assert.ErrorIs(t, err, dynamo.ErrInvalidConfig)
}

package automation

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/attractor/internal/config"
	"github.com/san-kum/attractor/internal/experiment"
	"github.com/san-kum/attractor/internal/storage"
)

const scenarioYAML = `
name: smoke
description: short runs of each field
runs:
  - name: reference
    steps: 100
    save: true
  - preset: lorenz/adaptive
    steps: 20
    tolerance: 1.0e-8
    params:
      r: 28
  - field: rossler
    mode: adaptive
    h: 0.01
    steps: 10
`

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)
	require.Len(t, sc.Runs, 3)

	ref := sc.Runs[0]
	assert.Equal(t, "reference", ref.Name)
	assert.True(t, ref.Save)
	assert.Equal(t, 100, ref.Config.Steps)
	assert.Equal(t, 0.001, ref.Config.H)

	adaptive := sc.Runs[1]
	assert.Equal(t, "lorenz", adaptive.Name)
	assert.Equal(t, "adaptive", adaptive.Config.Mode)
	assert.Equal(t, 0.005, adaptive.Config.H)
	assert.Equal(t, 1e-8, adaptive.Config.Tolerance)
	assert.Equal(t, map[string]float64{"a": 16, "r": 28, "b": 4}, adaptive.Config.Params)

	ross := sc.Runs[2]
	assert.Equal(t, "rossler", ross.Config.Field)
	assert.Empty(t, ross.Config.Params)
	assert.Empty(t, ross.Config.InitState)
}

func TestParseScenarioErrors(t *testing.T) {
	_, err := ParseScenario([]byte("name: empty\nruns: []\n"))
	assert.Error(t, err)

	_, err = ParseScenario([]byte("runs:\n  - preset: lorenz/none\n"))
	assert.ErrorContains(t, err, "lorenz/none")
}

func TestPresetNotMutatedByScenario(t *testing.T) {
	_, err := ParseScenario([]byte("runs:\n  - preset: lorenz/adaptive\n    params:\n      r: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 45.0, config.GetPreset("lorenz", "adaptive").Params["r"])
}

func TestRunScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0644))
	sc, err := LoadScenario(path)
	require.NoError(t, err)

	st := storage.New(t.TempDir())
	require.NoError(t, st.Init())

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), st, logger)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 101, results[0].Result.Trajectory.Len())
	assert.NotEmpty(t, results[0].RunID)
	assert.Empty(t, results[1].RunID)

	runs, err := st.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, results[0].RunID, runs[0].ID)

	assert.Contains(t, logs.String(), "running scenario step")
	assert.Contains(t, logs.String(), "scenario=smoke")
}

func TestRunScenarioStopsOnError(t *testing.T) {
	sc, err := ParseScenario([]byte("runs:\n  - steps: 5\n  - field: henon\n  - steps: 5\n"))
	require.NoError(t, err)

	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), nil, nil)
	assert.ErrorContains(t, err, "run 2")
	assert.Len(t, results, 1)
}

func TestSweepValues(t *testing.T) {
	sw := &ParameterSweep{Min: 10, Max: 30, Points: 5}
	assert.Equal(t, []float64{10, 15, 20, 25, 30}, sw.Values())

	sw.Points = 1
	assert.Equal(t, []float64{10}, sw.Values())
}

func TestRunSweep(t *testing.T) {
	base := config.DefaultConfig()
	base.Steps = 200

	sw := &ParameterSweep{Base: base, Param: "r", Min: 20, Max: 40, Points: 3, Workers: 2}
	results, err := RunSweep(context.Background(), sw, experiment.NewRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, want := range []float64{20, 30, 40} {
		assert.Equal(t, want, results[i].Value)
		assert.False(t, results[i].Diverged)
		assert.Equal(t, 201, results[i].Points)
		assert.Len(t, results[i].FinalState, 3)
	}
	assert.NotEqual(t, results[0].FinalState, results[2].FinalState)
	assert.Equal(t, 45.0, base.Params["r"], "base config must not be modified")
}

func TestRunSweepDivergence(t *testing.T) {
	base := config.DefaultConfig()
	base.Field = "decay"
	base.Params = nil
	base.InitState = []float64{1, 1, 1}
	base.H = 1
	base.Steps = 2000

	sw := &ParameterSweep{Base: base, Param: "k", Min: 1, Max: 1000, Points: 2}
	results, err := RunSweep(context.Background(), sw, experiment.NewRegistry(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.False(t, results[0].Diverged)
	assert.True(t, results[1].Diverged)
}

func TestRunSweepErrors(t *testing.T) {
	reg := experiment.NewRegistry()
	_, err := RunSweep(context.Background(), &ParameterSweep{Base: config.DefaultConfig()}, reg, nil)
	assert.Error(t, err)

	sw := &ParameterSweep{Base: config.DefaultConfig(), Param: "sigma", Min: 1, Max: 2, Points: 2}
	_, err = RunSweep(context.Background(), sw, reg, nil)
	assert.ErrorContains(t, err, "sigma")
}

func TestRunPerturbation(t *testing.T) {
	base := config.DefaultConfig()
	base.Steps = 300

	study := &PerturbationStudy{Base: base, Perturbation: 1e-6, Trials: 4, Seed: 7, Workers: 2}
	ref, results, err := RunPerturbation(context.Background(), study, experiment.NewRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, 301, ref.Trajectory.Len())

	for i, r := range results {
		assert.Equal(t, i, r.Trial)
		for j, v := range r.InitState {
			assert.InDelta(t, base.InitState[j], v, 1e-6)
		}
		assert.Greater(t, r.Separation, 0.0)
	}

	mean, maxSep := SeparationStats(results)
	assert.Greater(t, maxSep, 0.0)
	assert.LessOrEqual(t, mean, maxSep)

	_, again, err := RunPerturbation(context.Background(), study, experiment.NewRegistry(), nil)
	require.NoError(t, err)
	assert.Equal(t, results[0].InitState, again[0].InitState, "same seed, same starts")
}

func TestRunPerturbationErrors(t *testing.T) {
	_, _, err := RunPerturbation(context.Background(), &PerturbationStudy{Base: config.DefaultConfig()}, experiment.NewRegistry(), nil)
	assert.Error(t, err)

	bad := config.DefaultConfig()
	bad.H = 0
	_, _, err = RunPerturbation(context.Background(), &PerturbationStudy{Base: bad, Trials: 1}, experiment.NewRegistry(), nil)
	assert.Error(t, err)

	mean, maxSep := SeparationStats(nil)
	assert.Zero(t, mean)
	assert.Zero(t, maxSep)
}

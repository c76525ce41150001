package config

import (
	"sort"

	"github.com/san-kum/attractor/internal/dynamo"
)

var Presets = map[string]map[string]*Config{
	"lorenz": {
		"classic": {
			Field: "lorenz", Mode: "fixed", Stepper: "rk4", Estimator: "doubling",
			H: 0.001, Tolerance: 1e-6, Steps: 10000, MinH: dynamo.DefaultMinH,
			InitState: []float64{-13, -12, 52},
			Params:    map[string]float64{"a": 16, "r": 45, "b": 4},
		},
		"adaptive": {
			Field: "lorenz", Mode: "adaptive", Stepper: "rk4", Estimator: "doubling",
			H: 0.005, Tolerance: 1e-6, Steps: 5000, MinH: dynamo.DefaultMinH,
			InitState: []float64{-13, -12, 52},
			Params:    map[string]float64{"a": 16, "r": 45, "b": 4},
		},
		"long": {
			Field: "lorenz", Mode: "fixed", Stepper: "rk4", Estimator: "doubling",
			H: 0.001, Tolerance: 1e-6, Steps: 300000, MinH: dynamo.DefaultMinH,
			InitState: []float64{-13, -12, 52},
			Params:    map[string]float64{"a": 16, "r": 45, "b": 4},
		},
		"classic28": {
			Field: "lorenz", Mode: "fixed", Stepper: "rk4", Estimator: "doubling",
			H: 0.001, Tolerance: 1e-6, Steps: 20000, MinH: dynamo.DefaultMinH,
			InitState: []float64{1, 1, 1},
			Params:    map[string]float64{"a": 10, "r": 28, "b": 8.0 / 3.0},
		},
	},
	"rossler": {
		"default": {
			Field: "rossler", Mode: "adaptive", Stepper: "rk4", Estimator: "doubling",
			H: 0.01, Tolerance: 1e-6, Steps: 5000, MinH: dynamo.DefaultMinH,
			InitState: []float64{1, 1, 1},
			Params:    map[string]float64{"a": 0.2, "b": 0.2, "c": 5.7},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(field, preset string) *Config {
	fieldPresets, ok := Presets[field]
	if !ok {
		return nil
	}
	cfg, ok := fieldPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(field string) []string {
	fieldPresets, ok := Presets[field]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(fieldPresets))
	for name := range fieldPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/sim"
)

const (
	DefaultField         = "lorenz"
	DefaultStepper       = "rk4"
	DefaultEstimator     = "doubling"
	DefaultH             = 0.001
	DefaultSteps         = 10000
	DefaultAdaptiveH     = 0.005
	DefaultAdaptiveSteps = 5000
	DefaultTolerance     = 1e-6
)

type Config struct {
	Field           string             `yaml:"field"`
	Mode            string             `yaml:"mode"`
	Stepper         string             `yaml:"stepper"`
	Estimator       string             `yaml:"estimator"`
	H               float64            `yaml:"h"`
	Tolerance       float64            `yaml:"tolerance"`
	Steps           int                `yaml:"steps"`
	MinH            float64            `yaml:"min_h,omitempty"`
	MaxH            float64            `yaml:"max_h,omitempty"`
	InitState       []float64          `yaml:"init_state,omitempty"` // empty means the field's default
	Params          map[string]float64 `yaml:"params,omitempty"`
	CheckDivergence bool               `yaml:"check_divergence"`
}

// DefaultConfig reproduces the reference run: Lorenz with a=16, r=45, b=4
// from (-13, -12, 52), 10000 fixed RK4 steps of 0.001.
func DefaultConfig() *Config {
	return &Config{
		Field:     DefaultField,
		Mode:      string(sim.ModeFixed),
		Stepper:   DefaultStepper,
		Estimator: DefaultEstimator,
		H:         DefaultH,
		Tolerance: DefaultTolerance,
		Steps:     DefaultSteps,
		MinH:      dynamo.DefaultMinH,
		InitState: []float64{-13.0, -12.0, 52.0},
		Params:    map[string]float64{"a": 16.0, "r": 45.0, "b": 4.0},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse overlays YAML onto the default config. Choosing another field drops
// the default Lorenz constants and initial state.
func Parse(data []byte) (*Config, error) {
	var head struct {
		Field string `yaml:"field"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := DefaultConfig()
	if head.Field != "" && head.Field != cfg.Field {
		cfg.Params = nil
		cfg.InitState = nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy so presets are never mutated by callers.
func (c *Config) Clone() *Config {
	out := *c
	out.InitState = append([]float64(nil), c.InitState...)
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return &out
}

func (c *Config) RunMode() (sim.Mode, error) {
	return sim.ParseMode(c.Mode)
}

// Dynamo converts the file level settings into integration settings.
func (c *Config) Dynamo() dynamo.Config {
	return dynamo.Config{
		H:               c.H,
		Tolerance:       c.Tolerance,
		Steps:           c.Steps,
		MinH:            c.MinH,
		MaxH:            c.MaxH,
		CheckDivergence: c.CheckDivergence,
	}
}

// Validate fails fast on anything that would make the run meaningless.
func (c *Config) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("%w: field is required", dynamo.ErrInvalidConfig)
	}
	mode, err := c.RunMode()
	if err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
	}
	for _, v := range c.InitState {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &dynamo.ConfigError{Field: "init_state", Value: v, Reason: "must be finite"}
		}
	}
	for k, v := range c.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &dynamo.ConfigError{Field: "params." + k, Value: v, Reason: "must be finite"}
		}
	}
	if mode == sim.ModeAdaptive {
		return c.Dynamo().ValidateAdaptive()
	}
	return c.Dynamo().ValidateFixed()
}

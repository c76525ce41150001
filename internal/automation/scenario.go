package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/attractor/internal/config"
	"github.com/san-kum/attractor/internal/experiment"
	"github.com/san-kum/attractor/internal/sim"
	"github.com/san-kum/attractor/internal/storage"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Runs        []ScenarioStep `yaml:"runs"`
}

// ScenarioStep is one run. Its keys are those of a run config, applied on
// top of the named preset ("field/preset") or the default config.
type ScenarioStep struct {
	Name   string
	Preset string
	Save   bool
	Config *config.Config
}

func (s *ScenarioStep) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Name   string `yaml:"name"`
		Preset string `yaml:"preset"`
		Save   bool   `yaml:"save"`
		Field  string `yaml:"field"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if head.Preset != "" {
		field, name, _ := strings.Cut(head.Preset, "/")
		cfg = config.GetPreset(field, name)
		if cfg == nil {
			return fmt.Errorf("unknown preset %q", head.Preset)
		}
	} else if head.Field != "" && head.Field != cfg.Field {
		// default Lorenz constants and start do not carry over
		cfg.Params = nil
		cfg.InitState = nil
	}

	if err := node.Decode(cfg); err != nil {
		return err
	}

	s.Name, s.Preset, s.Save, s.Config = head.Name, head.Preset, head.Save, cfg
	if s.Name == "" {
		s.Name = cfg.Field
	}
	return nil
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Runs) == 0 {
		return nil, fmt.Errorf("scenario %q has no runs", scenario.Name)
	}
	return &scenario, nil
}

type ScenarioResult struct {
	Name   string
	RunID  string
	Result *sim.Result
}

// RunScenario executes the runs in order and stops at the first failure.
// Steps marked save are written to st when it is not nil.
func RunScenario(ctx context.Context, scenario *Scenario, reg *experiment.Registry, st *storage.Store, logger *slog.Logger) ([]ScenarioResult, error) {
	results := make([]ScenarioResult, 0, len(scenario.Runs))
	if logger == nil {
		logger = slog.Default()
	}

	for i, step := range scenario.Runs {
		log := logger.With("scenario", scenario.Name, "run", step.Name)
		log.Info("running scenario step", "index", i+1, "of", len(scenario.Runs), "mode", step.Config.Mode)

		exp, err := experiment.New(step.Config, reg, log)
		if err != nil {
			return results, fmt.Errorf("run %d (%s): %w", i+1, step.Name, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("run %d (%s): %w", i+1, step.Name, err)
		}

		sr := ScenarioResult{Name: step.Name, Result: result}
		if step.Save && st != nil {
			meta := storage.Metadata(step.Config, exp.FieldParams(), exp.InitialState(), result)
			if sr.RunID, err = st.Save(meta, result.Trajectory); err != nil {
				return results, fmt.Errorf("run %d (%s) save: %w", i+1, step.Name, err)
			}
			log.Info("saved run", "id", sr.RunID)
		}
		results = append(results, sr)
	}

	return results, nil
}

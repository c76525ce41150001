package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/integrators"
	"github.com/san-kum/attractor/internal/metrics"
	"github.com/san-kum/attractor/internal/physics"
)

type Registry struct {
	fields     map[string]func(map[string]float64) (dynamo.VectorField, error)
	steppers   map[string]func() dynamo.Stepper
	estimators map[string]func(dynamo.Stepper) dynamo.Estimator
}

func NewRegistry() *Registry {
	r := &Registry{
		fields:     make(map[string]func(map[string]float64) (dynamo.VectorField, error)),
		steppers:   make(map[string]func() dynamo.Stepper),
		estimators: make(map[string]func(dynamo.Stepper) dynamo.Estimator),
	}

	r.fields["lorenz"] = func(params map[string]float64) (dynamo.VectorField, error) {
		p, err := physics.LorenzParamsFrom(params)
		if err != nil {
			return nil, err
		}
		return physics.NewLorenz(p), nil
	}
	r.fields["rossler"] = func(params map[string]float64) (dynamo.VectorField, error) {
		return physics.NewRosslerFrom(params)
	}
	r.fields["decay"] = func(params map[string]float64) (dynamo.VectorField, error) {
		k, dim := 1.0, 3
		for name, v := range params {
			switch name {
			case "k":
				k = v
			case "dim":
				dim = int(v)
			default:
				return nil, fmt.Errorf("decay: unknown parameter %q", name)
			}
		}
		if dim < 1 {
			return nil, fmt.Errorf("decay: dim must be positive, got %d", dim)
		}
		return physics.NewDecay(k, dim), nil
	}

	r.steppers["rk4"] = func() dynamo.Stepper { return integrators.NewRK4() }
	r.steppers["euler"] = func() dynamo.Stepper { return integrators.NewEuler() }

	r.estimators["doubling"] = func(s dynamo.Stepper) dynamo.Estimator { return integrators.NewDoubling(s) }
	r.estimators["dopri"] = func(dynamo.Stepper) dynamo.Estimator { return integrators.NewDormandPrince() }

	return r
}

// GetField builds a fresh field; params overlay the field's defaults.
func (r *Registry) GetField(name string, params map[string]float64) (dynamo.VectorField, error) {
	fn, ok := r.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownField, name)
	}
	return fn(params)
}

func (r *Registry) GetStepper(name string) (dynamo.Stepper, error) {
	fn, ok := r.steppers[name]
	if !ok {
		return nil, fmt.Errorf("unknown stepper: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetEstimator(name string, stepper dynamo.Stepper) (dynamo.Estimator, error) {
	fn, ok := r.estimators[name]
	if !ok {
		return nil, fmt.Errorf("unknown estimator: %s", name)
	}
	return fn(stepper), nil
}

func (r *Registry) ListFields() []string     { return sortedKeys(r.fields) }
func (r *Registry) ListSteppers() []string   { return sortedKeys(r.steppers) }
func (r *Registry) ListEstimators() []string { return sortedKeys(r.estimators) }

// DefaultMetrics bounds Lorenz runs by its envelope; other fields only get
// the unbounded statistics.
func (r *Registry) DefaultMetrics(field string) []dynamo.Metric {
	bound := 0.0
	if field == "lorenz" {
		bound = metrics.LorenzEnvelope
	}
	return metrics.Defaults(bound)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package analysis

import (
	"math"

	"github.com/san-kum/attractor/internal/dynamo"
)

// LyapunovExponent estimates the largest Lyapunov exponent using the
// trajectory separation method. A positive value indicates chaos.
//
// Algorithm:
// 1. Run two nearby trajectories
// 2. Measure their divergence over time
// 3. λ ≈ (1/t) * ln(|δx(t)/δx(0)|), renormalising δx after every step
func LyapunovExponent(
	field dynamo.VectorField,
	stepper dynamo.Stepper,
	x0 dynamo.State,
	h float64,
	steps int,
	perturbation float64,
) float64 {
	if len(x0) == 0 || steps <= 0 || perturbation <= 0 {
		return 0
	}

	xp := x0.Clone()
	xp[0] += perturbation
	return separationRate(field, stepper, x0, xp, h, steps, perturbation)
}

// LyapunovSpectrum perturbs each component independently. It is a cheap
// directional probe, not a Gram-Schmidt spectrum.
func LyapunovSpectrum(
	field dynamo.VectorField,
	stepper dynamo.Stepper,
	x0 dynamo.State,
	h float64,
	steps int,
	perturbation float64,
) []float64 {
	spectrum := make([]float64, len(x0))
	if steps <= 0 || perturbation <= 0 {
		return spectrum
	}
	for i := range x0 {
		xp := x0.Clone()
		xp[i] += perturbation
		spectrum[i] = separationRate(field, stepper, x0, xp, h, steps, perturbation)
	}
	return spectrum
}

func separationRate(
	field dynamo.VectorField,
	stepper dynamo.Stepper,
	x0, x0p dynamo.State,
	h float64,
	steps int,
	d0 float64,
) float64 {
	x := x0.Clone()
	xp := x0p.Clone()
	t := 0.0

	sumLog := 0.0
	count := 0

	for i := 0; i < steps; i++ {
		x = stepper.Step(field, h, x, t).State
		xp = stepper.Step(field, h, xp, t).State
		t += h

		sep := xp.Distance(x)
		if !(sep > 0) || math.IsInf(sep, 0) {
			continue
		}
		sumLog += math.Log(sep / d0)
		count++

		scale := d0 / sep
		for j := range xp {
			xp[j] = x[j] + (xp[j]-x[j])*scale
		}
	}

	if count == 0 {
		return 0
	}
	return sumLog / (float64(count) * h)
}

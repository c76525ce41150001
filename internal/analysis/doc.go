// Package analysis provides chaos diagnostics over integrated trajectories.
//
//   - [LyapunovExponent]: largest Lyapunov exponent via trajectory separation
//   - [PowerSpectrum]: magnitude spectrum of a uniformly sampled component
//   - [DominantFrequency]: strongest non-zero frequency of a component
//
// # Chaos Detection
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	lambda := analysis.LyapunovExponent(field, integrators.NewRK4(), x0, h, steps, 1e-8)
//	if lambda > 0 {
//	    // System is chaotic
//	}
package analysis

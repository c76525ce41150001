package analysis

import (
	"math/bits"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT zero pads data to a power of two length and transforms it.
func FFT(data []float64) []complex128 {
	n := nextPow2(len(data))
	if n == 0 {
		return []complex128{}
	}
	padded := make([]float64, n)
	copy(padded, data)
	return fft.FFTReal(padded)
}

// PowerSpectrum returns |X_k| for the non-negative frequencies.
func PowerSpectrum(data []float64) []float64 {
	coeffs := FFT(data)
	ps := make([]float64, len(coeffs)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(coeffs[i])
	}
	return ps
}

// DominantFrequency returns the frequency (in 1/time units) of the largest
// non-DC spectral peak of a series sampled every h.
func DominantFrequency(series []float64, h float64) float64 {
	if len(series) < 4 || h <= 0 {
		return 0
	}

	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))
	centered := make([]float64, len(series))
	for i, v := range series {
		centered[i] = v - mean
	}

	ps := PowerSpectrum(centered)
	best := 0
	for i := 1; i < len(ps); i++ {
		if ps[i] > ps[best] || best == 0 {
			best = i
		}
	}
	n := nextPow2(len(series))
	return float64(best) / (float64(n) * h)
}

func nextPow2(n int) int {
	if n <= 1 {
		return n
	}
	return 1 << bits.Len(uint(n-1))
}

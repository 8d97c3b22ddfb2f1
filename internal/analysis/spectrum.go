package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Spectrum holds power per frequency bin, zero frequency first.
type Spectrum struct {
	Freq  []float64
	Power []float64
}

// PowerSpectrum returns the one-sided power spectrum of series sampled at
// sampleRate Hz. The mean is removed first so a bead resting away from
// angle zero does not dominate bin zero. Series shorter than two samples
// give an empty spectrum.
func PowerSpectrum(series []float64, sampleRate float64) Spectrum {
	n := len(series)
	if n < 2 {
		return Spectrum{}
	}
	mean := stat.Mean(series, nil)
	centered := make([]float64, n)
	for i, v := range series {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centered)

	s := Spectrum{
		Freq:  make([]float64, len(coeff)),
		Power: make([]float64, len(coeff)),
	}
	for i, c := range coeff {
		s.Freq[i] = fft.Freq(i) * sampleRate
		a := cmplx.Abs(c) / float64(n)
		s.Power[i] = a * a
	}
	return s
}

// Dominant is the non-zero frequency with the most power. A flat spectrum
// reports zero.
func (s Spectrum) Dominant() (freq, power float64) {
	for i := 1; i < len(s.Power); i++ {
		if s.Power[i] > power {
			freq, power = s.Freq[i], s.Power[i]
		}
	}
	return freq, power
}

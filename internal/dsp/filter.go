package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// biquad holds one second order section with a0 normalized to 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// Lowpass is a Butterworth lowpass filter realized as cascaded second order
// sections. It is applied forward-backward (zero phase) so that group delay
// does not distort phase-derivative demodulation downstream.
type Lowpass struct {
	sections []biquad
	cutoffHz float64
}

// NewLowpass designs a Butterworth lowpass of the given order with cutoffHz
// at sampleRate. The cutoff must lie strictly between 0 and Nyquist.
func NewLowpass(order int, cutoffHz, sampleRate float64) (*Lowpass, error) {
	if order < 1 {
		return nil, fmt.Errorf("filter order must be at least 1, got %d", order)
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	nyquist := sampleRate / 2
	if cutoffHz <= 0 || cutoffHz >= nyquist {
		return nil, fmt.Errorf("cutoff must be in (0, %f), got %f", nyquist, cutoffHz)
	}

	wn := cutoffHz / nyquist

	// Pre-warp the cutoff for the bilinear transform (fs normalized to 2).
	warped := 4 * math.Tan(math.Pi*wn/2)

	// Analog Butterworth prototype poles on the left half circle, scaled to
	// the warped cutoff, then mapped to the z plane.
	n := order
	digital := make([]complex128, 0, n)
	for k := 0; k < n; k++ {
		theta := math.Pi * float64(2*k+n+1) / float64(2*n)
		p := complex(warped, 0) * cmplx.Exp(complex(0, theta))
		digital = append(digital, (4+p)/(4-p))
	}

	sections := make([]biquad, 0, (n+1)/2)
	for k := 0; k < n/2; k++ {
		zp := digital[k]
		sections = append(sections, biquad{
			b0: 1, b1: 2, b2: 1,
			a1: -2 * real(zp),
			a2: real(zp)*real(zp) + imag(zp)*imag(zp),
		})
	}
	if n%2 == 1 {
		// The single real pole sits at theta = pi.
		zp := real(digital[n/2])
		sections = append(sections, biquad{b0: 1, b1: 1, a1: -zp})
	}

	// Normalize for exactly unit gain at DC.
	dcGain := 1.0
	for _, s := range sections {
		dcGain *= (s.b0 + s.b1 + s.b2) / (1 + s.a1 + s.a2)
	}
	scale := 1 / dcGain
	sections[0].b0 *= scale
	sections[0].b1 *= scale
	sections[0].b2 *= scale

	return &Lowpass{sections: sections, cutoffHz: cutoffHz}, nil
}

// CutoffHz returns the designed cutoff frequency.
func (f *Lowpass) CutoffHz() float64 {
	return f.cutoffHz
}

// apply runs the cascade over x in place (single forward pass).
func (f *Lowpass) apply(x []float64) {
	for _, s := range f.sections {
		var s1, s2 float64
		for i, v := range x {
			out := s.b0*v + s1
			s1 = s.b1*v - s.a1*out + s2
			s2 = s.b2*v - s.a2*out
			x[i] = out
		}
	}
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// filtfilt applies the cascade forward then backward, cancelling phase delay.
func (f *Lowpass) filtfilt(x []float64) {
	f.apply(x)
	reverse(x)
	f.apply(x)
	reverse(x)
}

// FiltFilt zero-phase filters a real signal and returns a new slice.
func (f *Lowpass) FiltFilt(x []float32) []float32 {
	buf := make([]float64, len(x))
	for i, v := range x {
		buf[i] = float64(v)
	}
	f.filtfilt(buf)

	out := make([]float32, len(x))
	for i, v := range buf {
		out[i] = float32(v)
	}
	return out
}

// FiltFiltComplex zero-phase filters a complex signal in place. The
// coefficients are real, so I and Q are filtered independently.
func (f *Lowpass) FiltFiltComplex(x []complex64) {
	re := make([]float64, len(x))
	im := make([]float64, len(x))
	for i, v := range x {
		re[i] = float64(real(v))
		im[i] = float64(imag(v))
	}
	f.filtfilt(re)
	f.filtfilt(im)
	for i := range x {
		x[i] = complex(float32(re[i]), float32(im[i]))
	}
}

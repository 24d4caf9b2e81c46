package dsp

import (
	"math"
	"testing"
)

func TestNewLowpassValidation(t *testing.T) {
	tests := []struct {
		name       string
		order      int
		cutoff     float64
		sampleRate float64
		expectErr  bool
	}{
		{
			name:       "valid design",
			order:      5,
			cutoff:     6250,
			sampleRate: 2400000,
			expectErr:  false,
		},
		{
			name:       "zero order",
			order:      0,
			cutoff:     6250,
			sampleRate: 2400000,
			expectErr:  true,
		},
		{
			name:       "cutoff at nyquist",
			order:      5,
			cutoff:     24000,
			sampleRate: 48000,
			expectErr:  true,
		},
		{
			name:       "negative cutoff",
			order:      5,
			cutoff:     -100,
			sampleRate: 48000,
			expectErr:  true,
		},
		{
			name:       "zero sample rate",
			order:      5,
			cutoff:     4000,
			sampleRate: 0,
			expectErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLowpass(tt.order, tt.cutoff, tt.sampleRate)
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

// rms over the interior of the signal, skipping filter edge transients.
func interiorRMS(x []float32) float64 {
	lo := len(x) / 4
	hi := len(x) - lo
	var sum float64
	for _, v := range x[lo:hi] {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(hi-lo))
}

func TestLowpassPassesAndRejects(t *testing.T) {
	const sampleRate = 48000.0
	filter, err := NewLowpass(5, 1000, sampleRate)
	if err != nil {
		t.Fatalf("Failed to design filter: %v", err)
	}

	makeTone := func(freq float64) []float32 {
		x := make([]float32, 9600)
		for i := range x {
			x[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
		}
		return x
	}

	passband := filter.FiltFilt(makeTone(100))
	stopband := filter.FiltFilt(makeTone(10000))

	passRMS := interiorRMS(passband)
	stopRMS := interiorRMS(stopband)

	// A 100 Hz tone sits well inside the 1 kHz passband.
	if passRMS < 0.6 {
		t.Errorf("Passband tone attenuated too much: rms=%.3f", passRMS)
	}

	// A 10 kHz tone is a decade above cutoff; order 5 applied twice gives
	// far more than 60 dB of rejection.
	if stopRMS > 0.01 {
		t.Errorf("Stopband tone insufficiently rejected: rms=%.4f", stopRMS)
	}
}

func TestLowpassUnityDCGain(t *testing.T) {
	filter, err := NewLowpass(4, 4000, 50000)
	if err != nil {
		t.Fatalf("Failed to design filter: %v", err)
	}

	x := make([]float32, 4000)
	for i := range x {
		x[i] = 0.5
	}

	y := filter.FiltFilt(x)
	mid := y[len(y)/2]
	if math.Abs(float64(mid)-0.5) > 1e-3 {
		t.Errorf("Expected DC level 0.5 in filter interior, got %f", mid)
	}
}

func TestFiltFiltComplexMatchesReal(t *testing.T) {
	const sampleRate = 50000.0
	filter, err := NewLowpass(5, 4000, sampleRate)
	if err != nil {
		t.Fatalf("Failed to design filter: %v", err)
	}

	n := 2000
	re := make([]float32, n)
	for i := range re {
		re[i] = float32(math.Sin(2 * math.Pi * 500 * float64(i) / sampleRate))
	}

	cx := make([]complex64, n)
	for i := range cx {
		cx[i] = complex(re[i], 0)
	}

	want := filter.FiltFilt(re)
	filter.FiltFiltComplex(cx)

	for i := range cx {
		if math.Abs(float64(real(cx[i])-want[i])) > 1e-5 {
			t.Fatalf("Complex and real filtering diverge at %d: %f vs %f", i, real(cx[i]), want[i])
		}
		if imag(cx[i]) != 0 {
			t.Fatalf("Imaginary part leaked at %d: %f", i, imag(cx[i]))
		}
	}
}

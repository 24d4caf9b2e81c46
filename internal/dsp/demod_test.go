package dsp

import (
	"math"
	"testing"

	"hz.tools/rf"
	"hz.tools/sdr"
)

// fmModulate synthesizes complex baseband carrying a single tone at the
// given deviation.
func fmModulate(n int, rate, toneHz, deviationHz float64) sdr.SamplesC64 {
	out := make(sdr.SamplesC64, n)
	phase := 0.0
	for i := range out {
		t := float64(i) / rate
		inst := deviationHz * math.Sin(2*math.Pi*toneHz*t)
		phase += 2 * math.Pi * inst / rate
		out[i] = complex64(complex(math.Cos(phase), math.Sin(phase)))
	}
	return out
}

func countZeroCrossings(x []float32) int {
	n := 0
	for i := 1; i < len(x); i++ {
		if (x[i-1] < 0 && x[i] >= 0) || (x[i-1] >= 0 && x[i] < 0) {
			n++
		}
	}
	return n
}

func TestDemodulatorValidation(t *testing.T) {
	tests := []struct {
		name        string
		deviation   rf.Hz
		audioCutoff rf.Hz
		rate        float64
		outputRate  int
		expectErr   bool
	}{
		{
			name:        "valid",
			deviation:   12500,
			audioCutoff: 4000,
			rate:        50000,
			outputRate:  16000,
			expectErr:   false,
		},
		{
			name:        "zero deviation",
			deviation:   0,
			audioCutoff: 4000,
			rate:        50000,
			outputRate:  16000,
			expectErr:   true,
		},
		{
			name:        "cutoff above nyquist",
			deviation:   12500,
			audioCutoff: 30000,
			rate:        50000,
			outputRate:  16000,
			expectErr:   true,
		},
		{
			name:        "zero output rate",
			deviation:   12500,
			audioCutoff: 4000,
			rate:        50000,
			outputRate:  0,
			expectErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDemodulator(tt.deviation, tt.audioCutoff, tt.rate, tt.outputRate)
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestNBFMRoundTrip(t *testing.T) {
	const (
		rate       = 50000.0
		toneHz     = 1000.0
		devHz      = 5000.0
		outputRate = 16000
	)

	demod, err := NewDemodulator(12500, 4000, rate, outputRate)
	if err != nil {
		t.Fatalf("Failed to create demodulator: %v", err)
	}

	baseband := fmModulate(10000, rate, toneHz, devHz)
	audio := demod.Demodulate(baseband)

	wantLen := demod.OutputSamples(len(baseband))
	if len(audio) != wantLen {
		t.Fatalf("Expected %d output samples, got %d", wantLen, len(audio))
	}

	// Measure the recovered tone frequency by zero crossing rate over the
	// interior of the signal.
	lo := len(audio) / 5
	hi := len(audio) - lo
	interior := audio[lo:hi]
	crossings := countZeroCrossings(interior)
	measured := float64(crossings) * float64(outputRate) / (2 * float64(len(interior)))

	if math.Abs(measured-toneHz)/toneHz > 0.05 {
		t.Errorf("Recovered tone %.1f Hz, want %.1f Hz within 5%%", measured, toneHz)
	}

	// Amplitude after normalization by the nominal 12.5 kHz deviation should
	// sit near devHz/12500.
	peak := devHz / 12500
	rms := interiorRMS(audio)
	wantRMS := peak / math.Sqrt2
	if math.Abs(rms-wantRMS)/wantRMS > 0.2 {
		t.Errorf("Recovered tone rms %.3f, want about %.3f", rms, wantRMS)
	}
}

func TestDemodulateSilentCarrier(t *testing.T) {
	demod, err := NewDemodulator(12500, 4000, 50000, 16000)
	if err != nil {
		t.Fatalf("Failed to create demodulator: %v", err)
	}

	// An unmodulated carrier at baseband has constant phase: audio is zero.
	carrier := make(sdr.SamplesC64, 5000)
	for i := range carrier {
		carrier[i] = 1
	}

	audio := demod.Demodulate(carrier)
	if rms := interiorRMS(audio); rms > 1e-4 {
		t.Errorf("Unmodulated carrier produced audio energy: rms=%f", rms)
	}
}

func TestDemodulateEmptyInput(t *testing.T) {
	demod, err := NewDemodulator(12500, 4000, 50000, 16000)
	if err != nil {
		t.Fatalf("Failed to create demodulator: %v", err)
	}

	if audio := demod.Demodulate(nil); len(audio) != 0 {
		t.Errorf("Expected no output for empty input, got %d samples", len(audio))
	}
}

package dsp

import (
	"fmt"
	"math"

	"hz.tools/rf"
	"hz.tools/sdr"
)

// audioFilterOrder is the Butterworth order for the post-demodulation lowpass.
const audioFilterOrder = 5

// Demodulator converts a channel's complex baseband into real audio via
// instantaneous frequency (phase derivative) demodulation, followed by an
// audio-bandwidth lowpass and a resample to the output rate.
type Demodulator struct {
	deviation  float64
	rate       float64
	outputRate int
	audioLP    *Lowpass
}

// NewDemodulator builds a demodulator for baseband at the given sample rate.
// deviation is the nominal peak frequency deviation used to normalize audio
// into roughly [-1, 1]; audioCutoff bounds the speech bandwidth of the output.
func NewDemodulator(deviation, audioCutoff rf.Hz, rate float64, outputRate int) (*Demodulator, error) {
	if deviation <= 0 {
		return nil, fmt.Errorf("deviation must be positive, got %f", float64(deviation))
	}

	if rate <= 0 {
		return nil, fmt.Errorf("baseband rate must be positive, got %f", rate)
	}

	if outputRate <= 0 {
		return nil, fmt.Errorf("output rate must be positive, got %d", outputRate)
	}

	if float64(audioCutoff) >= rate/2 {
		return nil, fmt.Errorf("audio cutoff %f must be below Nyquist %f", float64(audioCutoff), rate/2)
	}

	audioLP, err := NewLowpass(audioFilterOrder, float64(audioCutoff), rate)
	if err != nil {
		return nil, fmt.Errorf("failed to design audio filter: %w", err)
	}

	return &Demodulator{
		deviation:  float64(deviation),
		rate:       rate,
		outputRate: outputRate,
		audioLP:    audioLP,
	}, nil
}

// OutputRate returns the audio sample rate Demodulate produces.
func (d *Demodulator) OutputRate() int {
	return d.outputRate
}

// OutputSamples returns the audio length Demodulate yields for a baseband
// input of n samples, independent of signal content.
func (d *Demodulator) OutputSamples(n int) int {
	return resampleLen(n, d.rate, float64(d.outputRate))
}

// Demodulate recovers audio from complex baseband. The phase is unwrapped
// before differencing; wrapped differencing would spike at every 2*pi
// boundary. Output is normalized by the nominal deviation and hard-clipped
// to [-2, 2] to bound blow-up from noise bursts.
func (d *Demodulator) Demodulate(baseband sdr.SamplesC64) []float32 {
	if len(baseband) == 0 {
		return nil
	}

	audio := make([]float32, len(baseband))

	prevPhase := math.Atan2(float64(imag(baseband[0])), float64(real(baseband[0])))
	scale := d.rate / (2 * math.Pi * d.deviation)
	for i := 1; i < len(baseband); i++ {
		phase := math.Atan2(float64(imag(baseband[i])), float64(real(baseband[i])))
		delta := phase - prevPhase
		// Unwrap: fold the phase step into (-pi, pi].
		delta -= 2 * math.Pi * math.Round(delta/(2*math.Pi))
		prevPhase = phase

		v := delta * scale
		if v > 2 {
			v = 2
		} else if v < -2 {
			v = -2
		}
		audio[i] = float32(v)
	}
	// Repeat the first computed value so output length matches input.
	if len(audio) > 1 {
		audio[0] = audio[1]
	}

	audio = d.audioLP.FiltFilt(audio)

	return Resample(audio, d.rate, float64(d.outputRate))
}

package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"hz.tools/rf"
	"hz.tools/sdr"
)

// intermediateRateTarget bounds the demodulator's input rate: after channel
// filtering the signal is decimated so the intermediate rate lands close to
// 50 kHz, well above twice the audio bandwidth.
const intermediateRateTarget = 50000.0

// channelFilterOrder is the Butterworth order for the channel lowpass.
const channelFilterOrder = 5

// ChannelExtractor isolates one narrowband channel from a wideband block:
// mix to baseband at the channel offset, lowpass to the channel bandwidth,
// decimate to the intermediate rate.
type ChannelExtractor struct {
	offset     rf.Hz
	sampleRate float64
	blockSize  int
	decim      int
	filter     *Lowpass
}

// NewChannelExtractor builds an extractor for a channel at offset Hz from the
// capture's center frequency. blockSize fixes the number of complex samples
// per wideband block; shorter input is zero padded and longer input truncated
// so downstream buffer sizes stay deterministic.
func NewChannelExtractor(offset rf.Hz, sampleRate float64, blockSize int, bandwidth rf.Hz) (*ChannelExtractor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}

	if bandwidth <= 0 {
		return nil, fmt.Errorf("channel bandwidth must be positive, got %f", float64(bandwidth))
	}

	nyquist := sampleRate / 2
	cutoff := math.Min(float64(bandwidth)/2, nyquist*0.4)

	filter, err := NewLowpass(channelFilterOrder, cutoff, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to design channel filter: %w", err)
	}

	decim := int(sampleRate / intermediateRateTarget)
	if decim < 1 {
		decim = 1
	}

	return &ChannelExtractor{
		offset:     offset,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		decim:      decim,
		filter:     filter,
	}, nil
}

// IntermediateRate returns the sample rate of the extracted baseband after
// decimation.
func (e *ChannelExtractor) IntermediateRate() float64 {
	return e.sampleRate / float64(e.decim)
}

// IntermediateSamples returns the number of complex samples Extract yields
// per block, a pure function of the configured block size.
func (e *ChannelExtractor) IntermediateSamples() int {
	return (e.blockSize + e.decim - 1) / e.decim
}

// Offset returns the channel's frequency offset from the capture center.
func (e *ChannelExtractor) Offset() rf.Hz {
	return e.offset
}

// Extract produces the channel's complex baseband from one wideband block.
// The mixing oscillator restarts at phase zero on every block: blocks are
// demodulated independently, no oscillator state is carried across calls.
// The input block is never modified.
func (e *ChannelExtractor) Extract(block sdr.SamplesC64) sdr.SamplesC64 {
	// copy pads short blocks with zeros and truncates long ones.
	baseband := make(sdr.SamplesC64, e.blockSize)
	copy(baseband, block)

	// Mix to baseband with an incremental complex rotation at
	// -2*pi*offset/sampleRate per sample. The rotator is renormalized
	// periodically to keep magnitude drift below float precision noise.
	step := cmplx.Exp(complex(0, -2*math.Pi*float64(e.offset)/e.sampleRate))
	osc := complex(1, 0)
	for i := range baseband {
		baseband[i] = complex64(complex128(baseband[i]) * osc)
		osc *= step
		if i%1024 == 1023 {
			osc /= complex(cmplx.Abs(osc), 0)
		}
	}

	e.filter.FiltFiltComplex(baseband)

	if e.decim == 1 {
		return baseband
	}

	out := make(sdr.SamplesC64, 0, e.IntermediateSamples())
	for i := 0; i < len(baseband); i += e.decim {
		out = append(out, baseband[i])
	}
	return out
}

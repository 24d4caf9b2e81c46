package dsp

import (
	"fmt"

	"hz.tools/rf"
	"hz.tools/sdr"
)

// NumChannels is the fixed number of narrowband channels extracted from the
// wideband capture.
const NumChannels = 7

// ChannelizerConfig describes the wideband capture and the channels to
// extract from it.
type ChannelizerConfig struct {
	CenterFreq  rf.Hz   // capture center frequency
	SampleRate  float64 // wideband complex sample rate
	Frequencies []rf.Hz // absolute target frequencies, exactly NumChannels
	BlockSize   int     // complex samples per wideband block
	Bandwidth   rf.Hz   // per-channel bandwidth
	Deviation   rf.Hz   // nominal NBFM peak deviation
	AudioCutoff rf.Hz   // speech bandwidth for the output audio
	OutputRate  int     // output audio sample rate
}

// Channelizer extracts, demodulates and resamples all channels from one
// wideband block at a time. Filter instances are owned per channel; the
// Channelizer itself holds no cross-channel shared state and one block is
// processed independently of the next.
type Channelizer struct {
	extractors [NumChannels]*ChannelExtractor
	demod      *Demodulator
	blockSize  int
	outputRate int
}

// NewChannelizer validates the configuration and builds the per-channel
// extraction pipelines.
func NewChannelizer(cfg ChannelizerConfig) (*Channelizer, error) {
	if len(cfg.Frequencies) != NumChannels {
		return nil, fmt.Errorf("expected exactly %d channel frequencies, got %d", NumChannels, len(cfg.Frequencies))
	}

	c := &Channelizer{
		blockSize:  cfg.BlockSize,
		outputRate: cfg.OutputRate,
	}

	for i, freq := range cfg.Frequencies {
		offset := freq - cfg.CenterFreq
		ext, err := NewChannelExtractor(offset, cfg.SampleRate, cfg.BlockSize, cfg.Bandwidth)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", i+1, err)
		}
		c.extractors[i] = ext
	}

	// All channels share one intermediate rate, so a single demodulator
	// design serves every channel. Demodulation itself is stateless.
	demod, err := NewDemodulator(cfg.Deviation, cfg.AudioCutoff, c.extractors[0].IntermediateRate(), cfg.OutputRate)
	if err != nil {
		return nil, fmt.Errorf("demodulator: %w", err)
	}
	c.demod = demod

	return c, nil
}

// OutputRate returns the audio sample rate of every produced chunk.
func (c *Channelizer) OutputRate() int {
	return c.outputRate
}

// BlockSize returns the wideband block length each call to ProcessBlock
// expects. Shorter blocks are zero padded, longer ones truncated.
func (c *Channelizer) BlockSize() int {
	return c.blockSize
}

// ChunkSamples returns the audio samples produced per channel per block,
// determined solely by the block size and resampling ratio.
func (c *Channelizer) ChunkSamples() int {
	return c.demod.OutputSamples(c.extractors[0].IntermediateSamples())
}

// ProcessBlock runs one wideband block through all channel pipelines and
// returns exactly NumChannels audio chunks, indexed by channel. The input
// block is not retained.
func (c *Channelizer) ProcessBlock(block sdr.SamplesC64) [][]float32 {
	out := make([][]float32, NumChannels)
	for i, ext := range c.extractors {
		baseband := ext.Extract(block)
		out[i] = c.demod.Demodulate(baseband)
	}
	return out
}

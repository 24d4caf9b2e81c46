package source

import (
	"fmt"
	"io"
	"math"
	"math/rand"

	"hz.tools/rf"
	"hz.tools/sdr"
)

// SynthConfig describes a deterministic synthetic wideband scene: one
// carrier per channel, one of them FM-modulated with a voice-band tone, the
// rest keyed but idle, all over a low noise floor.
type SynthConfig struct {
	SampleRate  uint
	CenterFreq  rf.Hz
	Frequencies []rf.Hz // absolute carrier frequencies
	IdleOffset  rf.Hz   // idle carriers sit this far off their channel center

	ActiveChannel int     // 1-based index of the modulated carrier; 0 for none
	ToneHz        float64 // modulation tone frequency
	Deviation     rf.Hz   // modulation peak deviation

	SignalBlocks int // blocks carrying modulation
	TotalBlocks  int // blocks before EOF; the remainder are idle

	NoiseAmplitude  float64
	Seed            int64
	UnavailableRuns int // initial reads answered with ErrUnavailable
}

// SynthSource generates wideband blocks per SynthConfig. Carrier phases are
// continuous across blocks, like a real transmitter.
type SynthSource struct {
	cfg    SynthConfig
	rng    *rand.Rand
	phases []float64
	blocks int
	fails  int
}

// NewSynthSource validates cfg and creates the generator.
func NewSynthSource(cfg SynthConfig) (*SynthSource, error) {
	if cfg.SampleRate == 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}

	if len(cfg.Frequencies) == 0 {
		return nil, fmt.Errorf("at least one carrier frequency required")
	}

	if cfg.ActiveChannel < 0 || cfg.ActiveChannel > len(cfg.Frequencies) {
		return nil, fmt.Errorf("active channel %d out of range 0..%d", cfg.ActiveChannel, len(cfg.Frequencies))
	}

	if cfg.TotalBlocks < cfg.SignalBlocks {
		return nil, fmt.Errorf("total blocks %d below signal blocks %d", cfg.TotalBlocks, cfg.SignalBlocks)
	}

	if cfg.IdleOffset == 0 {
		cfg.IdleOffset = 300
	}

	return &SynthSource{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		phases: make([]float64, len(cfg.Frequencies)),
	}, nil
}

// ReadBlock synthesizes the next wideband block into buf.
func (s *SynthSource) ReadBlock(buf sdr.SamplesC64) (int, error) {
	if s.fails < s.cfg.UnavailableRuns {
		s.fails++
		return 0, ErrUnavailable
	}

	if s.blocks >= s.cfg.TotalBlocks {
		return 0, io.EOF
	}

	rate := float64(s.cfg.SampleRate)
	modulated := s.blocks < s.cfg.SignalBlocks
	start := s.blocks * len(buf)

	for i := range buf {
		var sample complex128
		for ch := range s.cfg.Frequencies {
			offset := float64(s.cfg.Frequencies[ch] - s.cfg.CenterFreq)
			inst := offset + float64(s.cfg.IdleOffset)
			if modulated && ch == s.cfg.ActiveChannel-1 {
				t := float64(start+i) / rate
				inst = offset + float64(s.cfg.Deviation)*math.Sin(2*math.Pi*s.cfg.ToneHz*t)
			}
			s.phases[ch] += 2 * math.Pi * inst / rate
			sample += complex(math.Cos(s.phases[ch]), math.Sin(s.phases[ch]))
		}
		if s.cfg.NoiseAmplitude > 0 {
			sample += complex(
				s.rng.NormFloat64()*s.cfg.NoiseAmplitude,
				s.rng.NormFloat64()*s.cfg.NoiseAmplitude,
			)
		}
		buf[i] = complex64(sample)
	}

	s.blocks++
	return len(buf), nil
}

// SampleRate returns the configured wideband sample rate.
func (s *SynthSource) SampleRate() uint {
	return s.cfg.SampleRate
}

// Close is a no-op for the synthetic source.
func (s *SynthSource) Close() error {
	return nil
}

package source

import (
	"errors"
	"fmt"
	"io"

	"hz.tools/sdr"
)

// RawIQSource reads the interleaved uint8 I/Q byte stream produced by
// rtl_sdr and friends, converting each pair to a complex sample in [-1, 1].
type RawIQSource struct {
	r          io.Reader
	closer     io.Closer
	sampleRate uint
	buf        []byte
}

// NewRawIQSource wraps r as a raw uint8 IQ stream at the given wideband
// sample rate. If closer is non-nil it is closed when the source is closed.
func NewRawIQSource(r io.Reader, closer io.Closer, sampleRate uint) (*RawIQSource, error) {
	if sampleRate == 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}
	return &RawIQSource{r: r, closer: closer, sampleRate: sampleRate}, nil
}

// ReadBlock fills buf with complex samples decoded from the byte stream.
func (s *RawIQSource) ReadBlock(buf sdr.SamplesC64) (int, error) {
	need := len(buf) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	raw := s.buf[:need]

	n, err := io.ReadFull(s.r, raw)
	pairs := n / 2
	decodeIQBytes(raw[:pairs*2], buf[:pairs])

	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) && pairs > 0 {
			return pairs, nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}
		return pairs, fmt.Errorf("raw IQ read failed: %w", err)
	}
	return pairs, nil
}

// SampleRate returns the configured wideband sample rate.
func (s *RawIQSource) SampleRate() uint {
	return s.sampleRate
}

// Close releases the underlying stream, if any.
func (s *RawIQSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// decodeIQBytes converts interleaved uint8 I,Q pairs centered at 127.5 into
// complex samples in [-1, 1].
func decodeIQBytes(raw []byte, out sdr.SamplesC64) {
	for i := range out {
		re := (float32(raw[2*i]) - 127.5) / 127.5
		im := (float32(raw[2*i+1]) - 127.5) / 127.5
		out[i] = complex(re, im)
	}
}

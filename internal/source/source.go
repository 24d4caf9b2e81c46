package source

import (
	"errors"
	"fmt"
	"io"

	"hz.tools/rfcap"
	"hz.tools/sdr"
	"hz.tools/sdr/stream"
)

// ErrUnavailable signals a transient read failure. Callers should back off
// briefly and retry rather than treat it as fatal.
var ErrUnavailable = errors.New("source: no data available")

// Source yields fixed-size blocks of complex baseband samples. ReadBlock
// fills buf and returns the number of samples read; io.EOF means the source
// is exhausted, ErrUnavailable means retry later. Close releases the
// underlying resource and is safe to call once reads have stopped.
type Source interface {
	ReadBlock(buf sdr.SamplesC64) (int, error)
	SampleRate() uint
	Close() error
}

// CaptureSource reads wideband IQ from an rfcap capture stream (a file or a
// pipe), converting whatever sample format the capture carries to complex64.
type CaptureSource struct {
	reader sdr.Reader
	closer io.Closer
}

// NewCaptureSource wraps r as an rfcap stream. If closer is non-nil it is
// closed when the source is closed.
func NewCaptureSource(r io.Reader, closer io.Closer) (*CaptureSource, error) {
	reader, _, err := rfcap.Reader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open rfcap stream: %w", err)
	}

	reader, err = stream.ConvertReader(reader, sdr.SampleFormatC64)
	if err != nil {
		return nil, fmt.Errorf("failed to convert capture to complex64: %w", err)
	}

	return &CaptureSource{reader: reader, closer: closer}, nil
}

// ReadBlock fills buf from the capture stream.
func (s *CaptureSource) ReadBlock(buf sdr.SamplesC64) (int, error) {
	n, err := sdr.ReadFull(s.reader, buf)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) && n > 0 {
			// Final short block; the channelizer zero-pads it.
			return n, nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}
		return n, fmt.Errorf("capture read failed: %w", err)
	}
	return n, nil
}

// SampleRate returns the capture's wideband sample rate.
func (s *CaptureSource) SampleRate() uint {
	return uint(s.reader.SampleRate())
}

// Close releases the underlying stream, if any.
func (s *CaptureSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

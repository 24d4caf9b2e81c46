package vad

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Config holds the detection parameters for one channel's detector.
type Config struct {
	SampleRate    int           // audio sample rate in Hz
	Threshold     float64       // RMS energy threshold for a speech frame
	FrameDuration time.Duration // fixed frame length
	MinSpeech     time.Duration // minimum accumulated speech for a valid segment
	EndSilence    time.Duration // trailing silence that closes a segment
}

// Detector is a two-state (silence/speech) machine over fixed-duration audio
// frames. It buffers frames while in speech, including trailing silent
// frames, and emits the concatenated buffer as one segment once the silence
// run reaches the configured length. It performs no I/O and never blocks;
// each instance is owned by a single channel pipeline.
type Detector struct {
	threshold        float64
	frameSamples     int
	minSpeechFrames  int
	endSilenceFrames int

	// State machine
	inSpeech      bool
	speechFrames  int
	silenceFrames int
	buffer        []float32

	// Statistics
	framesProcessed uint64
	speechDetected  uint64
	segmentsEmitted uint64

	mu sync.Mutex
}

// Stats reports detector counters for monitoring.
type Stats struct {
	FramesProcessed uint64 `json:"frames_processed"`
	SpeechFrames    uint64 `json:"speech_frames"`
	SegmentsEmitted uint64 `json:"segments_emitted"`
	InSpeech        bool   `json:"in_speech"`
}

// NewDetector validates the configuration and creates a detector.
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}

	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive, got %f", cfg.Threshold)
	}

	if cfg.FrameDuration <= 0 {
		return nil, fmt.Errorf("frame duration must be positive, got %v", cfg.FrameDuration)
	}

	frameSamples := int(float64(cfg.SampleRate) * cfg.FrameDuration.Seconds())
	if frameSamples < 1 {
		return nil, fmt.Errorf("frame duration %v too short for sample rate %d", cfg.FrameDuration, cfg.SampleRate)
	}

	minSpeechFrames := int(cfg.MinSpeech / cfg.FrameDuration)
	if minSpeechFrames < 1 {
		minSpeechFrames = 1
	}

	endSilenceFrames := int(cfg.EndSilence / cfg.FrameDuration)
	if endSilenceFrames < 1 {
		endSilenceFrames = 1
	}

	return &Detector{
		threshold:        cfg.Threshold,
		frameSamples:     frameSamples,
		minSpeechFrames:  minSpeechFrames,
		endSilenceFrames: endSilenceFrames,
	}, nil
}

// FrameSamples returns the fixed frame length in samples.
func (d *Detector) FrameSamples() int {
	return d.frameSamples
}

// Process feeds one audio chunk through the state machine and returns a
// complete speech segment when one ends inside the chunk, or nil. A trailing
// partial frame shorter than the frame length is dropped rather than carried
// into the next chunk, so segment boundaries stay aligned to whole frames.
func (d *Detector) Process(audio []float32) []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	for offset := 0; offset+d.frameSamples <= len(audio); offset += d.frameSamples {
		frame := audio[offset : offset+d.frameSamples]
		d.framesProcessed++

		if frameRMS(frame) >= d.threshold {
			d.silenceFrames = 0
			d.speechFrames++
			d.speechDetected++
			if !d.inSpeech {
				d.buffer = d.buffer[:0]
				d.inSpeech = true
			}
			d.buffer = append(d.buffer, frame...)
			continue
		}

		if !d.inSpeech {
			d.silenceFrames = 0
			continue
		}

		// Silent frame during speech: keep it so the emitted segment
		// retains its natural trailing silence.
		d.silenceFrames++
		d.buffer = append(d.buffer, frame...)

		if d.silenceFrames < d.endSilenceFrames {
			continue
		}

		if d.speechFrames >= d.minSpeechFrames {
			segment := make([]float32, len(d.buffer))
			copy(segment, d.buffer)
			d.reset()
			d.segmentsEmitted++
			return segment
		}

		// Too short to be real speech.
		d.reset()
	}

	return nil
}

// Flush emits any buffered speech that never reached trailing silence, used
// at shutdown to avoid losing an in-progress segment. The buffer is
// discarded if it holds less than the minimum speech duration.
func (d *Detector) Flush() []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.inSpeech || len(d.buffer) == 0 || d.speechFrames < d.minSpeechFrames {
		d.reset()
		return nil
	}

	segment := make([]float32, len(d.buffer))
	copy(segment, d.buffer)
	d.reset()
	d.segmentsEmitted++
	return segment
}

// GetStats returns current detector counters.
func (d *Detector) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		FramesProcessed: d.framesProcessed,
		SpeechFrames:    d.speechDetected,
		SegmentsEmitted: d.segmentsEmitted,
		InSpeech:        d.inSpeech,
	}
}

func (d *Detector) reset() {
	d.inSpeech = false
	d.speechFrames = 0
	d.silenceFrames = 0
	d.buffer = d.buffer[:0]
}

func frameRMS(frame []float32) float64 {
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

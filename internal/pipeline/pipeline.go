package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"hz.tools/sdr"

	"github.com/skypro1111/nbfm-scanner/internal/dsp"
	"github.com/skypro1111/nbfm-scanner/internal/metrics"
	"github.com/skypro1111/nbfm-scanner/internal/segment"
	"github.com/skypro1111/nbfm-scanner/internal/source"
	"github.com/skypro1111/nbfm-scanner/internal/vad"
)

// Transcriber converts one speech segment to text. Implementations may be
// slow; the pipeline never calls it from the capture stage.
type Transcriber interface {
	Transcribe(ctx context.Context, seg *segment.Segment) (string, error)
}

// Notifier publishes one transcript downstream. Best effort: the pipeline
// logs a false return and moves on.
type Notifier interface {
	Notify(ctx context.Context, transcript string, channel int, sessionID string) bool
}

// Config contains everything the pipeline needs to run
type Config struct {
	Source      source.Source
	Channelizer *dsp.Channelizer
	VAD         vad.Config

	QueueCapacity  int
	StartupTimeout time.Duration
	RetryInterval  time.Duration
	DrainTimeout   time.Duration

	Transcriber Transcriber
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Stats is a snapshot of pipeline counters
type Stats struct {
	BlocksProcessed  uint64 `json:"blocks_processed"`
	SourceRetries    uint64 `json:"source_retries"`
	SegmentsEmitted  uint64 `json:"segments_emitted"`
	SegmentsDropped  uint64 `json:"segments_dropped"`
	Transcripts      uint64 `json:"transcripts"`
	TranscribeErrors uint64 `json:"transcribe_errors"`
	NotifyFailures   uint64 `json:"notify_failures"`
}

// Pipeline owns the capture stage, the per-channel VADs and queues, and the
// dispatch workers. The capture stage never blocks on dispatch: segments go
// through bounded drop-oldest queues.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger

	detectors []*vad.Detector
	queues    []*segment.Queue
	blockBuf  sdr.SamplesC64

	stats Stats
	mu    sync.RWMutex
}

// New creates a pipeline from the given configuration.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.Channelizer == nil {
		return nil, fmt.Errorf("channelizer is required")
	}
	if cfg.Transcriber == nil {
		return nil, fmt.Errorf("transcriber is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if cfg.QueueCapacity < 1 {
		return nil, fmt.Errorf("queue capacity must be at least 1, got %d", cfg.QueueCapacity)
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	vadCfg := cfg.VAD
	vadCfg.SampleRate = cfg.Channelizer.OutputRate()

	p := &Pipeline{
		cfg:       cfg,
		logger:    cfg.Logger,
		detectors: make([]*vad.Detector, dsp.NumChannels),
		queues:    make([]*segment.Queue, dsp.NumChannels),
		blockBuf:  make(sdr.SamplesC64, cfg.Channelizer.BlockSize()),
	}

	for i := 0; i < dsp.NumChannels; i++ {
		detector, err := vad.NewDetector(vadCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create VAD for channel %d: %w", i+1, err)
		}
		p.detectors[i] = detector

		queue, err := segment.NewQueue(cfg.QueueCapacity)
		if err != nil {
			return nil, fmt.Errorf("failed to create queue for channel %d: %w", i+1, err)
		}
		p.queues[i] = queue
	}

	return p, nil
}

// Run drives the pipeline until the source is exhausted or ctx is
// cancelled. On return all VADs have been flushed and every queued segment
// has been dispatched or dropped.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := p.captureLoop(gctx)
		// Flush before closing so in-progress speech still reaches dispatch.
		p.flushDetectors()
		for _, q := range p.queues {
			q.Close()
		}
		return err
	})

	for i := 0; i < dsp.NumChannels; i++ {
		idx := i
		g.Go(func() error {
			p.dispatchLoop(idx)
			return nil
		})
	}

	return g.Wait()
}

// captureLoop reads wideband blocks and feeds them through the channelizer
// and VADs until EOF, a fatal source error, or cancellation.
func (p *Pipeline) captureLoop(ctx context.Context) error {
	gotFirstBlock := false
	startupDeadline := time.Now().Add(p.cfg.StartupTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := p.cfg.Source.ReadBlock(p.blockBuf)
		if err != nil {
			if errors.Is(err, source.ErrUnavailable) {
				p.recordSourceRetry()
				if !gotFirstBlock && time.Now().After(startupDeadline) {
					return fmt.Errorf("no data from source within %v", p.cfg.StartupTimeout)
				}
				select {
				case <-time.After(p.cfg.RetryInterval):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if errors.Is(err, io.EOF) {
				p.logger.Info("Source exhausted, stopping capture")
				return nil
			}
			return fmt.Errorf("source read failed: %w", err)
		}

		gotFirstBlock = true
		p.processBlock(p.blockBuf[:n])
	}
}

// processBlock channelizes one wideband block and runs each channel's audio
// through its VAD, enqueueing any finished segments.
func (p *Pipeline) processBlock(block sdr.SamplesC64) {
	start := time.Now()
	chunks := p.cfg.Channelizer.ProcessBlock(block)

	for ch, chunk := range chunks {
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.RecordChunkProduced()
		}
		if seg := p.detectors[ch].Process(chunk); seg != nil {
			p.enqueue(ch, seg)
		}
	}

	p.mu.Lock()
	p.stats.BlocksProcessed++
	p.mu.Unlock()

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordBlockProcessed(len(block), time.Since(start).Seconds())
	}
}

// enqueue publishes one finished segment on its channel's queue with
// drop-oldest semantics. ch is the 0-based channel index.
func (p *Pipeline) enqueue(ch int, samples []float32) {
	seg := &segment.Segment{
		Channel:    ch + 1,
		Samples:    samples,
		SampleRate: p.cfg.Channelizer.OutputRate(),
		CapturedAt: time.Now(),
	}

	evicted := p.queues[ch].Enqueue(seg)

	p.mu.Lock()
	p.stats.SegmentsEmitted++
	if evicted {
		p.stats.SegmentsDropped++
	}
	p.mu.Unlock()

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordSegmentEmitted(seg.Channel, seg.Duration().Seconds())
		p.cfg.Metrics.SetQueueDepth(seg.Channel, p.queues[ch].Len())
		if evicted {
			p.cfg.Metrics.RecordQueueEviction(seg.Channel)
		}
	}

	if evicted {
		p.logger.Warn("Dispatch queue full, dropped oldest segment",
			slog.Int("channel", seg.Channel),
			slog.Uint64("total_dropped", p.queues[ch].Dropped()),
		)
	}

	p.logger.Debug("Segment emitted",
		slog.Int("channel", seg.Channel),
		slog.Duration("duration", seg.Duration()),
		slog.Int("queue_depth", p.queues[ch].Len()),
	)
}

// flushDetectors salvages in-progress speech from every channel's VAD.
func (p *Pipeline) flushDetectors() {
	for ch, detector := range p.detectors {
		if seg := detector.Flush(); seg != nil {
			p.logger.Info("Flushed in-progress segment at shutdown",
				slog.Int("channel", ch+1),
			)
			p.enqueue(ch, seg)
		}
		if p.cfg.Metrics != nil {
			stats := detector.GetStats()
			p.cfg.Metrics.RecordVADFrames(ch+1, stats.FramesProcessed, stats.SpeechFrames)
		}
	}
}

// dispatchLoop drains one channel's queue, transcribing and publishing each
// segment. Failures are logged and the segment dropped; the loop only ends
// when the queue is closed and empty.
func (p *Pipeline) dispatchLoop(idx int) {
	logger := p.logger.With(slog.Int("channel", idx+1))

	for seg := range p.queues[idx].C() {
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.SetQueueDepth(idx+1, p.queues[idx].Len())
		}
		p.dispatch(logger, seg)
	}
}

// dispatch handles one segment end to end. It runs on a detached timeout
// context so pipeline cancellation does not abort in-flight work.
func (p *Pipeline) dispatch(logger *slog.Logger, seg *segment.Segment) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.DrainTimeout)
	defer cancel()

	start := time.Now()
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordTranscriptionRequest()
	}

	text, err := p.cfg.Transcriber.Transcribe(ctx, seg)
	elapsed := time.Since(start)

	if err != nil {
		p.mu.Lock()
		p.stats.TranscribeErrors++
		p.mu.Unlock()
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.RecordTranscriptionFailure(elapsed.Seconds())
		}
		logger.Warn("Transcription failed, dropping segment",
			slog.Duration("segment_duration", seg.Duration()),
			slog.String("error", err.Error()),
		)
		return
	}

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordTranscriptionSuccess(elapsed.Seconds())
	}

	text = strings.TrimSpace(text)
	if text == "" {
		logger.Debug("Empty transcript, nothing to publish",
			slog.Duration("segment_duration", seg.Duration()),
		)
		return
	}

	p.mu.Lock()
	p.stats.Transcripts++
	p.mu.Unlock()

	sessionID := fmt.Sprintf("scan_ch%d_%d", seg.Channel, seg.CapturedAt.Unix())
	ok := p.cfg.Notifier.Notify(ctx, text, seg.Channel, sessionID)

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordFeedNotification(ok)
	}

	if !ok {
		p.mu.Lock()
		p.stats.NotifyFailures++
		p.mu.Unlock()
		logger.Warn("Feed notification failed",
			slog.String("session_id", sessionID),
		)
		return
	}

	logger.Info("Transcript published",
		slog.String("session_id", sessionID),
		slog.Duration("segment_duration", seg.Duration()),
		slog.Duration("transcription_time", elapsed),
		slog.Int("transcript_len", len(text)),
	)
}

func (p *Pipeline) recordSourceRetry() {
	p.mu.Lock()
	p.stats.SourceRetries++
	p.mu.Unlock()

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordSourceRetry()
	}
}

// GetStats returns a snapshot of the pipeline counters
func (p *Pipeline) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

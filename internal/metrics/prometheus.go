package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the NBFM scanner
type Metrics struct {
	// Capture metrics
	BlocksProcessed prometheus.Counter
	SourceRetries   prometheus.Counter
	SamplesRead     prometheus.Counter

	// Channelizer metrics
	ChunksProduced    prometheus.Counter
	ChannelizeSeconds prometheus.Histogram

	// VAD metrics
	VADFramesProcessed *prometheus.CounterVec
	VADSpeechFrames    *prometheus.CounterVec
	SegmentsEmitted    *prometheus.CounterVec
	SegmentDuration    prometheus.Histogram

	// Queue metrics
	QueueEvictions *prometheus.CounterVec
	QueueDepth     *prometheus.GaugeVec

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Feed metrics
	FeedNotifications prometheus.Counter
	FeedFailures      prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		BlocksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scanner_blocks_processed_total",
			Help: "Total number of wideband IQ blocks processed",
		}),
		SourceRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scanner_source_retries_total",
			Help: "Total number of transient source read failures retried",
		}),
		SamplesRead: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scanner_samples_read_total",
			Help: "Total number of complex samples read from the source",
		}),

		// Channelizer metrics
		ChunksProduced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scanner_audio_chunks_produced_total",
			Help: "Total number of per-channel audio chunks produced",
		}),
		ChannelizeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_channelize_duration_seconds",
			Help:    "Time spent channelizing one wideband block",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		}),

		// VAD metrics
		VADFramesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_vad_frames_processed_total",
			Help: "Total number of VAD frames processed",
		}, []string{"channel"}),
		VADSpeechFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_vad_speech_frames_total",
			Help: "Total number of VAD frames classified as speech",
		}, []string{"channel"}),
		SegmentsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_segments_emitted_total",
			Help: "Total number of speech segments emitted",
		}, []string{"channel"}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_segment_duration_seconds",
			Help:    "Duration of emitted speech segments",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),

		// Queue metrics
		QueueEvictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_queue_evictions_total",
			Help: "Total number of segments evicted from full dispatch queues",
		}, []string{"channel"}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scanner_queue_depth",
			Help: "Current number of segments waiting in each dispatch queue",
		}, []string{"channel"}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scanner_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scanner_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scanner_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Feed metrics
		FeedNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scanner_feed_notifications_total",
			Help: "Total number of transcript notifications sent to the feed",
		}),
		FeedFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scanner_feed_failures_total",
			Help: "Total number of failed feed notifications",
		}),
	}
}

// channelLabel formats a 1-based channel index as a metric label value.
func channelLabel(channel int) string {
	return strconv.Itoa(channel)
}

// RecordBlockProcessed records one completed wideband block
func (m *Metrics) RecordBlockProcessed(samples int, channelizeSeconds float64) {
	m.BlocksProcessed.Inc()
	m.SamplesRead.Add(float64(samples))
	m.ChannelizeSeconds.Observe(channelizeSeconds)
}

// RecordSourceRetry increments the transient source failure counter
func (m *Metrics) RecordSourceRetry() {
	m.SourceRetries.Inc()
}

// RecordChunkProduced increments the per-channel chunk counter
func (m *Metrics) RecordChunkProduced() {
	m.ChunksProduced.Inc()
}

// RecordVADFrames records processed and speech-classified frame counts for a channel
func (m *Metrics) RecordVADFrames(channel int, processed, speech uint64) {
	label := channelLabel(channel)
	m.VADFramesProcessed.WithLabelValues(label).Add(float64(processed))
	m.VADSpeechFrames.WithLabelValues(label).Add(float64(speech))
}

// RecordSegmentEmitted records one emitted speech segment
func (m *Metrics) RecordSegmentEmitted(channel int, durationSeconds float64) {
	m.SegmentsEmitted.WithLabelValues(channelLabel(channel)).Inc()
	m.SegmentDuration.Observe(durationSeconds)
}

// RecordQueueEviction increments the per-channel eviction counter
func (m *Metrics) RecordQueueEviction(channel int) {
	m.QueueEvictions.WithLabelValues(channelLabel(channel)).Inc()
}

// SetQueueDepth sets the current depth of one dispatch queue
func (m *Metrics) SetQueueDepth(channel, depth int) {
	m.QueueDepth.WithLabelValues(channelLabel(channel)).Set(float64(depth))
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordFeedNotification records the outcome of one feed notification
func (m *Metrics) RecordFeedNotification(ok bool) {
	m.FeedNotifications.Inc()
	if !ok {
		m.FeedFailures.Inc()
	}
}

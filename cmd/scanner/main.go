package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"hz.tools/rf"

	"github.com/skypro1111/nbfm-scanner/internal/config"
	"github.com/skypro1111/nbfm-scanner/internal/dsp"
	"github.com/skypro1111/nbfm-scanner/internal/feed"
	"github.com/skypro1111/nbfm-scanner/internal/metrics"
	"github.com/skypro1111/nbfm-scanner/internal/pipeline"
	"github.com/skypro1111/nbfm-scanner/internal/source"
	"github.com/skypro1111/nbfm-scanner/internal/transcription"
	"github.com/skypro1111/nbfm-scanner/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "nbfm-scanner"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("source_type", cfg.SDR.SourceType),
		slog.Float64("center_freq_hz", cfg.SDR.CenterFreqHz),
		slog.Uint64("sample_rate", uint64(cfg.SDR.SampleRate)),
		slog.Int("block_samples", cfg.SDR.BlockSamples),
		slog.Int("channels", len(cfg.Channels.FrequenciesHz)),
		slog.Int("audio_output_rate", cfg.Audio.OutputRate),
		slog.Float64("vad_threshold", cfg.VAD.Threshold),
		slog.Int("queue_capacity", cfg.Dispatch.QueueCapacity),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("feed_url", cfg.Feed.URL),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics (if enabled)
	var appMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		appMetrics = metrics.NewMetrics()

		metricsServer := &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: promhttp.Handler(),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsServer.Shutdown(shutdownCtx)
		}()

		logger.Info("Prometheus metrics initialized",
			slog.String("address", cfg.Metrics.Address),
		)
	}

	// Open the wideband IQ source
	src, err := openSource(cfg)
	if err != nil {
		logger.Error("Failed to open IQ source", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("Error closing source", slog.String("error", err.Error()))
		}
	}()

	// Build the channelizer
	channelizer, err := dsp.NewChannelizer(dsp.ChannelizerConfig{
		CenterFreq:  cfg.SDR.CenterFreq(),
		SampleRate:  float64(src.SampleRate()),
		Frequencies: cfg.Channels.Frequencies(),
		BlockSize:   cfg.SDR.BlockSamples,
		Bandwidth:   cfg.Channels.Bandwidth(),
		Deviation:   cfg.Channels.Deviation(),
		AudioCutoff: cfg.Audio.Cutoff(),
		OutputRate:  cfg.Audio.OutputRate,
	})
	if err != nil {
		logger.Error("Failed to create channelizer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Channelizer initialized",
		slog.Int("channels", dsp.NumChannels),
		slog.Int("chunk_samples", channelizer.ChunkSamples()),
	)

	// Create external collaborators
	transcriber, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
		Language:      cfg.Transcription.Language,
		Model:         cfg.Transcription.Model,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	notifier, err := feed.NewNotifier(feed.Config{
		URL:         cfg.Feed.URL,
		Timeout:     cfg.Feed.GetTimeoutDuration(),
		PersonaName: cfg.Feed.PersonaName,
		Language:    cfg.Feed.Language,
	})
	if err != nil {
		logger.Error("Failed to create feed notifier", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Assemble the pipeline
	p, err := pipeline.New(pipeline.Config{
		Source:      src,
		Channelizer: channelizer,
		VAD: vad.Config{
			Threshold:     cfg.VAD.Threshold,
			FrameDuration: cfg.VAD.GetFrameDuration(),
			MinSpeech:     cfg.VAD.GetMinSpeechDuration(),
			EndSilence:    cfg.VAD.GetEndSilenceDuration(),
		},
		QueueCapacity:  cfg.Dispatch.QueueCapacity,
		StartupTimeout: cfg.SDR.GetStartupTimeoutDuration(),
		RetryInterval:  cfg.SDR.GetRetryIntervalDuration(),
		DrainTimeout:   cfg.Dispatch.GetDrainTimeoutDuration(),
		Transcriber:    transcriber,
		Notifier:       notifier,
		Metrics:        appMetrics,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Cancel the pipeline context on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("Scanner running",
		slog.String("center_freq", rf.Hz(cfg.SDR.CenterFreqHz).String()),
	)

	runErr := p.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("Pipeline failed", slog.String("error", runErr.Error()))
	}

	// Let in-flight transcription requests finish
	if err := transcriber.Close(); err != nil {
		logger.Warn("Error closing transcription client", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := p.GetStats()
	logger.Info("Final pipeline statistics",
		slog.Uint64("blocks_processed", stats.BlocksProcessed),
		slog.Uint64("source_retries", stats.SourceRetries),
		slog.Uint64("segments_emitted", stats.SegmentsEmitted),
		slog.Uint64("segments_dropped", stats.SegmentsDropped),
		slog.Uint64("transcripts", stats.Transcripts),
		slog.Uint64("transcribe_errors", stats.TranscribeErrors),
		slog.Uint64("notify_failures", stats.NotifyFailures),
	)

	clientStats := transcriber.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", clientStats.TotalRequests),
		slog.Uint64("success_requests", clientStats.SuccessRequests),
		slog.Uint64("failed_requests", clientStats.FailedRequests),
		slog.Float64("success_rate", clientStats.SuccessRate),
	)

	logger.Info("Service stopped")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

// openSource constructs the configured wideband IQ source.
func openSource(cfg *config.Config) (source.Source, error) {
	switch cfg.SDR.SourceType {
	case "rfcap":
		r, closer, err := openInput(cfg.SDR.Path)
		if err != nil {
			return nil, err
		}
		return source.NewCaptureSource(r, closer)

	case "raw":
		r, closer, err := openInput(cfg.SDR.Path)
		if err != nil {
			return nil, err
		}
		return source.NewRawIQSource(r, closer, cfg.SDR.SampleRate)

	case "synth":
		return source.NewSynthSource(source.SynthConfig{
			SampleRate:    cfg.SDR.SampleRate,
			CenterFreq:    cfg.SDR.CenterFreq(),
			Frequencies:   cfg.Channels.Frequencies(),
			ActiveChannel: 1,
			ToneHz:        800,
			Deviation:     cfg.Channels.Deviation() / 2,
			SignalBlocks:  64,
			TotalBlocks:   256,
			Seed:          time.Now().UnixNano(),
		})

	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.SDR.SourceType)
	}
}

// openInput opens a capture path for reading; "-" selects stdin.
func openInput(path string) (io.Reader, io.Closer, error) {
	if path == "-" {
		return os.Stdin, nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	return f, f, nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

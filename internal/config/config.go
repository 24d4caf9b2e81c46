package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hz.tools/rf"
)

// NumChannels is the fixed number of scanned narrowband channels.
const NumChannels = 7

// Config represents the complete scanner configuration
type Config struct {
	SDR           SDRConfig           `yaml:"sdr"`
	Channels      ChannelsConfig      `yaml:"channels"`
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Feed          FeedConfig          `yaml:"feed"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// SDRConfig describes the wideband IQ source
type SDRConfig struct {
	SourceType     string  `yaml:"source_type"` // "rfcap", "raw", or "synth"
	Path           string  `yaml:"path"`        // capture file path; "-" for stdin
	CenterFreqHz   float64 `yaml:"center_freq_hz"`
	SampleRate     uint    `yaml:"sample_rate"`
	BlockSamples   int     `yaml:"block_samples"`
	StartupTimeout int     `yaml:"startup_timeout"` // seconds to wait for first block
	RetryInterval  float64 `yaml:"retry_interval"`  // seconds between transient-failure retries
}

// ChannelsConfig lists the scanned channel frequencies
type ChannelsConfig struct {
	FrequenciesHz []float64 `yaml:"frequencies_hz"`
	BandwidthHz   float64   `yaml:"bandwidth_hz"`
	DeviationHz   float64   `yaml:"deviation_hz"`
}

// AudioConfig contains demodulated audio parameters
type AudioConfig struct {
	OutputRate int     `yaml:"output_rate"`
	CutoffHz   float64 `yaml:"cutoff_hz"`
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	Threshold       float64 `yaml:"threshold"`
	FrameDurationMS int     `yaml:"frame_duration_ms"`
	MinSpeechMS     int     `yaml:"min_speech_ms"`
	EndSilenceMS    int     `yaml:"end_silence_ms"`
}

// DispatchConfig contains segment queue and worker configuration
type DispatchConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
	DrainTimeout  int `yaml:"drain_timeout"` // seconds to let in-flight work finish at shutdown
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent"`
	Language      string `yaml:"language"`
	Model         string `yaml:"model"`
}

// FeedConfig contains feed notification configuration
type FeedConfig struct {
	URL         string `yaml:"url"`
	Timeout     int    `yaml:"timeout"` // seconds
	PersonaName string `yaml:"persona_name"`
	Language    string `yaml:"language"`
}

// MetricsConfig contains Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.SDR.Validate(); err != nil {
		return fmt.Errorf("sdr config: %w", err)
	}

	if err := c.Channels.Validate(); err != nil {
		return fmt.Errorf("channels config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatch config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Feed.Validate(); err != nil {
		return fmt.Errorf("feed config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates SDR source configuration
func (s *SDRConfig) Validate() error {
	validTypes := map[string]bool{"rfcap": true, "raw": true, "synth": true}
	if !validTypes[s.SourceType] {
		return fmt.Errorf("source_type must be one of [rfcap, raw, synth], got '%s'", s.SourceType)
	}

	if s.SourceType != "synth" && s.Path == "" {
		return fmt.Errorf("path cannot be empty for source_type '%s'", s.SourceType)
	}

	if s.CenterFreqHz <= 0 {
		return fmt.Errorf("center_freq_hz must be positive, got %f", s.CenterFreqHz)
	}

	if s.SampleRate < 100000 {
		return fmt.Errorf("sample_rate must be at least 100000 Hz, got %d", s.SampleRate)
	}

	if s.BlockSamples < 1024 {
		return fmt.Errorf("block_samples must be at least 1024, got %d", s.BlockSamples)
	}

	if s.StartupTimeout < 1 {
		return fmt.Errorf("startup_timeout must be at least 1 second, got %d", s.StartupTimeout)
	}

	if s.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be positive, got %f", s.RetryInterval)
	}

	return nil
}

// Validate validates channel plan configuration
func (ch *ChannelsConfig) Validate() error {
	if len(ch.FrequenciesHz) != NumChannels {
		return fmt.Errorf("frequencies_hz must have exactly %d entries, got %d", NumChannels, len(ch.FrequenciesHz))
	}

	for i, f := range ch.FrequenciesHz {
		if f <= 0 {
			return fmt.Errorf("frequencies_hz[%d] must be positive, got %f", i, f)
		}
	}

	if ch.BandwidthHz <= 0 {
		return fmt.Errorf("bandwidth_hz must be positive, got %f", ch.BandwidthHz)
	}

	if ch.DeviationHz <= 0 {
		return fmt.Errorf("deviation_hz must be positive, got %f", ch.DeviationHz)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.OutputRate != 16000 {
		return fmt.Errorf("output_rate must be 16000 Hz for the transcription API, got %d", a.OutputRate)
	}

	if a.CutoffHz <= 0 || a.CutoffHz > float64(a.OutputRate)/2 {
		return fmt.Errorf("cutoff_hz must be between 0 and %d, got %f", a.OutputRate/2, a.CutoffHz)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Threshold <= 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	if v.FrameDurationMS < 10 || v.FrameDurationMS > 100 {
		return fmt.Errorf("frame_duration_ms must be between 10 and 100, got %d", v.FrameDurationMS)
	}

	if v.MinSpeechMS < v.FrameDurationMS {
		return fmt.Errorf("min_speech_ms (%d) must be at least frame_duration_ms (%d)", v.MinSpeechMS, v.FrameDurationMS)
	}

	if v.EndSilenceMS < v.FrameDurationMS {
		return fmt.Errorf("end_silence_ms (%d) must be at least frame_duration_ms (%d)", v.EndSilenceMS, v.FrameDurationMS)
	}

	return nil
}

// Validate validates dispatch configuration
func (d *DispatchConfig) Validate() error {
	if d.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", d.QueueCapacity)
	}

	if d.DrainTimeout < 1 {
		return fmt.Errorf("drain_timeout must be at least 1 second, got %d", d.DrainTimeout)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates feed configuration
func (f *FeedConfig) Validate() error {
	if f.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}

	if f.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", f.Timeout)
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// CenterFreq returns the capture center frequency as rf.Hz
func (s *SDRConfig) CenterFreq() rf.Hz {
	return rf.Hz(s.CenterFreqHz)
}

// GetStartupTimeoutDuration returns the startup timeout as a time.Duration
func (s *SDRConfig) GetStartupTimeoutDuration() time.Duration {
	return time.Duration(s.StartupTimeout) * time.Second
}

// GetRetryIntervalDuration returns the retry interval as a time.Duration
func (s *SDRConfig) GetRetryIntervalDuration() time.Duration {
	return time.Duration(s.RetryInterval * float64(time.Second))
}

// Frequencies returns the channel plan as rf.Hz values
func (ch *ChannelsConfig) Frequencies() []rf.Hz {
	freqs := make([]rf.Hz, len(ch.FrequenciesHz))
	for i, f := range ch.FrequenciesHz {
		freqs[i] = rf.Hz(f)
	}
	return freqs
}

// Bandwidth returns the channel bandwidth as rf.Hz
func (ch *ChannelsConfig) Bandwidth() rf.Hz {
	return rf.Hz(ch.BandwidthHz)
}

// Deviation returns the NBFM peak deviation as rf.Hz
func (ch *ChannelsConfig) Deviation() rf.Hz {
	return rf.Hz(ch.DeviationHz)
}

// Cutoff returns the audio lowpass cutoff as rf.Hz
func (a *AudioConfig) Cutoff() rf.Hz {
	return rf.Hz(a.CutoffHz)
}

// GetFrameDuration returns the VAD frame duration as a time.Duration
func (v *VADConfig) GetFrameDuration() time.Duration {
	return time.Duration(v.FrameDurationMS) * time.Millisecond
}

// GetMinSpeechDuration returns the minimum speech duration as a time.Duration
func (v *VADConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(v.MinSpeechMS) * time.Millisecond
}

// GetEndSilenceDuration returns the end-of-segment silence as a time.Duration
func (v *VADConfig) GetEndSilenceDuration() time.Duration {
	return time.Duration(v.EndSilenceMS) * time.Millisecond
}

// GetDrainTimeoutDuration returns the shutdown drain timeout as a time.Duration
func (d *DispatchConfig) GetDrainTimeoutDuration() time.Duration {
	return time.Duration(d.DrainTimeout) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the feed timeout as a time.Duration
func (f *FeedConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(f.Timeout) * time.Second
}

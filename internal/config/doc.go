// Package config provides configuration loading and validation for the NBFM
// scanner. It handles YAML-based configuration with per-section validation
// covering the SDR source, channel plan, VAD, dispatch, and collaborators.
package config

// Package vad provides frame-based energy voice activity detection.
// It carves incoming audio into fixed-duration frames, tracks a
// silence/speech state machine per channel, and emits complete speech
// segments once trailing silence exceeds the configured duration.
package vad

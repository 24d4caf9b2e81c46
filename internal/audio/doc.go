// Package audio converts demodulated float32 audio into 16-bit PCM WAV
// files suitable for transcription upload, and decodes them back for
// inspection in tests.
package audio

// Package transcription implements the HTTP client for the transcription API.
// It uploads speech segments as multipart WAV files and limits concurrent
// requests with a semaphore. Failed requests are reported, not retried.
package transcription

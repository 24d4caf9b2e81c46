// Package pipeline wires the scanner together: it drives the capture loop,
// fans each wideband block through the channelizer and per-channel VADs,
// queues finished speech segments, and runs the dispatch workers that hand
// segments to transcription and the feed.
package pipeline

package segment

import (
	"fmt"
	"sync"
	"time"
)

// Segment is one contiguous span of speech audio, bounded by detected onset
// and trailing silence, ready for transcription.
type Segment struct {
	Channel    int       // 1-based channel index
	Samples    []float32 // mono audio at SampleRate
	SampleRate int
	CapturedAt time.Time // when the segment was completed
}

// Duration returns the audio length of the segment.
func (s *Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

// Queue is a bounded FIFO with drop-oldest overflow semantics. Enqueue never
// blocks: when the queue is full the oldest segment is evicted and counted.
// Consumers range over C until the queue is closed.
type Queue struct {
	ch      chan *Segment
	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// NewQueue creates a queue holding at most capacity segments.
func NewQueue(capacity int) (*Queue, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("queue capacity must be at least 1, got %d", capacity)
	}
	return &Queue{ch: make(chan *Segment, capacity)}, nil
}

// Enqueue adds a segment, evicting the oldest entry if the queue is full.
// It reports whether an eviction happened. Enqueue on a closed queue is a
// no-op so a late flush cannot panic during shutdown.
func (q *Queue) Enqueue(seg *Segment) (evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	for {
		select {
		case q.ch <- seg:
			return evicted
		default:
		}

		// Full: drop the oldest and retry. Only consumers remove entries
		// concurrently, so the retry cannot loop forever.
		select {
		case <-q.ch:
			q.dropped++
			evicted = true
		default:
		}
	}
}

// C returns the receive side for consumers. It is closed by Close after the
// final segment has been enqueued.
func (q *Queue) C() <-chan *Segment {
	return q.ch
}

// Len returns the number of segments currently queued.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns how many segments were evicted under backpressure.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close signals consumers that no further segments will arrive. Queued
// segments remain readable. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

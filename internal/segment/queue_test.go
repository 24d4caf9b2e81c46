package segment

import (
	"sync"
	"testing"
	"time"
)

func makeSegment(channel int, tag float32) *Segment {
	return &Segment{
		Channel:    channel,
		Samples:    []float32{tag},
		SampleRate: 16000,
		CapturedAt: time.Now(),
	}
}

func TestNewQueueValidation(t *testing.T) {
	if _, err := NewQueue(0); err == nil {
		t.Error("Expected error for zero capacity")
	}

	if _, err := NewQueue(-1); err == nil {
		t.Error("Expected error for negative capacity")
	}

	q, err := NewQueue(4)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("New queue length %d, want 0", q.Len())
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	q, err := NewQueue(8)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	for i := 0; i < 5; i++ {
		q.Enqueue(makeSegment(1, float32(i)))
	}
	q.Close()

	i := 0
	for seg := range q.C() {
		if seg.Samples[0] != float32(i) {
			t.Errorf("Position %d: got tag %f, want %d", i, seg.Samples[0], i)
		}
		i++
	}
	if i != 5 {
		t.Errorf("Dequeued %d segments, want 5", i)
	}
}

func TestQueueDropOldestOnOverflow(t *testing.T) {
	const capacity = 4

	q, err := NewQueue(capacity)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	// Enqueue capacity+1 segments before any dequeue.
	for i := 0; i <= capacity; i++ {
		evicted := q.Enqueue(makeSegment(1, float32(i)))
		if wantEvict := i == capacity; evicted != wantEvict {
			t.Errorf("Enqueue %d: evicted=%v, want %v", i, evicted, wantEvict)
		}
	}

	if q.Len() != capacity {
		t.Errorf("Queue length %d, want %d", q.Len(), capacity)
	}

	if q.Dropped() != 1 {
		t.Errorf("Dropped count %d, want 1", q.Dropped())
	}

	// The survivors must be the most recent capacity entries: tags 1..4.
	q.Close()
	want := float32(1)
	for seg := range q.C() {
		if seg.Samples[0] != want {
			t.Errorf("Got tag %f, want %f", seg.Samples[0], want)
		}
		want++
	}
}

func TestQueueEnqueueAfterClose(t *testing.T) {
	q, err := NewQueue(2)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	q.Close()
	q.Close() // idempotent

	if evicted := q.Enqueue(makeSegment(1, 0)); evicted {
		t.Error("Enqueue after close should be a no-op")
	}

	if _, ok := <-q.C(); ok {
		t.Error("Expected closed channel to yield no segments")
	}
}

func TestQueueConcurrentProducerConsumer(t *testing.T) {
	q, err := NewQueue(8)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	const total = 500

	var wg sync.WaitGroup
	wg.Add(1)
	received := 0
	go func() {
		defer wg.Done()
		for range q.C() {
			received++
		}
	}()

	for i := 0; i < total; i++ {
		q.Enqueue(makeSegment(1, float32(i)))
	}
	q.Close()
	wg.Wait()

	delivered := uint64(received) + q.Dropped()
	if delivered != total {
		t.Errorf("Received %d + dropped %d = %d, want %d", received, q.Dropped(), delivered, total)
	}
}

package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/cory-johannsen/drawguess/internal/broadcast"
)

// Recorder is a broadcast.Publisher that keeps every frame in memory.
// Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	frames []broadcast.Frame
}

// Publish appends the frame.
func (r *Recorder) Publish(topic, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, broadcast.Frame{Topic: topic, Payload: payload})
}

// Frames returns a copy of all recorded frames in publish order.
func (r *Recorder) Frames() []broadcast.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]broadcast.Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Topic returns the recorded frames with the given topic.
func (r *Recorder) Topic(topic string) []broadcast.Frame {
	var out []broadcast.Frame
	for _, f := range r.Frames() {
		if f.Topic == topic {
			out = append(out, f)
		}
	}
	return out
}

// WaitForTopic polls until at least n frames with topic were recorded or timeout elapses.
//
// Postcondition: Returns the matching frames, or fails the test on timeout.
func (r *Recorder) WaitForTopic(t *testing.T, topic string, n int, timeout time.Duration) []broadcast.Frame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		got := r.Topic(topic)
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("waiting for %d %q frames: got %d after %s", n, topic, len(got), timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

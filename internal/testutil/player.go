package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/cory-johannsen/drawguess/internal/broadcast"
)

// PlayerClient is a ZeroMQ player for integration testing: a request socket for
// commands and a subscribe socket receiving every broadcast.
type PlayerClient struct {
	t      *testing.T
	req    zmq4.Socket
	sub    zmq4.Socket
	frames chan broadcast.Frame
	seen   []broadcast.Frame
}

// NewPlayerClient dials both endpoints of a running server.
//
// Precondition: replyEndpoint and publishEndpoint must be bound by a running server.
// Postcondition: Returns a connected PlayerClient or fails the test. Sockets close on test cleanup.
func NewPlayerClient(t *testing.T, replyEndpoint, publishEndpoint string) *PlayerClient {
	t.Helper()
	start := time.Now()
	ctx, cancel := context.WithCancel(context.Background())

	req := zmq4.NewReq(ctx)
	if err := req.Dial(replyEndpoint); err != nil {
		cancel()
		t.Fatalf("dialing %s: %v [%s]", replyEndpoint, err, time.Since(start))
	}
	sub := zmq4.NewSub(ctx)
	if err := sub.Dial(publishEndpoint); err != nil {
		cancel()
		t.Fatalf("dialing %s: %v [%s]", publishEndpoint, err, time.Since(start))
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		cancel()
		t.Fatalf("subscribing: %v", err)
	}

	c := &PlayerClient{t: t, req: req, sub: sub, frames: make(chan broadcast.Frame, 256)}
	go c.pump()

	t.Cleanup(func() {
		_ = req.Close()
		_ = sub.Close()
		cancel()
	})
	t.Logf("player client connected to %s and %s [%s]", replyEndpoint, publishEndpoint, time.Since(start))
	return c
}

func (c *PlayerClient) pump() {
	defer close(c.frames)
	for {
		msg, err := c.sub.Recv()
		if err != nil {
			return
		}
		if len(msg.Frames) < 2 {
			continue
		}
		c.frames <- broadcast.Frame{Topic: string(msg.Frames[0]), Payload: string(msg.Frames[1])}
	}
}

// Send issues one request and returns the reply.
//
// Postcondition: Returns the reply frame or fails the test.
func (c *PlayerClient) Send(frame string) string {
	c.t.Helper()
	if err := c.req.Send(zmq4.NewMsgString(frame)); err != nil {
		c.t.Fatalf("sending %q: %v", frame, err)
	}
	msg, err := c.req.Recv()
	if err != nil {
		c.t.Fatalf("awaiting reply to %q: %v", frame, err)
	}
	if len(msg.Frames) == 0 {
		return ""
	}
	return string(msg.Frames[0])
}

// Prime sends probe until any broadcast arrives, so that later broadcasts are not lost
// while the subscription propagates.
//
// Precondition: probe must be a request that triggers a broadcast.
func (c *PlayerClient) Prime(probe string, timeout time.Duration) {
	c.t.Helper()
	deadline := time.After(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		c.Send(probe)
		select {
		case f, ok := <-c.frames:
			if !ok {
				c.t.Fatal("subscriber closed while priming")
			}
			c.seen = append(c.seen, f)
			c.drain()
			return
		case <-deadline:
			c.t.Fatalf("no broadcast after %s of priming", timeout)
		case <-ticker.C:
		}
	}
}

// drain waits briefly for stragglers from priming.
func (c *PlayerClient) drain() {
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				return
			}
			c.seen = append(c.seen, f)
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

// ReadUntil receives broadcasts until one has the given topic and a payload containing
// substr, and returns it. Frames read on the way are kept in Seen.
//
// Postcondition: Returns the matching frame, or fails the test on timeout.
func (c *PlayerClient) ReadUntil(topic, substr string, timeout time.Duration) broadcast.Frame {
	c.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				c.t.Fatalf("subscriber closed waiting for %s containing %q", topic, substr)
			}
			c.seen = append(c.seen, f)
			if f.Topic == topic && strings.Contains(f.Payload, substr) {
				return f
			}
		case <-deadline:
			c.t.Fatalf("no %s containing %q within %s; saw %v", topic, substr, timeout, c.seen)
		}
	}
}

// Quiet fails the test if a frame with topic arrives within d.
func (c *PlayerClient) Quiet(topic string, d time.Duration) {
	c.t.Helper()
	deadline := time.After(d)
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				return
			}
			c.seen = append(c.seen, f)
			if f.Topic == topic {
				c.t.Fatalf("unexpected %s frame %q", topic, f.Payload)
			}
		case <-deadline:
			return
		}
	}
}

// Seen returns every broadcast received so far.
func (c *PlayerClient) Seen() []broadcast.Frame {
	out := make([]broadcast.Frame, len(c.seen))
	copy(out, c.seen)
	return out
}

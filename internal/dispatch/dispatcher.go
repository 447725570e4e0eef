// Package dispatch receives request frames, acknowledges them, and queues their handlers.
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/drawguess/internal/game/action"
	"github.com/cory-johannsen/drawguess/internal/protocol"
)

// recvFaultPause is the delay after a failed receive.
const recvFaultPause = 10 * time.Millisecond

// Endpoint is the server side of a request/reply channel.
// Every successful Recv must be answered by exactly one Send.
type Endpoint interface {
	Recv() (string, error)
	Send(reply string) error
}

// Submitter runs tasks asynchronously.
type Submitter interface {
	Submit(name string, task func() error)
}

// Stats counts dispatched requests.
type Stats struct {
	Accepted int64
	Rejected int64
	Faults   int64
}

// Dispatcher routes request frames to action handlers.
type Dispatcher struct {
	registry *action.Registry
	deps     action.Deps
	pool     Submitter
	logger   *zap.Logger

	accepted atomic.Int64
	rejected atomic.Int64
	faults   atomic.Int64
}

// New creates a Dispatcher.
//
// Precondition: registry, pool, and logger must be non-nil; deps must be fully populated.
func New(registry *action.Registry, deps action.Deps, pool Submitter, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		deps:     deps,
		pool:     pool,
		logger:   logger.Named("dispatch"),
	}
}

// Accept parses frame and decides the reply. When the verb is known it also returns commit,
// which queues the handler on the pool; callers must invoke commit only after the reply
// has been handed to the requester.
//
// Postcondition: reply is protocol.ReplyOK with non-nil commit, or protocol.ReplyError with nil commit.
func (d *Dispatcher) Accept(frame string) (reply string, commit func()) {
	req, ok := protocol.ParseRequest(frame)
	if !ok {
		d.rejected.Add(1)
		d.logger.Warn("invalid request", zap.String("frame", frame))
		return protocol.ReplyError, nil
	}
	h, ok := d.registry.Resolve(req.Verb)
	if !ok {
		d.rejected.Add(1)
		d.logger.Warn("unknown verb", zap.String("verb", req.Verb))
		return protocol.ReplyError, nil
	}

	d.accepted.Add(1)
	return protocol.ReplyOK, func() {
		d.pool.Submit(req.Verb, func() error {
			return h.Handle(d.deps, req)
		})
	}
}

// Serve answers requests from ep until ctx is cancelled. Replies go out in receive order;
// handlers then run concurrently on the pool, so their effects may be reordered.
//
// Postcondition: Returns nil once ctx is done and ep has stopped delivering requests.
func (d *Dispatcher) Serve(ctx context.Context, ep Endpoint) error {
	d.logger.Info("dispatch loop started")
	defer d.logger.Info("dispatch loop stopped")

	for {
		frame, err := ep.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.faults.Add(1)
			d.logger.Error("receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(recvFaultPause):
			}
			continue
		}
		if frame == "" {
			d.faults.Add(1)
			d.logger.Error("received empty request")
		}
		d.logger.Debug("request received", zap.String("frame", frame))

		reply, commit := d.Accept(frame)
		if err := ep.Send(reply); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.faults.Add(1)
			d.logger.Error("reply failed",
				zap.String("frame", frame),
				zap.String("reply", reply),
				zap.Error(err),
			)
			continue
		}
		d.logger.Debug("request replied",
			zap.String("frame", frame),
			zap.String("reply", reply),
		)
		if commit != nil {
			commit()
		}
	}
}

// Stats returns the request counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Accepted: d.accepted.Load(),
		Rejected: d.rejected.Load(),
		Faults:   d.faults.Load(),
	}
}

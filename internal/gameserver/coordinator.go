// Package gameserver wires the room state, action handlers, dispatcher, and broadcaster
// behind the two network endpoints players talk to.
package gameserver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/drawguess/internal/broadcast"
	"github.com/cory-johannsen/drawguess/internal/config"
	"github.com/cory-johannsen/drawguess/internal/dispatch"
	"github.com/cory-johannsen/drawguess/internal/game/action"
	"github.com/cory-johannsen/drawguess/internal/game/random"
	"github.com/cory-johannsen/drawguess/internal/game/state"
	"github.com/cory-johannsen/drawguess/internal/transport/zmq"
	"github.com/cory-johannsen/drawguess/internal/worker"
)

// Option customizes a Coordinator.
type Option func(*options)

type options struct {
	src      random.Source
	registry *action.Registry
}

// WithSource replaces the crypto-backed drawer picker.
func WithSource(src random.Source) Option {
	return func(o *options) { o.src = src }
}

// WithRegistry replaces the built-in verb table.
func WithRegistry(r *action.Registry) Option {
	return func(o *options) { o.registry = r }
}

// Coordinator owns the room for the lifetime of the process: the game state, the worker
// pool, the request/reply endpoint, and the publish endpoint.
type Coordinator struct {
	cfg    config.Config
	logger *zap.Logger

	state       *state.GameState
	pool        *worker.Pool
	broadcaster *broadcast.Broadcaster
	dispatcher  *dispatch.Dispatcher

	// msgCtx is the messaging context shared by both sockets.
	msgCtx     context.Context
	releaseCtx context.CancelFunc
	reply      *zmq.ReplySocket
	pub        *zmq.PubSocket

	stopping  atomic.Bool
	ready     chan struct{}
	startOnce sync.Once
}

// NewCoordinator builds an unbound Coordinator.
//
// Precondition: cfg must be valid; logger must be non-nil.
// Postcondition: Returns a Coordinator ready to Start. Nothing is bound yet.
func NewCoordinator(cfg config.Config, logger *zap.Logger, opts ...Option) *Coordinator {
	o := options{src: random.NewCryptoSource(), registry: action.DefaultRegistry()}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.Named("coordinator")
	msgCtx, release := context.WithCancel(context.Background())
	pub := zmq.NewPubSocket(msgCtx)

	c := &Coordinator{
		cfg:         cfg,
		logger:      logger,
		state:       state.New(cfg.Game.MaxPlayers, o.src),
		pool:        worker.NewPool(cfg.Game.PoolSize(), logger),
		broadcaster: broadcast.New(pub, logger),
		msgCtx:      msgCtx,
		releaseCtx:  release,
		reply:       zmq.NewReplySocket(msgCtx),
		pub:         pub,
		ready:       make(chan struct{}),
	}
	deps := action.Deps{
		State:     c.state,
		Publisher: c.broadcaster,
		Word:      cfg.Game.Word,
		Logger:    logger.Named("action"),
	}
	c.dispatcher = dispatch.New(o.registry, deps, c.pool, logger)
	return c
}

// Start binds both endpoints, runs the dispatch loop in the background, and idles until
// Stop is observed. A stop request takes effect on the next wake, at most one
// server.idle_interval later. Start may be called once.
//
// Postcondition: Returns a non-nil error if an endpoint cannot be bound; otherwise returns nil
// after the endpoints are closed, the pool is drained, and the messaging context is released.
func (c *Coordinator) Start() error {
	started := false
	c.startOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("coordinator already started")
	}

	start := time.Now()
	if err := c.bind(); err != nil {
		c.release()
		return err
	}
	close(c.ready)

	c.logger.Info("coordination server running",
		zap.String("reply_endpoint", c.reply.Endpoint()),
		zap.String("publish_endpoint", c.pub.Endpoint()),
		zap.Int("max_players", c.cfg.Game.MaxPlayers),
		zap.Int("workers", c.pool.Size()),
		zap.Duration("startup", time.Since(start)),
	)

	loopCtx, stopLoop := context.WithCancel(c.msgCtx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = c.dispatcher.Serve(loopCtx, c.reply)
	}()

	ticker := time.NewTicker(c.cfg.Server.IdleInterval)
	defer ticker.Stop()
	for !c.stopping.Load() {
		<-ticker.C
	}

	c.logger.Info("stopping coordination server")
	stopLoop()
	if err := c.reply.Close(); err != nil {
		c.logger.Warn("closing reply socket", zap.Error(err))
	}
	<-loopDone
	c.pool.Wait()
	c.release()

	stats := c.dispatcher.Stats()
	c.logger.Info("coordination server stopped",
		zap.Int64("accepted", stats.Accepted),
		zap.Int64("rejected", stats.Rejected),
		zap.Int64("faults", stats.Faults),
		zap.Int("players", c.state.Count()),
		zap.Duration("uptime", time.Since(start)),
	)
	return nil
}

func (c *Coordinator) bind() error {
	if err := c.reply.Listen(c.cfg.Server.ReplyEndpoint()); err != nil {
		return err
	}
	if err := c.pub.Listen(c.cfg.Server.PublishEndpoint()); err != nil {
		return err
	}
	return nil
}

func (c *Coordinator) release() {
	_ = c.reply.Close()
	if err := c.pub.Close(); err != nil {
		c.logger.Debug("closing publish socket", zap.Error(err))
	}
	c.releaseCtx()
}

// Stop requests shutdown. It returns immediately; Start returns once shutdown completes.
func (c *Coordinator) Stop() {
	c.stopping.Store(true)
}

// Ready is closed once both endpoints are bound.
func (c *Coordinator) Ready() <-chan struct{} { return c.ready }

// ReplyEndpoint returns the bound request/reply endpoint.
func (c *Coordinator) ReplyEndpoint() string { return c.reply.Endpoint() }

// PublishEndpoint returns the bound publish endpoint.
func (c *Coordinator) PublishEndpoint() string { return c.pub.Endpoint() }

// State exposes the room state for read-only inspection.
func (c *Coordinator) State() *state.GameState { return c.state }

// Gateway returns a gRPC front end sharing this coordinator's dispatcher and broadcaster.
func (c *Coordinator) Gateway() *Gateway {
	return NewGateway(c.dispatcher, c.broadcaster, c.logger)
}

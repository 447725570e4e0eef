// Package broadcast publishes topic/payload frames to every subscribed player.
package broadcast

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Frame is one broadcast message.
type Frame struct {
	Topic   string
	Payload string
}

// Sink delivers a two-part frame (topic first, payload second) to remote subscribers.
type Sink interface {
	SendFrame(topic, payload string) error
}

// Publisher is the capability handlers use to emit a broadcast.
type Publisher interface {
	Publish(topic, payload string)
}

// Broadcaster fans frames out to a Sink and to in-process subscribers.
// Delivery is fire-and-forget: no acknowledgment, no retry, and a subscriber that is not
// connected (or whose channel is full) at publish time misses the frame.
type Broadcaster struct {
	sink   Sink
	logger *zap.Logger

	mu          sync.Mutex
	subscribers map[chan<- Frame]string // channel -> topic prefix
}

// New creates a Broadcaster writing to sink.
//
// Precondition: logger must be non-nil. sink may be nil (in-process subscribers only).
func New(sink Sink, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		sink:        sink,
		logger:      logger.Named("broadcast"),
		subscribers: make(map[chan<- Frame]string),
	}
}

// Publish sends one frame. Errors from the sink are logged and dropped.
func (b *Broadcaster) Publish(topic, payload string) {
	if b.sink != nil {
		if err := b.sink.SendFrame(topic, payload); err != nil {
			b.logger.Warn("publish failed",
				zap.String("topic", topic),
				zap.Error(err),
			)
		} else {
			b.logger.Debug("published",
				zap.String("topic", topic),
				zap.String("payload", payload),
			)
		}
	}

	f := Frame{Topic: topic, Payload: payload}
	b.mu.Lock()
	subs := make([]chan<- Frame, 0, len(b.subscribers))
	for ch, prefix := range b.subscribers {
		if strings.HasPrefix(topic, prefix) {
			subs = append(subs, ch)
		}
	}
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- f:
		default:
		}
	}
}

// Subscribe registers ch to receive every frame whose topic starts with prefix.
// An empty prefix matches all topics. If ch is full the frame is dropped for it.
//
// Precondition: ch must not be nil.
func (b *Broadcaster) Subscribe(ch chan<- Frame, prefix string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = prefix
}

// Unsubscribe removes ch.
func (b *Broadcaster) Unsubscribe(ch chan<- Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, ch)
}

// SubscriberCount returns the number of in-process subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

package broadcast

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSink struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (s *fakeSink) SendFrame(topic, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, Frame{Topic: topic, Payload: payload})
	return nil
}

func TestPublish_SendsTopicThenPayload(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink, zaptest.NewLogger(t))

	b.Publish("ServerNewPoint", "1%2")
	b.Publish("ServerNewWinner", "alice")

	require.Len(t, sink.frames, 2)
	assert.Equal(t, Frame{Topic: "ServerNewPoint", Payload: "1%2"}, sink.frames[0])
	assert.Equal(t, Frame{Topic: "ServerNewWinner", Payload: "alice"}, sink.frames[1])
}

func TestPublish_SinkErrorIsSwallowed(t *testing.T) {
	sink := &fakeSink{err: errors.New("socket closed")}
	b := New(sink, zaptest.NewLogger(t))
	ch := make(chan Frame, 1)
	b.Subscribe(ch, "")

	assert.NotPanics(t, func() { b.Publish("ServerNewPoint", "x") })
	assert.Equal(t, Frame{Topic: "ServerNewPoint", Payload: "x"}, <-ch)
}

func TestSubscribe_PrefixFilter(t *testing.T) {
	b := New(nil, zaptest.NewLogger(t))
	points := make(chan Frame, 4)
	all := make(chan Frame, 4)
	b.Subscribe(points, "ServerNewPoint")
	b.Subscribe(all, "")
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish("ServerNewPoint", "1")
	b.Publish("ServerNewGame", "a%w")

	assert.Len(t, points, 1)
	assert.Len(t, all, 2)
}

func TestSubscribe_FullChannelDrops(t *testing.T) {
	b := New(nil, zaptest.NewLogger(t))
	ch := make(chan Frame, 1)
	b.Subscribe(ch, "")

	b.Publish("t", "first")
	b.Publish("t", "second")

	assert.Equal(t, "first", (<-ch).Payload)
	assert.Len(t, ch, 0)
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil, zaptest.NewLogger(t))
	ch := make(chan Frame, 1)
	b.Subscribe(ch, "")
	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.SubscriberCount())

	b.Publish("t", "p")
	assert.Len(t, ch, 0)
}

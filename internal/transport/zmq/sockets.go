// Package zmq wraps ZeroMQ sockets into the two endpoints of the coordination server
// (request/reply and publish) and the matching player-side clients.
package zmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"
)

// ErrShortFrame is returned when a broadcast message does not carry topic and payload.
var ErrShortFrame = errors.New("broadcast message needs topic and payload frames")

func endpointOf(sck zmq4.Socket) string {
	addr := sck.Addr()
	if addr == nil {
		return ""
	}
	return addr.Network() + "://" + addr.String()
}

// ReplySocket is the server side of the request/reply endpoint.
// Each Recv must be followed by exactly one Send before the next Recv.
type ReplySocket struct {
	sck zmq4.Socket
}

// NewReplySocket creates an unbound reply socket whose lifetime is tied to ctx.
func NewReplySocket(ctx context.Context) *ReplySocket {
	return &ReplySocket{sck: zmq4.NewRep(ctx)}
}

// Listen binds the socket.
//
// Precondition: endpoint is a ZeroMQ endpoint such as "tcp://0.0.0.0:5555".
func (r *ReplySocket) Listen(endpoint string) error {
	if err := r.sck.Listen(endpoint); err != nil {
		return fmt.Errorf("binding reply socket to %s: %w", endpoint, err)
	}
	return nil
}

// Endpoint returns the bound endpoint, including the resolved port.
func (r *ReplySocket) Endpoint() string { return endpointOf(r.sck) }

// Recv blocks until a request arrives and returns its first frame.
func (r *ReplySocket) Recv() (string, error) {
	msg, err := r.sck.Recv()
	if err != nil {
		return "", err
	}
	if len(msg.Frames) == 0 {
		return "", nil
	}
	return string(msg.Frames[0]), nil
}

// Send replies to the request most recently received.
func (r *ReplySocket) Send(reply string) error {
	return r.sck.Send(zmq4.NewMsgString(reply))
}

// Close closes the socket. Pending Recv calls return an error.
func (r *ReplySocket) Close() error { return r.sck.Close() }

// PubSocket is the server side of the broadcast endpoint. Safe for concurrent use.
type PubSocket struct {
	mu  sync.Mutex
	sck zmq4.Socket
}

// NewPubSocket creates an unbound publish socket whose lifetime is tied to ctx.
func NewPubSocket(ctx context.Context) *PubSocket {
	return &PubSocket{sck: zmq4.NewPub(ctx)}
}

// Listen binds the socket.
func (p *PubSocket) Listen(endpoint string) error {
	if err := p.sck.Listen(endpoint); err != nil {
		return fmt.Errorf("binding publish socket to %s: %w", endpoint, err)
	}
	return nil
}

// Endpoint returns the bound endpoint, including the resolved port.
func (p *PubSocket) Endpoint() string { return endpointOf(p.sck) }

// SendFrame publishes a two-part message: topic, then payload.
func (p *PubSocket) SendFrame(topic, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sck.SendMulti(zmq4.NewMsgFrom([]byte(topic), []byte(payload)))
}

// Close closes the socket.
func (p *PubSocket) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sck.Close()
}

// Requester is the player side of the request/reply endpoint. Safe for concurrent use;
// requests are serialized.
type Requester struct {
	mu  sync.Mutex
	sck zmq4.Socket
}

// DialRequester connects a request socket to endpoint.
func DialRequester(ctx context.Context, endpoint string) (*Requester, error) {
	sck := zmq4.NewReq(ctx)
	if err := sck.Dial(endpoint); err != nil {
		_ = sck.Close()
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	return &Requester{sck: sck}, nil
}

// Request sends frame and waits for the reply. There is no timeout beyond the socket context.
func (r *Requester) Request(frame string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sck.Send(zmq4.NewMsgString(frame)); err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	msg, err := r.sck.Recv()
	if err != nil {
		return "", fmt.Errorf("receiving reply: %w", err)
	}
	if len(msg.Frames) == 0 {
		return "", nil
	}
	return string(msg.Frames[0]), nil
}

// Close closes the socket.
func (r *Requester) Close() error { return r.sck.Close() }

// Subscriber is the player side of the broadcast endpoint.
type Subscriber struct {
	sck zmq4.Socket
}

// DialSubscriber connects a subscribe socket to endpoint and subscribes to every
// topic prefix given; no prefixes subscribes to everything.
func DialSubscriber(ctx context.Context, endpoint string, prefixes ...string) (*Subscriber, error) {
	sck := zmq4.NewSub(ctx)
	if err := sck.Dial(endpoint); err != nil {
		_ = sck.Close()
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}
	for _, prefix := range prefixes {
		if err := sck.SetOption(zmq4.OptionSubscribe, prefix); err != nil {
			_ = sck.Close()
			return nil, fmt.Errorf("subscribing to %q: %w", prefix, err)
		}
	}
	return &Subscriber{sck: sck}, nil
}

// Recv blocks until the next broadcast and returns its topic and payload.
func (s *Subscriber) Recv() (topic, payload string, err error) {
	msg, err := s.sck.Recv()
	if err != nil {
		return "", "", err
	}
	if len(msg.Frames) < 2 {
		return "", "", ErrShortFrame
	}
	return string(msg.Frames[0]), string(msg.Frames[1]), nil
}

// Close closes the socket.
func (s *Subscriber) Close() error { return s.sck.Close() }

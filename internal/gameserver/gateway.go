package gameserver

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cory-johannsen/drawguess/internal/broadcast"
	"github.com/cory-johannsen/drawguess/internal/dispatch"
)

const (
	coordinatorService = "drawguess.v1.Coordinator"
	requestMethod      = "/" + coordinatorService + "/Request"
	subscribeMethod    = "/" + coordinatorService + "/Subscribe"

	// subscriberBuffer is the per-stream frame backlog; a stream further behind misses frames.
	subscriberBuffer = 256
)

// CoordinatorServer is the gRPC surface of the coordinator.
//
// Request carries the same "verb@param" frame as the request/reply endpoint and answers
// "OK" or "ERROR". Subscribe streams [topic, payload] pairs whose topic starts with the
// given prefix.
type CoordinatorServer interface {
	Request(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Subscribe(in *wrapperspb.StringValue, stream grpc.ServerStream) error
}

var coordinatorServiceDesc = grpc.ServiceDesc{
	ServiceName: coordinatorService,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Request", Handler: requestHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "drawguess/v1/coordinator.proto",
}

func requestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Request(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: requestMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServer).Request(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CoordinatorServer).Subscribe(in, stream)
}

// RegisterCoordinatorServer registers srv on s.
func RegisterCoordinatorServer(s grpc.ServiceRegistrar, srv CoordinatorServer) {
	s.RegisterService(&coordinatorServiceDesc, srv)
}

// Gateway implements CoordinatorServer on top of a Dispatcher and a Broadcaster.
// Unlike the request/reply endpoint, the handler of an accepted request may start
// before the gRPC reply reaches the caller.
type Gateway struct {
	dispatcher  *dispatch.Dispatcher
	broadcaster *broadcast.Broadcaster
	logger      *zap.Logger

	quit      chan struct{}
	closeOnce sync.Once
}

// NewGateway creates a Gateway.
//
// Precondition: all arguments must be non-nil.
func NewGateway(d *dispatch.Dispatcher, b *broadcast.Broadcaster, logger *zap.Logger) *Gateway {
	return &Gateway{
		dispatcher:  d,
		broadcaster: b,
		logger:      logger.Named("gateway"),
		quit:        make(chan struct{}),
	}
}

// Close ends every open Subscribe stream so a graceful gRPC stop can complete.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() { close(g.quit) })
}

// Request dispatches one frame.
func (g *Gateway) Request(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	reply, commit := g.dispatcher.Accept(in.GetValue())
	if commit != nil {
		commit()
	}
	return wrapperspb.String(reply), nil
}

// Subscribe streams broadcasts until the caller goes away or the gateway is closed.
func (g *Gateway) Subscribe(in *wrapperspb.StringValue, stream grpc.ServerStream) error {
	ch := make(chan broadcast.Frame, subscriberBuffer)
	g.broadcaster.Subscribe(ch, in.GetValue())
	defer g.broadcaster.Unsubscribe(ch)

	g.logger.Debug("gateway subscriber attached", zap.String("prefix", in.GetValue()))
	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-g.quit:
			return nil
		case f := <-ch:
			msg := &structpb.ListValue{Values: []*structpb.Value{
				structpb.NewStringValue(f.Topic),
				structpb.NewStringValue(f.Payload),
			}}
			if err := stream.SendMsg(msg); err != nil {
				return fmt.Errorf("sending %s frame: %w", f.Topic, err)
			}
		}
	}
}

// GatewayClient calls a CoordinatorServer.
type GatewayClient struct {
	cc grpc.ClientConnInterface
}

// NewGatewayClient wraps an established connection.
func NewGatewayClient(cc grpc.ClientConnInterface) *GatewayClient {
	return &GatewayClient{cc: cc}
}

// Request sends frame and returns the reply.
func (c *GatewayClient) Request(ctx context.Context, frame string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, requestMethod, wrapperspb.String(frame), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Subscribe opens a broadcast stream filtered by topic prefix; "" receives everything.
func (c *GatewayClient) Subscribe(ctx context.Context, prefix string, opts ...grpc.CallOption) (*FrameStream, error) {
	stream, err := c.cc.NewStream(ctx, &coordinatorServiceDesc.Streams[0], subscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(wrapperspb.String(prefix)); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &FrameStream{stream: stream}, nil
}

// FrameStream yields broadcast frames from a Subscribe call.
type FrameStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next frame.
func (s *FrameStream) Recv() (broadcast.Frame, error) {
	msg := new(structpb.ListValue)
	if err := s.stream.RecvMsg(msg); err != nil {
		return broadcast.Frame{}, err
	}
	vals := msg.GetValues()
	if len(vals) != 2 {
		return broadcast.Frame{}, fmt.Errorf("frame has %d parts, want 2", len(vals))
	}
	return broadcast.Frame{Topic: vals[0].GetStringValue(), Payload: vals[1].GetStringValue()}, nil
}

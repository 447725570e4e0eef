package gameserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cory-johannsen/drawguess/internal/game/random"
	"github.com/cory-johannsen/drawguess/internal/protocol"
)

// startGateway serves c's gateway on a loopback port and returns a connected client.
func startGateway(t *testing.T, c *Coordinator) *GatewayClient {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	RegisterCoordinatorServer(srv, c.Gateway())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewGatewayClient(conn)
}

func waitForSubscribers(t *testing.T, c *Coordinator, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.broadcaster.SubscriberCount() >= n
	}, waitFor, 5*time.Millisecond)
}

func TestGateway_RequestReplies(t *testing.T) {
	c := NewCoordinator(testConfig(t), zaptest.NewLogger(t))
	startCoordinator(t, c)
	client := startGateway(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	reply, err := client.Request(ctx, "Foo@bar")
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyError, reply)

	reply, err = client.Request(ctx, protocol.NewRequest(protocol.VerbNewPlayer, "A", "ip", "Ann"))
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyOK, reply)
	require.Eventually(t, func() bool { return c.State().Count() == 1 }, waitFor, 5*time.Millisecond)
}

func TestGateway_SubscribeFiltersByPrefix(t *testing.T) {
	c := NewCoordinator(testConfig(t), zaptest.NewLogger(t), WithSource(random.Fixed(0)))
	startCoordinator(t, c)
	client := startGateway(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	stream, err := client.Subscribe(ctx, protocol.TopicNewGame)
	require.NoError(t, err)
	waitForSubscribers(t, c, 1)

	for _, frame := range []string{
		"CliNewPoint@1%1%#000000",
		protocol.NewRequest(protocol.VerbNewPlayer, "A", "ip", "Ann"),
	} {
		reply, err := client.Request(ctx, frame)
		require.NoError(t, err)
		require.Equal(t, protocol.ReplyOK, reply)
	}
	require.Eventually(t, func() bool { return c.State().Count() == 1 }, waitFor, 5*time.Millisecond)

	reply, err := client.Request(ctx, protocol.NewRequest(protocol.VerbPlayerReady, "A", "1"))
	require.NoError(t, err)
	require.Equal(t, protocol.ReplyOK, reply)

	f, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, protocol.TopicNewGame, f.Topic)
	assert.Equal(t, "A%"+c.cfg.Game.Word, f.Payload)
}

func TestGateway_SubscriberDetachesOnCancel(t *testing.T) {
	c := NewCoordinator(testConfig(t), zaptest.NewLogger(t))
	startCoordinator(t, c)
	client := startGateway(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := client.Subscribe(ctx, "")
	require.NoError(t, err)
	waitForSubscribers(t, c, 1)

	cancel()
	require.Eventually(t, func() bool {
		return c.broadcaster.SubscriberCount() == 0
	}, waitFor, 5*time.Millisecond)
}

func TestGateway_CloseEndsStreams(t *testing.T) {
	c := NewCoordinator(testConfig(t), zaptest.NewLogger(t))
	startCoordinator(t, c)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gw := c.Gateway()
	srv := grpc.NewServer()
	RegisterCoordinatorServer(srv, gw)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	stream, err := NewGatewayClient(conn).Subscribe(context.Background(), "")
	require.NoError(t, err)
	waitForSubscribers(t, c, 1)

	stopped := make(chan struct{})
	go func() {
		gw.Close()
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("graceful stop blocked on an open stream")
	}
	_, err = stream.Recv()
	assert.Error(t, err)
}

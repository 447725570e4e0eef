// Package main provides a scripted player for exercising a running coordination server:
// it joins the room, votes ready, logs every broadcast, and draws when picked.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/drawguess/internal/config"
	"github.com/cory-johannsen/drawguess/internal/observability"
	"github.com/cory-johannsen/drawguess/internal/protocol"
	"github.com/cory-johannsen/drawguess/internal/transport/zmq"
)

func main() {
	configPath := flag.String("config", "", "path to the server configuration file, for ports")
	host := flag.String("host", "127.0.0.1", "server host")
	name := flag.String("name", "bot", "display name")
	points := flag.Int("points", 32, "points to draw when picked as drawer")
	color := flag.String("color", "#000000", "stroke color")
	duration := flag.Duration("duration", 0, "exit after this long; zero runs until interrupted")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	id := uuid.NewString()
	logger, err := observability.NewLogger(cfg.Logging, zap.Fields(zap.String("player", id)))
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	replyEndpoint := fmt.Sprintf("tcp://%s:%d", *host, cfg.Server.ReplyPort)
	publishEndpoint := fmt.Sprintf("tcp://%s:%d", *host, cfg.Server.PublishPort)

	sub, err := zmq.DialSubscriber(ctx, publishEndpoint)
	if err != nil {
		logger.Fatal("subscribing", zap.Error(err))
	}
	defer sub.Close()
	req, err := zmq.DialRequester(ctx, replyEndpoint)
	if err != nil {
		logger.Fatal("connecting", zap.Error(err))
	}
	defer req.Close()

	b := &bot{id: id, req: req, logger: logger, points: *points, color: *color}
	games := make(chan string, 1)
	go b.listen(sub, games)

	b.send(protocol.NewRequest(protocol.VerbNewPlayer, id, localIP(), *name))
	b.send(protocol.NewRequest(protocol.VerbPlayerReady, id, "1"))

	for {
		select {
		case <-ctx.Done():
			logger.Info("bot exiting")
			return
		case payload := <-games:
			fields, ok := protocol.SplitFields(payload, 2)
			if !ok {
				logger.Warn("malformed new game payload", zap.String("payload", payload))
				continue
			}
			if fields[0] == id {
				logger.Info("picked as drawer", zap.String("word", fields[1]))
				b.draw()
				b.send(protocol.NewRequest(protocol.VerbNewWinner, id, "0"))
			}
		}
	}
}

type bot struct {
	id     string
	req    *zmq.Requester
	logger *zap.Logger
	points int
	color  string
}

func (b *bot) send(frame string) {
	reply, err := b.req.Request(frame)
	if err != nil {
		b.logger.Error("request failed", zap.String("frame", frame), zap.Error(err))
		return
	}
	b.logger.Debug("request answered", zap.String("frame", frame), zap.String("reply", reply))
}

func (b *bot) listen(sub *zmq.Subscriber, games chan<- string) {
	for {
		topic, payload, err := sub.Recv()
		if err != nil {
			b.logger.Debug("subscriber closed", zap.Error(err))
			return
		}
		b.logger.Info("broadcast", zap.String("topic", topic), zap.String("payload", payload))
		if topic == protocol.TopicNewGame {
			select {
			case games <- payload:
			default:
			}
		}
	}
}

// draw traces a circle of b.points strokes.
func (b *bot) draw() {
	for i := 0; i < b.points; i++ {
		theta := 2 * math.Pi * float64(i) / float64(b.points)
		x := strconv.FormatFloat(50+25*math.Cos(theta), 'f', 2, 64)
		y := strconv.FormatFloat(50+25*math.Sin(theta), 'f', 2, 64)
		b.send(protocol.NewRequest(protocol.VerbNewPoint, x, y, b.color))
	}
}

func localIP() string {
	conn, err := net.Dial("udp", "192.0.2.1:9")
	if err != nil {
		host, _ := os.Hostname()
		return host
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// Package main provides the draw-and-guess coordination server binary: a request/reply
// endpoint for player commands, a publish endpoint for room broadcasts, and an optional
// gRPC gateway exposing both.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/drawguess/internal/config"
	"github.com/cory-johannsen/drawguess/internal/gameserver"
	"github.com/cory-johannsen/drawguess/internal/observability"
	"github.com/cory-johannsen/drawguess/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and DRAW_* environment variables")
	printConfig := flag.Bool("print-config", false, "print the effective configuration as YAML and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *printConfig {
		if err := config.Dump(os.Stdout, cfg); err != nil {
			log.Fatalf("printing config: %v", err)
		}
		return
	}

	logger, err := observability.NewLogger(cfg.Logging, zap.Fields(zap.String("instance", uuid.NewString())))
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting coordination server",
		zap.String("reply_endpoint", cfg.Server.ReplyEndpoint()),
		zap.String("publish_endpoint", cfg.Server.PublishEndpoint()),
		zap.Bool("gateway", cfg.Gateway.Enabled),
	)

	coordinator := gameserver.NewCoordinator(cfg, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("coordinator", coordinator)

	if cfg.Gateway.Enabled {
		gw := coordinator.Gateway()
		grpcServer := grpc.NewServer()
		gameserver.RegisterCoordinatorServer(grpcServer, gw)
		stopGateway := make(chan struct{})

		lifecycle.Add("gateway", &server.FuncService{
			StartFn: func() error {
				select {
				case <-coordinator.Ready():
				case <-stopGateway:
					return nil
				}
				lis, err := net.Listen("tcp", cfg.Gateway.Addr())
				if err != nil {
					return fmt.Errorf("listening on %s: %w", cfg.Gateway.Addr(), err)
				}
				logger.Info("gRPC gateway listening",
					zap.String("addr", lis.Addr().String()),
				)
				return grpcServer.Serve(lis)
			},
			StopFn: func() {
				close(stopGateway)
				gw.Close()
				grpcServer.GracefulStop()
			},
		})
	}

	logger.Info("coordination server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

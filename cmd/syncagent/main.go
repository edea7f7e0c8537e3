package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/logging"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/syncagent"
)

func main() {
	cfg, err := syncagent.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewDefault().Named("syncagent")
	defer logger.Sync()

	rt, err := syncagent.NewRuntime(cfg, logger.Logger)
	if err != nil {
		logger.Fatal("runtime init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A nil error is either a stand-down order or a signal; both exit
	// cleanly so the supervisor can decide what runs next.
	if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("agent terminated", zap.Error(err))
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pelusa-v/pelusa-spaces/internal/config"
	"github.com/pelusa-v/pelusa-spaces/internal/devserver"
	"github.com/pelusa-v/pelusa-spaces/internal/handlers"
	"github.com/pelusa-v/pelusa-spaces/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("load config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := devserver.NewHub(devserver.NewSpaces(cfg.Client.DefaultSpace), log)
	go hub.Run(ctx)

	app := handlers.NewApp(hub, cfg.Relay.StaticDir, log)
	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	log.Info("relay listening", zap.String("addr", cfg.Relay.ListenAddr))
	if err := app.Listen(cfg.Relay.ListenAddr); err != nil {
		log.Fatal("listen", zap.Error(err))
	}
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/Cheese-chess-server/internal/bootstrap"
	"github.com/park285/Cheese-chess-server/internal/config"
	"github.com/park285/Cheese-chess-server/internal/obslog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap_failed", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.API.ListenAndServe(cfg.HTTPAddr) })
	g.Go(func() error { return deps.WS.ListenAndServe(cfg.WSAddr) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_shutdown")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		wsErr := deps.WS.Shutdown(sctx)
		if err := deps.API.Shutdown(sctx); err != nil {
			return err
		}
		return wsErr
	})

	logger.Info("server_started", zap.String("http", cfg.HTTPAddr), zap.String("ws", cfg.WSAddr), zap.Bool("redis", deps.Redis != nil), zap.Bool("archive", deps.Archive != nil))
	if err := g.Wait(); err != nil {
		logger.Error("server_stopped", zap.Error(err))
	}
}

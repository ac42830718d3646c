package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwise1/lookaround/config"
	deps "github.com/bwise1/lookaround/internal/debs"
	api "github.com/bwise1/lookaround/internal/http/rest"
	"github.com/bwise1/lookaround/util/logging"
)

const (
	allowConnectionsAfterShutdown = 1 * time.Second
	sessionSweepInterval          = time.Minute
)

func main() {
	cfg := config.New()
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := deps.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise dependencies")
	}

	a := &api.API{
		Config: cfg,
		Deps:   d,
		Log:    log,
	}
	a.Init()
	go d.WebSocket.Run(ctx)
	go d.Sessions.Run(ctx, sessionSweepInterval)
	go func() {
		log.WithField("port", cfg.Port).Info("server running")
		if err := a.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-stopChan

	log.WithField("wait", allowConnectionsAfterShutdown).Info("request to shutdown server")
	waitTimer := time.NewTimer(allowConnectionsAfterShutdown)
	<-waitTimer.C

	log.Info("shutting down server")
	if err := a.Shutdown(context.Background()); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	cancel()

	d.Sessions.Close(context.Background())
	d.Close()
	log.Info("connections closed")
}

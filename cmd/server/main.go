package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oedima/gis-colab/internal/auth"
	"github.com/oedima/gis-colab/internal/collab"
	"github.com/oedima/gis-colab/internal/config"
	"github.com/oedima/gis-colab/internal/logger"
	"github.com/oedima/gis-colab/internal/presence"
	"github.com/oedima/gis-colab/internal/ratelimit"
	"github.com/oedima/gis-colab/internal/server"
	"github.com/oedima/gis-colab/internal/store"
)

func main() {
	if err := mainInner(); err != nil {
		logger.L().Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	cfg := config.Load()
	log := logger.Setup()

	// All state below is in-memory and ephemeral: a restart clears every
	// area record, rate window, and live connection.
	registry := auth.NewRegistry()
	limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)
	areas := store.NewAreaStore()
	hub := presence.NewBroadcaster(log)
	svc := collab.NewService(limiter, areas, log)
	srv := server.New(cfg, registry, svc, hub, log)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.Addr, "base", cfg.APIBase)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	sig := <-stop
	log.Info("signal caught", "sig", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

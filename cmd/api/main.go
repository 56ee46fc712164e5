package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"patrolnav/internal/api"
	"patrolnav/internal/buildinfo"
	"patrolnav/internal/config"
	"patrolnav/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	lg := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(lg)

	srvDeps, err := api.NewServer(cfg, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to init server")
	}
	defer srvDeps.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srvDeps.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := srvDeps.NewWebhookWorker()
	worker.Start()

	go func() {
		lg.Info().Str("addr", cfg.Addr()).Str("version", buildinfo.Version).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	lg.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error().Err(err).Msg("graceful shutdown failed")
	}
	worker.Stop()
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"base-distance/internal/config"
	"base-distance/internal/geocode"
	"base-distance/internal/pipeline"
	"base-distance/internal/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var interruptSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
	syscall.SIGINT,
}

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals...)
	defer stop()

	orchestrator := pipeline.NewOrchestrator()
	orchestrator.StrictCoordinates = cfg.StrictCoordinates
	orchestrator.OnStateChange = func(from, to pipeline.State) {
		log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("pipeline state")
	}

	adapter, err := geocode.NewProxyAdapter(ctx, cfg)
	if errors.Is(err, geocode.ErrNotConfigured) {
		log.Warn().Msg("GEOCODE_ENDPOINT not set, address lookup disabled")
	}

	srv, err := server.NewServer(cfg, orchestrator, adapter)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create server")
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPServerAddress,
		Handler: srv.Handler(),
	}

	waitGroup, ctx := errgroup.WithContext(ctx)

	waitGroup.Go(func() error {
		log.Info().Str("address", cfg.HTTPServerAddress).Msg("start HTTP server")
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed to serve")
			return err
		}
		return nil
	})

	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown HTTP server")
			return err
		}
		log.Info().Msg("HTTP server is stopped")
		return nil
	})

	if err := waitGroup.Wait(); err != nil {
		log.Fatal().Err(err).Msg("error from wait group")
	}
}

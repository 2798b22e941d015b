// Package main is the entry point for the Monte Carlo portfolio simulation server.
//
// The server exposes simulations over HTTP (request/response and a live WebSocket
// session), archives finished runs in SQLite, streams lifecycle events over SSE and
// prunes old runs on a cron schedule.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/montecarlo/internal/config"
	"github.com/aristath/montecarlo/internal/di"
	runshandlers "github.com/aristath/montecarlo/internal/modules/runs/handlers"
	simulationhandlers "github.com/aristath/montecarlo/internal/modules/simulation/handlers"
	"github.com/aristath/montecarlo/internal/server"
	"github.com/aristath/montecarlo/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Monte Carlo simulation server")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:            log,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		RequestTimeout: cfg.RequestTimeout,
		Workers:        container.BatchRunner.Workers(),
		RunsDB:         container.RunsDB,
		EventBus:       container.EventBus,
		Metrics:        container.Metrics,
		SimulationHandler: simulationhandlers.NewHandler(
			container.SimulationService,
			simulationhandlers.Limits{
				MaxTrials:  cfg.Simulation.MaxTrials,
				MaxHorizon: cfg.Simulation.MaxHorizon,
			},
			log,
		),
		RunsHandler: runshandlers.NewHandler(container.RunRepo, log),
		Scheduler:   container.Scheduler,
		Jobs:        jobs.All(),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	container.Scheduler.Start()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

package di

import (
	"github.com/aristath/montecarlo/internal/config"
	"github.com/aristath/montecarlo/internal/events"
	"github.com/aristath/montecarlo/internal/modules/runs"
	"github.com/aristath/montecarlo/internal/modules/simulation"
	"github.com/aristath/montecarlo/internal/scheduler"
	"github.com/aristath/montecarlo/internal/server"
	"github.com/rs/zerolog"
)

// InitializeServices creates the event bus, repositories and services.
// Databases must already be initialized.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	container.Metrics = server.NewMetrics()

	container.RunRepo = runs.NewRepository(container.RunsDB.Conn(), log)

	container.BatchRunner = simulation.NewBatchRunner(cfg.Simulation.Workers, log)
	container.SimulationService = simulation.NewService(
		container.BatchRunner,
		container.EventManager,
		container.Metrics,
		container.RunRepo,
		log,
	)

	container.Scheduler = scheduler.New(log)

	log.Info().
		Int("workers", container.BatchRunner.Workers()).
		Msg("Services initialized")
}

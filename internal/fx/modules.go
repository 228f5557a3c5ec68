package fx

import (
	"database/sql"

	"raceday-tracker/internal/config"
	"raceday-tracker/internal/database"
	"raceday-tracker/internal/engine"
	"raceday-tracker/internal/events"
	"raceday-tracker/internal/logger"
	"raceday-tracker/internal/pist"
	"raceday-tracker/internal/pool"
	"raceday-tracker/internal/repository"
	"raceday-tracker/internal/schedule"
	"raceday-tracker/internal/server"
	"raceday-tracker/internal/service"
	"raceday-tracker/internal/simulate"

	"go.uber.org/fx"
)

func ProvideBackend(db *sql.DB) repository.Backend {
	return repository.NewSQLBackend(db)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// persistence
	fx.Provide(ProvideBackend),
	fx.Provide(repository.NewRaceDayRepository),
	// engine
	fx.Provide(events.NewBus),
	fx.Provide(pist.NewAllocator),
	fx.Provide(simulate.NewExecutor),
	fx.Provide(engine.NewController),
	// domain services
	fx.Provide(pool.NewProvider),
	fx.Provide(schedule.NewGenerator),
	fx.Provide(service.NewBoard),
	// http
	fx.Provide(server.NewHub),
	fx.Provide(server.NewServer),
)

package fx

import (
	"github.com/ToppleTheNun/mchammer-sub000/internal/api"
	"github.com/ToppleTheNun/mchammer-sub000/internal/config"
	"github.com/ToppleTheNun/mchammer-sub000/internal/database"
	"github.com/ToppleTheNun/mchammer-sub000/internal/logger"
	"github.com/ToppleTheNun/mchammer-sub000/internal/repository"
	"github.com/ToppleTheNun/mchammer-sub000/internal/server"
	"github.com/ToppleTheNun/mchammer-sub000/internal/service"

	"go.uber.org/fx"
)

func ProvideLogSource(client *api.Client) service.LogSource {
	return client
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// log source client
	fx.Provide(api.NewClient),
	fx.Provide(ProvideLogSource),
	// repos
	fx.Provide(repository.NewFightRepository),
	fx.Provide(repository.NewCharacterRepository),
	fx.Provide(repository.NewStreakRepository),
	// svc
	fx.Provide(service.NewFightService),
	fx.Provide(service.NewEventService),
	fx.Provide(service.NewStreakService),
	fx.Provide(service.NewIngestService),
	// server
	fx.Provide(server.NewIngestServer),
)

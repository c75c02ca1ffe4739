package fx

import (
	"github.com/mmulqu/biome/internal/api"
	"github.com/mmulqu/biome/internal/config"
	"github.com/mmulqu/biome/internal/database"
	"github.com/mmulqu/biome/internal/grid"
	"github.com/mmulqu/biome/internal/logger"
	"github.com/mmulqu/biome/internal/repository"
	"github.com/mmulqu/biome/internal/server"
	"github.com/mmulqu/biome/internal/service"
	"github.com/mmulqu/biome/internal/terrain"

	"go.uber.org/fx"
)

// Interface bindings. The services depend on narrow consumer interfaces;
// these adapters map the concrete implementations onto them.

func ProvideGrid(a *grid.H3Adapter) grid.Adapter { return a }

func ProvideTerrain(r *terrain.LandcoverResolver) terrain.Resolver { return r }

func ProvideLandcoverStore(r *repository.LandcoverRepository) terrain.LandcoverStore { return r }

func ProvideSource(c *api.INatClient) service.ObservationSource { return c }

func ProvidePlayerStore(r *repository.PlayerRepository) service.PlayerStore { return r }

func ProvideObservationStore(r *repository.ObservationRepository) service.ObservationStore { return r }

func ProvideCellStore(r *repository.CellRepository) service.CellStore { return r }

func ProvideScoreStore(r *repository.ScoreRepository) service.ScoreStore { return r }

func ProvideIngestStore(r *repository.IngestRepository) service.IngestStore { return r }

func ProvideSyncRunStore(r *repository.SyncRunRepository) service.SyncRunStore { return r }

func ProvideInvalidator(v *service.ViewportService) service.Invalidator { return v }

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository, ProvidePlayerStore),
	fx.Provide(repository.NewObservationRepository, ProvideObservationStore),
	fx.Provide(repository.NewCellRepository, ProvideCellStore),
	fx.Provide(repository.NewScoreRepository, ProvideScoreStore),
	fx.Provide(repository.NewIngestRepository, ProvideIngestStore),
	fx.Provide(repository.NewSyncRunRepository, ProvideSyncRunStore),
	fx.Provide(repository.NewLandcoverRepository, ProvideLandcoverStore),
	// grid + terrain
	fx.Provide(grid.NewH3Adapter, ProvideGrid),
	fx.Provide(terrain.NewLandcoverResolver, ProvideTerrain),
	// api client
	fx.Provide(api.NewINatClient, ProvideSource),
	// svc
	fx.Provide(service.NewAggregator),
	fx.Provide(service.NewViewportService, ProvideInvalidator),
	fx.Provide(service.NewSyncService),
	fx.Provide(service.NewCellQueryService),
	fx.Provide(service.NewPlayerService),
	// server
	fx.Provide(server.NewBiomeServer),
)

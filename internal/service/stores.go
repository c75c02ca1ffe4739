package service

import (
	"context"

	"github.com/mmulqu/biome/internal/api"
	"github.com/mmulqu/biome/internal/domain"
)

// Storage interfaces the services depend on. The sqlite repositories satisfy
// them; tests substitute in-memory fakes.

type PlayerStore interface {
	Get(ctx context.Context, id int64) (*domain.Player, error)
	GetByLogin(ctx context.Context, login string) (*domain.Player, error)
	Upsert(ctx context.Context, p *domain.Player) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

type ObservationStore interface {
	Exists(ctx context.Context, externalID int64) (bool, error)
	ListByPlayer(ctx context.Context, playerID int64) ([]domain.Observation, error)
	ListRecentByCell(ctx context.Context, cellID string, limit int) ([]domain.Observation, error)
	ListTopInBuckets(ctx context.Context, buckets []domain.Bucket, limit int) ([]domain.Observation, error)
	Count(ctx context.Context) (int, error)
	CountDistinctSpecies(ctx context.Context) (int, error)
}

type CellStore interface {
	Get(ctx context.Context, id string) (*domain.Cell, error)
	GetOrCreate(ctx context.Context, c *domain.Cell) (*domain.Cell, error)
	Update(ctx context.Context, c *domain.Cell) error
	ListByParent(ctx context.Context, parentID string, childTier domain.Tier) ([]domain.Cell, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Cell, error)
	ListTopInBuckets(ctx context.Context, tier domain.Tier, buckets []domain.Bucket, limit int) ([]domain.Cell, error)
	CountOwned(ctx context.Context) (int, error)
	CountOwnedBy(ctx context.Context, playerID int64) (int, error)
}

type ScoreStore interface {
	ListByCell(ctx context.Context, cellID string) ([]domain.ScoreEntry, error)
}

// IngestStore persists one scored observation atomically: factor computation
// against the committed cell count, the observation row, the ledger bump, and
// the ownership recompute land as one unit or not at all.
type IngestStore interface {
	ApplyScored(ctx context.Context, o *domain.Observation) error
}

type SyncRunStore interface {
	Insert(ctx context.Context, run *domain.SyncRun) error
}

// ObservationSource is the external biodiversity API.
type ObservationSource interface {
	GetUser(ctx context.Context, login string) (*api.User, error)
	GetObservations(ctx context.Context, login string, page int) (*api.ObservationPage, error)
}

// Invalidator is the viewport cache hook ingest calls after every write.
type Invalidator interface {
	Invalidate()
}

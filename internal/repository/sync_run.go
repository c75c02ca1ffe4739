package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/domain"
)

// SyncRunRepository records one audit row per ingest pass.
type SyncRunRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewSyncRunRepository(db *sqlx.DB, logger zerolog.Logger) *SyncRunRepository {
	return &SyncRunRepository{db: db, logger: logger}
}

func (r *SyncRunRepository) Insert(ctx context.Context, run *domain.SyncRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, player_id, added, skipped, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.PlayerID, run.Added, run.Skipped, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

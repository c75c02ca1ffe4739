package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/domain"
)

type PlayerRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewPlayerRepository(db *sqlx.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{db: db, logger: logger}
}

type playerRow struct {
	ID                int64     `db:"id"`
	Login             string    `db:"login"`
	DisplayName       string    `db:"display_name"`
	AvatarURL         string    `db:"avatar_url"`
	TotalPoints       int       `db:"total_points"`
	ObservationCount  int       `db:"observation_count"`
	SpeciesCount      int       `db:"species_count"`
	CellsOwned        int       `db:"cells_owned"`
	FirstObservations int       `db:"first_observations"`
	LastSyncAt        time.Time `db:"last_sync_at"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r playerRow) toDomain() *domain.Player {
	return &domain.Player{
		ID:                r.ID,
		Login:             r.Login,
		DisplayName:       r.DisplayName,
		AvatarURL:         r.AvatarURL,
		TotalPoints:       r.TotalPoints,
		ObservationCount:  r.ObservationCount,
		SpeciesCount:      r.SpeciesCount,
		CellsOwned:        r.CellsOwned,
		FirstObservations: r.FirstObservations,
		LastSyncAt:        r.LastSyncAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (r *PlayerRepository) Get(ctx context.Context, id int64) (*domain.Player, error) {
	var row playerRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM players WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: player %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PlayerRepository) GetByLogin(ctx context.Context, login string) (*domain.Player, error) {
	var row playerRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM players WHERE login = ?`, login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: player %q", domain.ErrNotFound, login)
	}
	if err != nil {
		return nil, fmt.Errorf("get player by login: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PlayerRepository) Upsert(ctx context.Context, p *domain.Player) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (
			id, login, display_name, avatar_url, total_points,
			observation_count, species_count, cells_owned,
			first_observations, last_sync_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			login = excluded.login,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			total_points = excluded.total_points,
			observation_count = excluded.observation_count,
			species_count = excluded.species_count,
			cells_owned = excluded.cells_owned,
			first_observations = excluded.first_observations,
			last_sync_at = excluded.last_sync_at,
			updated_at = excluded.updated_at`,
		p.ID, p.Login, p.DisplayName, p.AvatarURL, p.TotalPoints,
		p.ObservationCount, p.SpeciesCount, p.CellsOwned,
		p.FirstObservations, p.LastSyncAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Int64("player", p.ID).Msg("failed to upsert player")
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// Delete removes the player. Observations and score entries cascade via
// foreign keys; aggregate ownership is corrected by the next rollup.
func (r *PlayerRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: player %d", domain.ErrNotFound, id)
	}
	r.logger.Info().Int64("player", id).Msg("player deleted")
	return nil
}

func (r *PlayerRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM players`); err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}
	return n, nil
}

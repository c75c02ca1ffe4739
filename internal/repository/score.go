package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/domain"
)

type ScoreRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewScoreRepository(db *sqlx.DB, logger zerolog.Logger) *ScoreRepository {
	return &ScoreRepository{db: db, logger: logger}
}

type scoreRow struct {
	CellID            string    `db:"cell_id"`
	PlayerID          int64     `db:"player_id"`
	Points            int       `db:"points"`
	ObservationCount  int       `db:"observation_count"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
	PlayerLogin       string    `db:"player_login"`
	PlayerDisplayName string    `db:"player_display_name"`
}

func (r scoreRow) toDomain() domain.ScoreEntry {
	return domain.ScoreEntry{
		CellID:            r.CellID,
		PlayerID:          r.PlayerID,
		Points:            r.Points,
		ObservationCount:  r.ObservationCount,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		PlayerLogin:       r.PlayerLogin,
		PlayerDisplayName: r.PlayerDisplayName,
	}
}

// ListByCell returns the cell's full ledger in ownership order: highest
// points first, ties broken by earliest update, then lowest player id.
func (r *ScoreRepository) ListByCell(ctx context.Context, cellID string) ([]domain.ScoreEntry, error) {
	var rows []scoreRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT s.cell_id, s.player_id, s.points, s.observation_count,
		       s.created_at, s.updated_at,
		       COALESCE(p.login, '') AS player_login,
		       COALESCE(p.display_name, '') AS player_display_name
		FROM score_entries s
		LEFT JOIN players p ON p.id = s.player_id
		WHERE s.cell_id = ?
		ORDER BY s.points DESC, s.updated_at ASC, s.player_id ASC`, cellID)
	if err != nil {
		return nil, fmt.Errorf("list scores by cell: %w", err)
	}

	out := make([]domain.ScoreEntry, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/domain"
)

// LandcoverRepository reads the preloaded land-cover rows (grid cell id at
// the land-cover resolution → biome name).
type LandcoverRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewLandcoverRepository(db *sqlx.DB, logger zerolog.Logger) *LandcoverRepository {
	return &LandcoverRepository{db: db, logger: logger}
}

func (r *LandcoverRepository) Biome(ctx context.Context, cellID string) (string, error) {
	var biome string
	err := r.db.GetContext(ctx, &biome, `SELECT biome FROM landcover WHERE cell_id = ?`, cellID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: landcover %s", domain.ErrNotFound, cellID)
	}
	if err != nil {
		return "", fmt.Errorf("get landcover: %w", err)
	}
	return biome, nil
}

// Import bulk-loads land-cover rows from a dataset export, replacing
// existing entries.
func (r *LandcoverRepository) Import(ctx context.Context, rows map[string]string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import landcover: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO landcover (cell_id, biome) VALUES (?, ?)
		ON CONFLICT(cell_id) DO UPDATE SET biome = excluded.biome`)
	if err != nil {
		return fmt.Errorf("import landcover: %w", err)
	}
	defer stmt.Close()

	for cellID, biome := range rows {
		if _, err := stmt.ExecContext(ctx, cellID, biome); err != nil {
			return fmt.Errorf("import landcover row %s: %w", cellID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import landcover: %w", err)
	}
	r.logger.Info().Int("rows", len(rows)).Msg("land-cover import complete")
	return nil
}

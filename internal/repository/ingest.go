package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/domain"
	"github.com/mmulqu/biome/internal/scoring"
)

// IngestRepository applies one scored observation as a single transaction.
// The score factors depend on the cell's committed observation count, and the
// ledger and ownership denormalization must match the observations that made
// them, so the whole per-record write either lands or rolls back. A sync that
// dies mid-record leaves nothing behind and the re-run picks the record up.
type IngestRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewIngestRepository(db *sqlx.DB, logger zerolog.Logger) *IngestRepository {
	return &IngestRepository{db: db, logger: logger}
}

// ApplyScored scores o against its cell, inserts it, bumps the (cell, player)
// ledger entry, and recomputes the cell's owner and counts. The computed
// factors are written back onto o. An already-ingested external id surfaces
// as domain.ErrDuplicateObservation with no state change.
func (r *IngestRepository) ApplyScored(ctx context.Context, o *domain.Observation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply observation: %w", err)
	}
	defer tx.Rollback()

	var cell struct {
		Biome            string `db:"biome"`
		ObservationCount int    `db:"observation_count"`
	}
	err = tx.GetContext(ctx, &cell,
		`SELECT biome, observation_count FROM cells WHERE id = ?`, o.CellID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: cell %s", domain.ErrNotFound, o.CellID)
		}
		return fmt.Errorf("apply observation: %w", err)
	}

	factors := scoring.Score(o.IconicTaxon, cell.Biome, cell.ObservationCount, o.ResearchGrade)
	o.BasePoints = factors.Base
	o.TaxaMultiplier = factors.TaxaMultiplier
	o.ScarcityMultiplier = factors.ScarcityMultiplier
	o.QualityBonus = factors.QualityBonus
	o.TotalPoints = factors.TotalPoints
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	bucket := domain.BucketFor(o.Latitude, o.Longitude)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO observations (
			external_id, player_id, taxon_id, taxon_name, iconic_taxon,
			latitude, longitude, lat_bucket, lng_bucket, cell_id,
			research_grade, observed_at, uri, photo_url,
			base_points, taxa_multiplier, scarcity_multiplier, quality_bonus,
			total_points, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ExternalID, o.PlayerID, o.TaxonID, o.TaxonName, o.IconicTaxon,
		o.Latitude, o.Longitude, bucket.Lat, bucket.Lng, o.CellID,
		o.ResearchGrade, o.ObservedAt, o.URI, o.PhotoURL,
		o.BasePoints, o.TaxaMultiplier, o.ScarcityMultiplier, o.QualityBonus,
		o.TotalPoints, o.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: observation %d", domain.ErrDuplicateObservation, o.ExternalID)
		}
		return fmt.Errorf("insert observation: %w", err)
	}

	// updated_at moves on every hit; the ownership tie-break reads it as
	// "when this total was reached".
	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO score_entries (cell_id, player_id, points, observation_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cell_id, player_id) DO UPDATE SET
			points = points + excluded.points,
			observation_count = observation_count + excluded.observation_count,
			updated_at = excluded.updated_at`,
		o.CellID, o.PlayerID, o.TotalPoints, 1, now, now)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}

	var rows []scoreRow
	err = tx.SelectContext(ctx, &rows, `
		SELECT s.cell_id, s.player_id, s.points, s.observation_count,
		       s.created_at, s.updated_at,
		       COALESCE(p.login, '') AS player_login,
		       COALESCE(p.display_name, '') AS player_display_name
		FROM score_entries s
		LEFT JOIN players p ON p.id = s.player_id
		WHERE s.cell_id = ?
		ORDER BY s.points DESC, s.updated_at ASC, s.player_id ASC`, o.CellID)
	if err != nil {
		return fmt.Errorf("list scores by cell: %w", err)
	}
	entries := make([]domain.ScoreEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.toDomain()
	}

	owner, hasOwner := domain.ChooseOwner(entries)
	if hasOwner {
		_, err = tx.ExecContext(ctx, `
			UPDATE cells SET
				observation_count = observation_count + 1,
				player_count = ?,
				owner_id = ?, owner_login = ?, owner_display_name = ?, owner_points = ?,
				updated_at = ?
			WHERE id = ?`,
			len(entries), owner.PlayerID, owner.PlayerLogin, owner.PlayerDisplayName,
			owner.Points, now, o.CellID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE cells SET observation_count = observation_count + 1, updated_at = ?
			WHERE id = ?`, now, o.CellID)
	}
	if err != nil {
		return fmt.Errorf("update cell: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply observation: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/domain"
)

type ObservationRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewObservationRepository(db *sqlx.DB, logger zerolog.Logger) *ObservationRepository {
	return &ObservationRepository{db: db, logger: logger}
}

type observationRow struct {
	ExternalID         int64     `db:"external_id"`
	PlayerID           int64     `db:"player_id"`
	TaxonID            int64     `db:"taxon_id"`
	TaxonName          string    `db:"taxon_name"`
	IconicTaxon        string    `db:"iconic_taxon"`
	Latitude           float64   `db:"latitude"`
	Longitude          float64   `db:"longitude"`
	LatBucket          int       `db:"lat_bucket"`
	LngBucket          int       `db:"lng_bucket"`
	CellID             string    `db:"cell_id"`
	ResearchGrade      bool      `db:"research_grade"`
	ObservedAt         time.Time `db:"observed_at"`
	URI                string    `db:"uri"`
	PhotoURL           string    `db:"photo_url"`
	BasePoints         int       `db:"base_points"`
	TaxaMultiplier     float64   `db:"taxa_multiplier"`
	ScarcityMultiplier float64   `db:"scarcity_multiplier"`
	QualityBonus       float64   `db:"quality_bonus"`
	TotalPoints        int       `db:"total_points"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r observationRow) toDomain() domain.Observation {
	return domain.Observation{
		ExternalID:         r.ExternalID,
		PlayerID:           r.PlayerID,
		TaxonID:            r.TaxonID,
		TaxonName:          r.TaxonName,
		IconicTaxon:        r.IconicTaxon,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		CellID:             r.CellID,
		ResearchGrade:      r.ResearchGrade,
		ObservedAt:         r.ObservedAt,
		URI:                r.URI,
		PhotoURL:           r.PhotoURL,
		BasePoints:         r.BasePoints,
		TaxaMultiplier:     r.TaxaMultiplier,
		ScarcityMultiplier: r.ScarcityMultiplier,
		QualityBonus:       r.QualityBonus,
		TotalPoints:        r.TotalPoints,
		CreatedAt:          r.CreatedAt,
	}
}

func (r *ObservationRepository) Exists(ctx context.Context, externalID int64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM observations WHERE external_id = ?`, externalID)
	if err != nil {
		return false, fmt.Errorf("observation exists: %w", err)
	}
	return n > 0, nil
}

func (r *ObservationRepository) ListByPlayer(ctx context.Context, playerID int64) ([]domain.Observation, error) {
	var rows []observationRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM observations WHERE player_id = ? ORDER BY observed_at ASC, external_id ASC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list observations by player: %w", err)
	}
	return toDomainObservations(rows), nil
}

func (r *ObservationRepository) ListRecentByCell(ctx context.Context, cellID string, limit int) ([]domain.Observation, error) {
	var rows []observationRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM observations WHERE cell_id = ? ORDER BY observed_at DESC, external_id DESC LIMIT ?`,
		cellID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent observations: %w", err)
	}
	return toDomainObservations(rows), nil
}

// ListTopInBuckets returns the highest-scoring observations in the given
// degree buckets. A nil bucket slice disables the prefilter.
func (r *ObservationRepository) ListTopInBuckets(ctx context.Context, buckets []domain.Bucket, limit int) ([]domain.Observation, error) {
	query := `SELECT * FROM observations`
	args := []any{}
	if len(buckets) > 0 {
		clause, clauseArgs := bucketClause(buckets)
		query += ` WHERE ` + clause
		args = append(args, clauseArgs...)
	}
	query += ` ORDER BY total_points DESC, external_id ASC LIMIT ?`
	args = append(args, limit)

	var rows []observationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list top observations: %w", err)
	}
	return toDomainObservations(rows), nil
}

func (r *ObservationRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM observations`); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}

func (r *ObservationRepository) CountDistinctSpecies(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(DISTINCT taxon_id) FROM observations WHERE taxon_id != 0`)
	if err != nil {
		return 0, fmt.Errorf("count distinct species: %w", err)
	}
	return n, nil
}

func toDomainObservations(rows []observationRow) []domain.Observation {
	out := make([]domain.Observation, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out
}

// bucketClause builds a row-value IN clause over (lat_bucket, lng_bucket).
func bucketClause(buckets []domain.Bucket) (string, []any) {
	placeholders := make([]string, len(buckets))
	args := make([]any, 0, len(buckets)*2)
	for i, b := range buckets {
		placeholders[i] = "(?, ?)"
		args = append(args, b.Lat, b.Lng)
	}
	return "(lat_bucket, lng_bucket) IN (VALUES " + strings.Join(placeholders, ", ") + ")", args
}

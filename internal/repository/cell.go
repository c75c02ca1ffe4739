package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/domain"
)

type CellRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewCellRepository(db *sqlx.DB, logger zerolog.Logger) *CellRepository {
	return &CellRepository{db: db, logger: logger}
}

type cellRow struct {
	ID               string    `db:"id"`
	Tier             string    `db:"tier"`
	CenterLat        float64   `db:"center_lat"`
	CenterLng        float64   `db:"center_lng"`
	LatBucket        int       `db:"lat_bucket"`
	LngBucket        int       `db:"lng_bucket"`
	Boundary         string    `db:"boundary"`
	Biome            string    `db:"biome"`
	ParentMedium     string    `db:"parent_medium"`
	ParentCoarse     string    `db:"parent_coarse"`
	ObservationCount int       `db:"observation_count"`
	PlayerCount      int       `db:"player_count"`
	OwnerID          int64     `db:"owner_id"`
	OwnerLogin       string    `db:"owner_login"`
	OwnerDisplayName string    `db:"owner_display_name"`
	OwnerPoints      int       `db:"owner_points"`
	ChildTilesTotal  int       `db:"child_tiles_total"`
	ChildTilesOwned  int       `db:"child_tiles_owned"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r cellRow) toDomain() (*domain.Cell, error) {
	var boundary []domain.LatLng
	if err := json.Unmarshal([]byte(r.Boundary), &boundary); err != nil {
		return nil, fmt.Errorf("decode cell boundary: %w", err)
	}
	return &domain.Cell{
		ID:               r.ID,
		Tier:             domain.Tier(r.Tier),
		CenterLat:        r.CenterLat,
		CenterLng:        r.CenterLng,
		Boundary:         boundary,
		Biome:            r.Biome,
		ParentMedium:     r.ParentMedium,
		ParentCoarse:     r.ParentCoarse,
		ObservationCount: r.ObservationCount,
		PlayerCount:      r.PlayerCount,
		OwnerID:          r.OwnerID,
		OwnerLogin:       r.OwnerLogin,
		OwnerDisplayName: r.OwnerDisplayName,
		OwnerPoints:      r.OwnerPoints,
		ChildTilesTotal:  r.ChildTilesTotal,
		ChildTilesOwned:  r.ChildTilesOwned,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

func (r *CellRepository) Get(ctx context.Context, id string) (*domain.Cell, error) {
	var row cellRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM cells WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: cell %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get cell: %w", err)
	}
	return row.toDomain()
}

// GetOrCreate inserts the fully-initialized cell unless it already exists,
// then returns the stored row. Callers must pass a complete cell (center,
// boundary, biome, parents); partial placeholder objects are never stored.
func (r *CellRepository) GetOrCreate(ctx context.Context, c *domain.Cell) (*domain.Cell, error) {
	boundary, err := json.Marshal(c.Boundary)
	if err != nil {
		return nil, fmt.Errorf("encode cell boundary: %w", err)
	}
	now := time.Now()
	bucket := domain.BucketFor(c.CenterLat, c.CenterLng)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cells (
			id, tier, center_lat, center_lng, lat_bucket, lng_bucket,
			boundary, biome, parent_medium, parent_coarse,
			observation_count, player_count,
			owner_id, owner_login, owner_display_name, owner_points,
			child_tiles_total, child_tiles_owned, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, '', '', 0, 0, 0, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		c.ID, string(c.Tier), c.CenterLat, c.CenterLng, bucket.Lat, bucket.Lng,
		string(boundary), c.Biome, c.ParentMedium, c.ParentCoarse, now, now)
	if err != nil {
		return nil, fmt.Errorf("create cell: %w", err)
	}

	return r.Get(ctx, c.ID)
}

// Update overwrites the cell's mutable fields. Identity, geometry, and
// creation time are immutable once stored.
func (r *CellRepository) Update(ctx context.Context, c *domain.Cell) error {
	c.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE cells SET
			biome = ?,
			observation_count = ?,
			player_count = ?,
			owner_id = ?,
			owner_login = ?,
			owner_display_name = ?,
			owner_points = ?,
			child_tiles_total = ?,
			child_tiles_owned = ?,
			updated_at = ?
		WHERE id = ?`,
		c.Biome, c.ObservationCount, c.PlayerCount,
		c.OwnerID, c.OwnerLogin, c.OwnerDisplayName, c.OwnerPoints,
		c.ChildTilesTotal, c.ChildTilesOwned, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update cell: %w", err)
	}
	return nil
}

// ListByParent returns every stored child of the given parent cell.
func (r *CellRepository) ListByParent(ctx context.Context, parentID string, childTier domain.Tier) ([]domain.Cell, error) {
	column := "parent_medium"
	if childTier == domain.TierMedium {
		column = "parent_coarse"
	}
	var rows []cellRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM cells WHERE `+column+` = ? AND tier = ?`, parentID, string(childTier))
	if err != nil {
		return nil, fmt.Errorf("list cells by parent: %w", err)
	}
	return toDomainCells(rows)
}

func (r *CellRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Cell, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM cells WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list cells by ids: %w", err)
	}
	var rows []cellRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list cells by ids: %w", err)
	}
	return toDomainCells(rows)
}

// ListTopInBuckets returns the busiest cells of a tier within the given
// degree buckets. A nil bucket slice disables the prefilter.
func (r *CellRepository) ListTopInBuckets(ctx context.Context, tier domain.Tier, buckets []domain.Bucket, limit int) ([]domain.Cell, error) {
	query := `SELECT * FROM cells WHERE tier = ?`
	args := []any{string(tier)}
	if len(buckets) > 0 {
		clause, clauseArgs := bucketClause(buckets)
		query += ` AND ` + clause
		args = append(args, clauseArgs...)
	}
	query += ` ORDER BY observation_count DESC, id ASC LIMIT ?`
	args = append(args, limit)

	var rows []cellRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list top cells: %w", err)
	}
	return toDomainCells(rows)
}

func (r *CellRepository) CountOwned(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM cells WHERE tier = ? AND owner_id != 0`, string(domain.TierFine))
	if err != nil {
		return 0, fmt.Errorf("count owned cells: %w", err)
	}
	return n, nil
}

func (r *CellRepository) CountOwnedBy(ctx context.Context, playerID int64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM cells WHERE tier = ? AND owner_id = ?`, string(domain.TierFine), playerID)
	if err != nil {
		return 0, fmt.Errorf("count cells owned by player: %w", err)
	}
	return n, nil
}

func toDomainCells(rows []cellRow) ([]domain.Cell, error) {
	out := make([]domain.Cell, len(rows))
	for i, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = *c
	}
	return out, nil
}

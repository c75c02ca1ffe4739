package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmulqu/biome/internal/config"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "biome.db")}
	db, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestForeignKeysHoldOnEveryPooledConnection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Pin the connection migrations ran on so the next query is forced onto
	// a fresh one from the pool.
	pinned, err := db.Conn(ctx)
	require.NoError(t, err)
	defer pinned.Close()

	var fk int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk, "foreign_keys must be on for every pooled connection")
}

func TestPlayerDeleteCascadesOnFreshConnection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	_, err := db.ExecContext(ctx,
		`INSERT INTO players (id, login, created_at, updated_at) VALUES (7, 'ada', ?, ?)`, now, now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO observations (
			external_id, player_id, latitude, longitude, lat_bucket, lng_bucket,
			cell_id, observed_at, base_points, taxa_multiplier,
			scarcity_multiplier, quality_bonus, total_points, created_at
		) VALUES (1001, 7, 10.3, 20.6, 10, 20, '8944c12a3b7ffff', ?, 10, 1.5, 3.0, 1.25, 56, ?)`,
		now, now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO score_entries (cell_id, player_id, points, observation_count, created_at, updated_at)
		VALUES ('8944c12a3b7ffff', 7, 56, 1, ?, ?)`, now, now)
	require.NoError(t, err)

	// Occupy the connection the inserts ran on; the delete lands on another.
	pinned, err := db.Conn(ctx)
	require.NoError(t, err)
	defer pinned.Close()

	_, err = db.ExecContext(ctx, `DELETE FROM players WHERE id = 7`)
	require.NoError(t, err)

	var orphanObs, orphanScores int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM observations WHERE player_id = 7`).Scan(&orphanObs))
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM score_entries WHERE player_id = 7`).Scan(&orphanScores))
	assert.Zero(t, orphanObs, "observations must cascade with the player")
	assert.Zero(t, orphanScores, "score entries must cascade with the player")
}

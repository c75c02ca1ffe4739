package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmulqu/biome/internal/config"
	"github.com/mmulqu/biome/internal/domain"
	"github.com/mmulqu/biome/internal/terrain"
)

func newViewportHarness(ttl time.Duration) (*ViewportService, *fakeGrid, *fakeCells, *fakeObservations) {
	g := &fakeGrid{}
	cells := newFakeCells()
	observations := newFakeObservations()
	cfg := &config.Config{ViewportCacheTTL: ttl}
	svc := NewViewportService(cfg, g, terrain.StaticResolver{}, cells, observations, zerolog.Nop())
	return svc, g, cells, observations
}

func TestTierForZoom(t *testing.T) {
	tests := []struct {
		zoom int
		want domain.Tier
	}{
		{0, domain.TierCoarse},
		{5, domain.TierCoarse},
		{6, domain.TierMedium},
		{9, domain.TierMedium},
		{10, domain.TierFine},
		{15, domain.TierFine},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierForZoom(tt.zoom), "zoom %d", tt.zoom)
	}
}

func TestViewportCoverCreatesPlaceholders(t *testing.T) {
	svc, _, cells, _ := newViewportHarness(time.Minute)

	// Small box at high zoom: the precise cover path runs and materializes
	// unowned placeholder cells for empty map areas.
	box := domain.BoundingBox{MinLat: 10.4, MinLng: 20.4, MaxLat: 10.6, MaxLng: 20.6}
	got, err := svc.GetCellsInViewport(context.Background(), box, 14, 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r9:10:20", got[0].ID)
	assert.Equal(t, domain.TierFine, got[0].Tier)
	assert.Equal(t, 0, got[0].ObservationCount)
	assert.Equal(t, int64(0), got[0].OwnerID)

	stored, err := cells.Get(context.Background(), "r9:10:20")
	require.NoError(t, err)
	assert.Equal(t, domain.TierFine, stored.Tier)
}

func TestViewportLargeBoxRanksByObservationCount(t *testing.T) {
	svc, _, cells, _ := newViewportHarness(time.Minute)

	seed := func(id string, lat, lng float64, count int) {
		_, err := cells.GetOrCreate(context.Background(), &domain.Cell{
			ID: id, Tier: domain.TierCoarse, CenterLat: lat, CenterLng: lng, ObservationCount: count,
		})
		require.NoError(t, err)
	}
	seed("r5:0:0", 15, 25, 4)
	seed("r5:0:1", 15, 55, 9)
	seed("r5:-1:0", -15, 25, 1)
	seed("r5:2:2", 75, 75, 100) // outside the box

	box := domain.BoundingBox{MinLat: -30, MinLng: 0, MaxLat: 30, MaxLng: 60}
	got, err := svc.GetCellsInViewport(context.Background(), box, 2, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r5:0:1", got[0].ID)
	assert.Equal(t, "r5:0:0", got[1].ID)
}

func TestViewportPolygonFailureFallsBackToSampling(t *testing.T) {
	svc, g, _, _ := newViewportHarness(time.Minute)
	g.polyErr = errors.New("pentagon distortion")

	box := domain.BoundingBox{MinLat: 10.4, MinLng: 20.4, MaxLat: 10.6, MaxLng: 20.6}
	got, err := svc.GetCellsInViewport(context.Background(), box, 14, 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r9:10:20", got[0].ID)
}

func TestViewportAntimeridianSamplingDedupes(t *testing.T) {
	svc, g, _, _ := newViewportHarness(time.Minute)

	// MinLng > MaxLng: the box wraps the 180° line and must be sampled, not
	// polyfilled.
	box := domain.BoundingBox{MinLat: 10.2, MinLng: 179.5, MaxLat: 10.4, MaxLng: -179.5}
	got, err := svc.GetCellsInViewport(context.Background(), box, 14, 50)
	require.NoError(t, err)
	assert.Zero(t, g.polyCalls)

	seen := make(map[string]struct{})
	for _, c := range got {
		_, dup := seen[c.ID]
		assert.False(t, dup, "cell %s returned twice", c.ID)
		seen[c.ID] = struct{}{}
	}
	assert.Contains(t, seen, "r9:10:179")
	assert.Contains(t, seen, "r9:10:-180")
}

func TestViewportCacheServesAndInvalidates(t *testing.T) {
	svc, _, cells, _ := newViewportHarness(time.Hour)

	box := domain.BoundingBox{MinLat: 10.4, MinLng: 20.4, MaxLat: 10.6, MaxLng: 20.6}
	first, err := svc.GetCellsInViewport(context.Background(), box, 14, 50)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 0, first[0].ObservationCount)

	// A write lands; the cached response stays stale until invalidation.
	stored, err := cells.Get(context.Background(), "r9:10:20")
	require.NoError(t, err)
	stored.ObservationCount = 5
	require.NoError(t, cells.Update(context.Background(), stored))

	cached, err := svc.GetCellsInViewport(context.Background(), box, 14, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, cached[0].ObservationCount)

	svc.Invalidate()

	fresh, err := svc.GetCellsInViewport(context.Background(), box, 14, 50)
	require.NoError(t, err)
	assert.Equal(t, 5, fresh[0].ObservationCount)
}

func TestViewportObservationsBelowZoomThreshold(t *testing.T) {
	svc, _, _, observations := newViewportHarness(time.Minute)
	require.NoError(t, observations.Insert(context.Background(), &domain.Observation{
		ExternalID: 1, Latitude: 10.5, Longitude: 20.5, TotalPoints: 30,
	}))

	box := domain.BoundingBox{MinLat: 10, MinLng: 20, MaxLat: 11, MaxLng: 21}
	got, err := svc.GetObservationsInViewport(context.Background(), box, 11, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestViewportObservationsRankedByPoints(t *testing.T) {
	svc, _, _, observations := newViewportHarness(time.Minute)
	insert := func(id int64, lat, lng float64, points int) {
		require.NoError(t, observations.Insert(context.Background(), &domain.Observation{
			ExternalID: id, Latitude: lat, Longitude: lng, TotalPoints: points,
		}))
	}
	insert(1, 10.5, 20.5, 30)
	insert(2, 10.6, 20.6, 56)
	insert(3, 50.0, 50.0, 99) // outside the box

	box := domain.BoundingBox{MinLat: 10, MinLng: 20, MaxLat: 11, MaxLng: 21}
	got, err := svc.GetObservationsInViewport(context.Background(), box, 13, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ExternalID)
	assert.Equal(t, int64(1), got[1].ExternalID)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 100, clampLimit(0))
	assert.Equal(t, 100, clampLimit(-5))
	assert.Equal(t, 25, clampLimit(25))
	assert.Equal(t, 300, clampLimit(1000))
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/cache"
	"github.com/mmulqu/biome/internal/config"
	"github.com/mmulqu/biome/internal/constants"
	"github.com/mmulqu/biome/internal/domain"
	"github.com/mmulqu/biome/internal/grid"
	"github.com/mmulqu/biome/internal/terrain"
)

// coverAreaThreshold caps, per tier, the viewport area (square degrees) for
// which the precise polygon-cover path runs. Larger viewports go through the
// bucket-indexed ranked query instead of materializing a huge cover set.
var coverAreaThreshold = map[domain.Tier]float64{
	domain.TierFine:   0.25,
	domain.TierMedium: 4,
	domain.TierCoarse: 100,
}

// ViewportService answers "what is visible in this box at this zoom"
// queries. Responses are cached for a few seconds to absorb pan/zoom bursts;
// ingest invalidates the cache explicitly.
type ViewportService struct {
	grid         grid.Adapter
	terrain      terrain.Resolver
	cells        CellStore
	observations ObservationStore
	logger       zerolog.Logger

	cellCache *cache.TTL[[]domain.Cell]
	obsCache  *cache.TTL[[]domain.Observation]
}

func NewViewportService(
	cfg *config.Config,
	g grid.Adapter,
	t terrain.Resolver,
	cells CellStore,
	observations ObservationStore,
	logger zerolog.Logger,
) *ViewportService {
	return &ViewportService{
		grid:         g,
		terrain:      t,
		cells:        cells,
		observations: observations,
		logger:       logger,
		cellCache:    cache.New[[]domain.Cell](cfg.ViewportCacheTTL),
		obsCache:     cache.New[[]domain.Observation](cfg.ViewportCacheTTL),
	}
}

var _ Invalidator = (*ViewportService)(nil)

// Invalidate drops both response caches. Wired to the end of every ingest
// and aggregation pass.
func (s *ViewportService) Invalidate() {
	s.cellCache.Invalidate()
	s.obsCache.Invalidate()
}

// TierForZoom maps a map zoom level to the resolution tier rendered at it.
func TierForZoom(zoom int) domain.Tier {
	switch {
	case zoom < constants.ZoomMedium:
		return domain.TierCoarse
	case zoom < constants.ZoomFine:
		return domain.TierMedium
	default:
		return domain.TierFine
	}
}

// GetCellsInViewport returns the cells visible in the box, ranked by
// observation count. Small viewports are covered precisely (lazily creating
// placeholder cells); larger ones go through the bucket prefilter.
func (s *ViewportService) GetCellsInViewport(ctx context.Context, box domain.BoundingBox, zoom, limit int) ([]domain.Cell, error) {
	limit = clampLimit(limit)
	tier := TierForZoom(zoom)
	key := cacheKey("cells", box, tier, limit)

	if cached, ok := s.cellCache.Get(key); ok {
		return cached, nil
	}

	var result []domain.Cell
	cover := s.coverBox(box, tier)
	if cover != nil && len(cover) <= limit {
		cells, err := s.materializeCells(ctx, cover, tier)
		if err != nil {
			return nil, err
		}
		result = cells
	} else {
		cells, err := s.cells.ListTopInBuckets(ctx, tier, box.Buckets(), limit*2)
		if err != nil {
			return nil, err
		}
		for i := range cells {
			if box.Contains(cells[i].CenterLat, cells[i].CenterLng) {
				result = append(result, cells[i])
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].ObservationCount != result[j].ObservationCount {
			return result[i].ObservationCount > result[j].ObservationCount
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > limit {
		result = result[:limit]
	}

	s.cellCache.Set(key, result)
	return result, nil
}

// GetObservationsInViewport returns individual observations, ranked by point
// value. Below the observation zoom threshold only cells are rendered, so
// the result is empty by design.
func (s *ViewportService) GetObservationsInViewport(ctx context.Context, box domain.BoundingBox, zoom, limit int) ([]domain.Observation, error) {
	if zoom < constants.ZoomObservations {
		return []domain.Observation{}, nil
	}
	limit = clampLimit(limit)
	key := cacheKey("obs", box, domain.TierFine, limit)

	if cached, ok := s.obsCache.Get(key); ok {
		return cached, nil
	}

	rows, err := s.observations.ListTopInBuckets(ctx, box.Buckets(), limit*2)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Observation, 0, limit)
	for i := range rows {
		if box.Contains(rows[i].Latitude, rows[i].Longitude) {
			result = append(result, rows[i])
			if len(result) == limit {
				break
			}
		}
	}

	s.obsCache.Set(key, result)
	return result, nil
}

// coverBox computes the cell ids covering the box at the tier's resolution.
// Returns nil when the box is too large for precise coverage. Boxes crossing
// the antimeridian, and any polygon-cover failure, fall back to a
// deterministic point-sampling sweep — a usable, if less precise, cell set.
func (s *ViewportService) coverBox(box domain.BoundingBox, tier domain.Tier) []string {
	if area(box) > coverAreaThreshold[tier] {
		return nil
	}
	res := resolutionFor(tier)

	if box.CrossesAntimeridian() {
		return s.sampleBox(box, res)
	}

	loop := []domain.LatLng{
		{Lat: box.MinLat, Lng: box.MinLng},
		{Lat: box.MinLat, Lng: box.MaxLng},
		{Lat: box.MaxLat, Lng: box.MaxLng},
		{Lat: box.MaxLat, Lng: box.MinLng},
	}
	cells, err := s.grid.PolygonToCells(loop, res)
	if err != nil {
		s.logger.Warn().Err(err).Msg("polygon cover failed, falling back to point sampling")
		return s.sampleBox(box, res)
	}
	return cells
}

// sampleBox sweeps a fixed grid of sample points across the box and returns
// the deduplicated cells they land in, in first-seen order.
func (s *ViewportService) sampleBox(box domain.BoundingBox, res int) []string {
	steps := constants.ViewportSampleSweepSteps
	latSpan := box.MaxLat - box.MinLat
	lngSpan := box.MaxLng - box.MinLng
	if lngSpan < 0 {
		lngSpan += 360
	}

	seen := make(map[string]struct{})
	var cells []string
	for i := 0; i < steps; i++ {
		lat := box.MinLat + (float64(i)+0.5)*latSpan/float64(steps)
		for j := 0; j < steps; j++ {
			lng := box.MinLng + (float64(j)+0.5)*lngSpan/float64(steps)
			if lng > 180 {
				lng -= 360
			}
			id, err := s.grid.PointToCell(lat, lng, res)
			if err != nil {
				continue
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				cells = append(cells, id)
			}
		}
	}
	return cells
}

// materializeCells returns stored rows for the cover set, lazily creating
// unowned placeholders for cells never seen before.
func (s *ViewportService) materializeCells(ctx context.Context, ids []string, tier domain.Tier) ([]domain.Cell, error) {
	existing, err := s.cells.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Cell, len(existing))
	for i := range existing {
		byID[existing[i].ID] = &existing[i]
	}

	result := make([]domain.Cell, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, *c)
			continue
		}
		seed, err := buildCell(ctx, s.grid, s.terrain, id, tier)
		if err != nil {
			return nil, err
		}
		created, err := s.cells.GetOrCreate(ctx, seed)
		if err != nil {
			return nil, err
		}
		result = append(result, *created)
	}
	return result, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return constants.DefaultViewportLimit
	}
	if limit > constants.MaxViewportLimit {
		return constants.MaxViewportLimit
	}
	return limit
}

func area(box domain.BoundingBox) float64 {
	latSpan := box.MaxLat - box.MinLat
	lngSpan := box.MaxLng - box.MinLng
	if lngSpan < 0 {
		lngSpan += 360
	}
	return latSpan * lngSpan
}

// cacheKey builds the (bucket signature, tier, limit) cache key. Oversized
// viewports with no bucket enumeration key on the rounded box instead.
func cacheKey(kind string, box domain.BoundingBox, tier domain.Tier, limit int) string {
	buckets := box.Buckets()
	if buckets == nil {
		return fmt.Sprintf("%s|%s|%d|box:%.2f,%.2f,%.2f,%.2f", kind, tier, limit,
			box.MinLat, box.MinLng, box.MaxLat, box.MaxLng)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%d|", kind, tier, limit)
	for _, b := range buckets {
		fmt.Fprintf(&sb, "%d:%d;", b.Lat, b.Lng)
	}
	return sb.String()
}

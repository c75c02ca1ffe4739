package service

import (
	"context"

	"github.com/mmulqu/biome/internal/constants"
	"github.com/mmulqu/biome/internal/domain"
	"github.com/mmulqu/biome/internal/grid"
	"github.com/mmulqu/biome/internal/terrain"
)

func resolutionFor(tier domain.Tier) int {
	switch tier {
	case domain.TierCoarse:
		return constants.ResolutionCoarse
	case domain.TierMedium:
		return constants.ResolutionMedium
	default:
		return constants.ResolutionFine
	}
}

// buildCell assembles a fully-initialized cell: center, boundary (computed
// once, persisted), parent links, and biome. Every creation path goes through
// here so no partial cell objects ever reach storage.
func buildCell(ctx context.Context, g grid.Adapter, t terrain.Resolver, cellID string, tier domain.Tier) (*domain.Cell, error) {
	center, err := g.CellToCenter(cellID)
	if err != nil {
		return nil, err
	}
	boundary, err := g.CellToBoundary(cellID)
	if err != nil {
		return nil, err
	}

	c := &domain.Cell{
		ID:        cellID,
		Tier:      tier,
		CenterLat: center.Lat,
		CenterLng: center.Lng,
		Boundary:  boundary,
		Biome:     terrain.BiomeUnknown,
	}

	switch tier {
	case domain.TierFine:
		if c.ParentMedium, err = g.CellToParent(cellID, constants.ResolutionMedium); err != nil {
			return nil, err
		}
		if c.ParentCoarse, err = g.CellToParent(cellID, constants.ResolutionCoarse); err != nil {
			return nil, err
		}
	case domain.TierMedium:
		if c.ParentCoarse, err = g.CellToParent(cellID, constants.ResolutionCoarse); err != nil {
			return nil, err
		}
	}

	if biome, err := t.BiomeFor(ctx, cellID); err == nil {
		c.Biome = biome
	}
	return c, nil
}

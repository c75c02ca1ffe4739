// Package terrain resolves the biome classification for a cell from the
// preloaded land-cover dataset (Copernicus Global Land Cover, exported per
// grid cell at the medium resolution).
package terrain

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/constants"
	"github.com/mmulqu/biome/internal/domain"
	"github.com/mmulqu/biome/internal/grid"
)

// BiomeUnknown is the default classification until a lookup resolves.
const BiomeUnknown = "unknown"

// LandcoverStore is the persisted land-cover table, keyed by cell id at the
// land-cover resolution.
type LandcoverStore interface {
	Biome(ctx context.Context, cellID string) (string, error)
}

// Resolver maps a cell to its biome.
type Resolver interface {
	BiomeFor(ctx context.Context, cellID string) (string, error)
}

// LandcoverResolver resolves biomes by walking the cell up to the land-cover
// resolution and looking it up in the store. Missing rows resolve to
// BiomeUnknown rather than failing cell creation.
type LandcoverResolver struct {
	grid   grid.Adapter
	store  LandcoverStore
	logger zerolog.Logger
}

func NewLandcoverResolver(g grid.Adapter, store LandcoverStore, logger zerolog.Logger) *LandcoverResolver {
	return &LandcoverResolver{grid: g, store: store, logger: logger}
}

var _ Resolver = (*LandcoverResolver)(nil)

func (r *LandcoverResolver) BiomeFor(ctx context.Context, cellID string) (string, error) {
	key, err := r.grid.CellToParent(cellID, constants.ResolutionLandcover)
	if err != nil {
		// The cell may already be at or above the land-cover resolution.
		key = cellID
	}

	biome, err := r.store.Biome(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return BiomeUnknown, nil
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("cell", cellID).Msg("land-cover lookup failed")
		return BiomeUnknown, nil
	}
	if biome == "" {
		return BiomeUnknown, nil
	}
	return biome, nil
}

// BiomeForClass maps a Copernicus Global Land Cover discrete class code to a
// biome name. Class codes follow the CGLS-LC100 product: 111-116 are closed
// forest, 121-126 open forest.
func BiomeForClass(code int) string {
	switch {
	case code == 20:
		return "shrubland"
	case code == 30:
		return "grassland"
	case code == 40:
		return "agricultural"
	case code == 50:
		return "urban"
	case code == 60:
		return "desert"
	case code == 70:
		return "polar"
	case code == 80:
		return "freshwater"
	case code == 90:
		return "wetland"
	case code == 100:
		return "tundra"
	case code >= 111 && code <= 116:
		return "forest"
	case code >= 121 && code <= 126:
		return "woodland"
	case code == 200:
		return "ocean"
	default:
		return BiomeUnknown
	}
}

// StaticResolver returns a fixed biome for every cell. Useful for tests and
// for running without a land-cover import.
type StaticResolver struct {
	Value string
}

func (s StaticResolver) BiomeFor(ctx context.Context, cellID string) (string, error) {
	if s.Value == "" {
		return BiomeUnknown, nil
	}
	return s.Value, nil
}

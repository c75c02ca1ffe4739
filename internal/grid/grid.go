// Package grid wraps the discrete global grid system the territory engine is
// built on. All functions are pure; cell ids are the grid's canonical string
// form.
package grid

import (
	"github.com/mmulqu/biome/internal/domain"
)

// Adapter is the geometry surface the core depends on. Implementations must
// be safe for concurrent use.
type Adapter interface {
	// PointToCell returns the cell containing the point at the given
	// resolution.
	PointToCell(lat, lng float64, resolution int) (string, error)

	// CellToBoundary returns the cell's polygon boundary.
	CellToBoundary(cellID string) ([]domain.LatLng, error)

	// CellToParent returns the containing cell at a coarser resolution.
	CellToParent(cellID string, resolution int) (string, error)

	// CellToCenter returns the cell's center point.
	CellToCenter(cellID string) (domain.LatLng, error)

	// PolygonToCells returns the cells covering the closed loop at the
	// given resolution.
	PolygonToCells(loop []domain.LatLng, resolution int) ([]string, error)
}

package grid

import (
	"fmt"
	"strconv"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mmulqu/biome/internal/domain"
)

// H3Adapter implements Adapter on Uber's H3 hexagonal grid.
type H3Adapter struct{}

func NewH3Adapter() *H3Adapter {
	return &H3Adapter{}
}

var _ Adapter = (*H3Adapter)(nil)

func (a *H3Adapter) PointToCell(lat, lng float64, resolution int) (string, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), resolution)
	if err != nil {
		return "", fmt.Errorf("%w: point to cell: %v", domain.ErrUpstream, err)
	}
	return formatCell(cell), nil
}

func (a *H3Adapter) CellToBoundary(cellID string) ([]domain.LatLng, error) {
	cell, err := parseCell(cellID)
	if err != nil {
		return nil, err
	}
	boundary, err := h3.CellToBoundary(cell)
	if err != nil {
		return nil, fmt.Errorf("%w: cell boundary: %v", domain.ErrUpstream, err)
	}
	out := make([]domain.LatLng, len(boundary))
	for i, v := range boundary {
		out[i] = domain.LatLng{Lat: v.Lat, Lng: v.Lng}
	}
	return out, nil
}

func (a *H3Adapter) CellToParent(cellID string, resolution int) (string, error) {
	cell, err := parseCell(cellID)
	if err != nil {
		return "", err
	}
	parent, err := cell.Parent(resolution)
	if err != nil {
		return "", fmt.Errorf("%w: cell parent: %v", domain.ErrUpstream, err)
	}
	return formatCell(parent), nil
}

func (a *H3Adapter) CellToCenter(cellID string) (domain.LatLng, error) {
	cell, err := parseCell(cellID)
	if err != nil {
		return domain.LatLng{}, err
	}
	center, err := h3.CellToLatLng(cell)
	if err != nil {
		return domain.LatLng{}, fmt.Errorf("%w: cell center: %v", domain.ErrUpstream, err)
	}
	return domain.LatLng{Lat: center.Lat, Lng: center.Lng}, nil
}

func (a *H3Adapter) PolygonToCells(loop []domain.LatLng, resolution int) ([]string, error) {
	geoLoop := make(h3.GeoLoop, len(loop))
	for i, p := range loop {
		geoLoop[i] = h3.NewLatLng(p.Lat, p.Lng)
	}
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: geoLoop}, resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: polygon to cells: %v", domain.ErrUpstream, err)
	}
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = formatCell(c)
	}
	return out, nil
}

// Cell ids travel as the H3 canonical lowercase hex form of the 64-bit index.
func formatCell(c h3.Cell) string {
	return strconv.FormatUint(uint64(c), 16)
}

func parseCell(id string) (h3.Cell, error) {
	v, err := strconv.ParseUint(id, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidCellID, id)
	}
	cell := h3.Cell(v)
	if !cell.IsValid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidCellID, id)
	}
	return cell, nil
}

package domain

import (
	"time"
)

// Tier is one of the three grid granularities used for zoom-dependent
// rendering and rollups.
type Tier string

const (
	TierCoarse Tier = "coarse"
	TierMedium Tier = "medium"
	TierFine   Tier = "fine"
)

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox is a geographic viewport. MinLng > MaxLng means the box
// crosses the antimeridian.
type BoundingBox struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

// CrossesAntimeridian reports whether the box wraps around the 180° line.
func (b BoundingBox) CrossesAntimeridian() bool {
	return b.MinLng > b.MaxLng
}

// Contains reports whether the point falls inside the box.
func (b BoundingBox) Contains(lat, lng float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian() {
		return lng >= b.MinLng || lng <= b.MaxLng
	}
	return lng >= b.MinLng && lng <= b.MaxLng
}

type Player struct {
	ID                int64 // iNaturalist user id
	Login             string
	DisplayName       string
	AvatarURL         string
	TotalPoints       int
	ObservationCount  int
	SpeciesCount      int
	CellsOwned        int
	FirstObservations int // observations that were the first ever in their cell
	LastSyncAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Observation is one real-world sighting. The external id doubles as the
// idempotency key: the same id is never counted twice.
type Observation struct {
	ExternalID    int64
	PlayerID      int64
	TaxonID       int64  // 0 when the taxon is unknown
	TaxonName     string // empty when unknown
	IconicTaxon   string // e.g. "Plantae", "Aves"; empty when unknown
	Latitude      float64
	Longitude     float64
	CellID        string // finest-resolution cell
	ResearchGrade bool
	ObservedAt    time.Time
	URI           string
	PhotoURL      string

	// Scoring factors captured at ingest time.
	BasePoints         int
	TaxaMultiplier     float64
	ScarcityMultiplier float64
	QualityBonus       float64
	TotalPoints        int

	CreatedAt time.Time
}

// Cell is one hexagonal region at a fixed resolution tier. A cell with zero
// observations is a valid, unowned placeholder.
type Cell struct {
	ID           string
	Tier         Tier
	CenterLat    float64
	CenterLng    float64
	Boundary     []LatLng // precomputed once at creation
	Biome        string   // "unknown" until the land-cover lookup resolves
	ParentMedium string   // empty for medium/coarse cells
	ParentCoarse string   // empty for coarse cells

	ObservationCount int
	PlayerCount      int

	// Denormalized owner fields; OwnerID == 0 means unowned.
	OwnerID          int64
	OwnerLogin       string
	OwnerDisplayName string
	OwnerPoints      int

	// Child rollup counters, maintained by the aggregator for medium and
	// coarse cells only.
	ChildTilesTotal int
	ChildTilesOwned int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScoreEntry is the per-(cell, player) accumulator that cell ownership is
// derived from.
type ScoreEntry struct {
	CellID           string
	PlayerID         int64
	Points           int
	ObservationCount int
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Populated on leaderboard reads.
	PlayerLogin       string
	PlayerDisplayName string
}

// SyncRun is an audit record of one ingest pass for one player.
type SyncRun struct {
	ID         string // nanoid
	PlayerID   int64
	Added      int
	Skipped    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// SyncResult is what syncPlayer reports back to the caller.
type SyncResult struct {
	Added             int `json:"added"`
	Skipped           int `json:"skipped"`
	TotalObservations int `json:"total_observations"`
}

// GlobalStats is the site-wide rollup.
type GlobalStats struct {
	TotalObservations int `json:"total_observations"`
	TotalOwnedCells   int `json:"total_owned_cells"`
	TotalPlayers      int `json:"total_players"`
	TotalSpecies      int `json:"total_species"`
}

// CellDetail bundles a cell with its leaderboard and recent activity.
type CellDetail struct {
	Cell               *Cell         `json:"cell"`
	ScoreLeaderboard   []ScoreEntry  `json:"score_leaderboard"`
	RecentObservations []Observation `json:"recent_observations"`
}

package constants

import "time"

// H3 resolutions for the three tiers. The land-cover dataset is keyed at the
// medium resolution.
const (
	ResolutionCoarse    = 5
	ResolutionMedium    = 7
	ResolutionFine      = 9
	ResolutionLandcover = 7
)

// Zoom thresholds for tier selection. Below ZoomMedium the viewport serves
// coarse cells; individual observations only appear at ZoomObservations and up.
const (
	ZoomMedium       = 6
	ZoomFine         = 10
	ZoomObservations = 12
)

const (
	DefaultViewportLimit     = 100
	MaxViewportLimit         = 300
	LeaderboardLimit         = 10
	RecentObservationsLimit  = 20
	ViewportSampleSweepSteps = 12
)

const (
	ViewportCacheTTL = 5 * time.Second
)

// External-source pagination.
const (
	SourcePageSize = 200
	SourceMaxPages = 50
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	SyncTimeout        = 2 * time.Minute
)

// Per-cell lock acquisition during ownership recompute.
const (
	CellLockMaxRetries = 10
	CellLockBackoff    = 5 * time.Millisecond
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

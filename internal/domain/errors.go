package domain

import "errors"

var (
	// ErrNotFound is returned on reads for unknown players, cells, or
	// observations. Callers surface it as an empty result, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateObservation marks a record whose external id already
	// exists. Ingest treats it as a successful no-op.
	ErrDuplicateObservation = errors.New("duplicate observation")

	// ErrInvalidCoordinates marks a raw record with missing or out-of-range
	// coordinates. Ingest counts it as skipped.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrInvalidCellID marks a malformed or non-canonical cell id supplied
	// by a caller. A bad request, not a grid failure.
	ErrInvalidCellID = errors.New("invalid cell id")

	// ErrUpstream wraps failures of the external source or the grid
	// system. Retryable; partial progress already committed is kept.
	ErrUpstream = errors.New("upstream unavailable")

	// ErrIntegrity marks inconsistent child/parent counts found during
	// aggregation. Logged and self-healed by the next full recompute.
	ErrIntegrity = errors.New("integrity violation")
)

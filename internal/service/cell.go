package service

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mmulqu/biome/internal/constants"
	"github.com/mmulqu/biome/internal/domain"
)

// CellQueryService serves cell detail panels and the site-wide stats strip.
type CellQueryService struct {
	cells        CellStore
	scores       ScoreStore
	observations ObservationStore
	players      PlayerStore
	logger       zerolog.Logger
}

func NewCellQueryService(
	cells CellStore,
	scores ScoreStore,
	observations ObservationStore,
	players PlayerStore,
	logger zerolog.Logger,
) *CellQueryService {
	return &CellQueryService{
		cells:        cells,
		scores:       scores,
		observations: observations,
		players:      players,
		logger:       logger,
	}
}

// GetCellDetail returns the cell with its score leaderboard and most recent
// observations. The leaderboard ordering is the ownership ordering, so the
// first entry is always the current owner.
func (s *CellQueryService) GetCellDetail(ctx context.Context, cellID string) (*domain.CellDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	cell, err := s.cells.Get(ctx, cellID)
	if err != nil {
		return nil, err
	}

	leaderboard, err := s.scores.ListByCell(ctx, cellID)
	if err != nil {
		return nil, err
	}
	if len(leaderboard) > constants.LeaderboardLimit {
		leaderboard = leaderboard[:constants.LeaderboardLimit]
	}

	recent, err := s.observations.ListRecentByCell(ctx, cellID, constants.RecentObservationsLimit)
	if err != nil {
		return nil, err
	}

	return &domain.CellDetail{
		Cell:               cell,
		ScoreLeaderboard:   leaderboard,
		RecentObservations: recent,
	}, nil
}

// GetGlobalStats computes the four site-wide counters in parallel.
func (s *CellQueryService) GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var stats domain.GlobalStats
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.observations.Count(gCtx)
		stats.TotalObservations = n
		return err
	})
	g.Go(func() error {
		n, err := s.cells.CountOwned(gCtx)
		stats.TotalOwnedCells = n
		return err
	})
	g.Go(func() error {
		n, err := s.players.Count(gCtx)
		stats.TotalPlayers = n
		return err
	})
	g.Go(func() error {
		n, err := s.observations.CountDistinctSpecies(gCtx)
		stats.TotalSpecies = n
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

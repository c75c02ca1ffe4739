package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/constants"
	"github.com/mmulqu/biome/internal/domain"
)

// PlayerService serves player reads and explicit removal.
type PlayerService struct {
	players     PlayerStore
	invalidator Invalidator
	logger      zerolog.Logger
}

func NewPlayerService(players PlayerStore, invalidator Invalidator, logger zerolog.Logger) *PlayerService {
	return &PlayerService{players: players, invalidator: invalidator, logger: logger}
}

func (s *PlayerService) GetPlayer(ctx context.Context, login string) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.players.GetByLogin(ctx, login)
}

// RemovePlayer deletes the player; their observations and score entries
// cascade. Aggregate ownership that referenced them is corrected by the next
// aggregation pass rather than rewritten here.
func (s *PlayerService) RemovePlayer(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.players.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidator.Invalidate()
	s.logger.Info().Int64("player", id).Msg("player removed")
	return nil
}

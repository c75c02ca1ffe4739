package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/api"
	"github.com/mmulqu/biome/internal/constants"
	"github.com/mmulqu/biome/internal/domain"
	"github.com/mmulqu/biome/internal/grid"
	"github.com/mmulqu/biome/internal/terrain"
)

// SyncService runs the observation ingest pipeline: fetch a player's
// observations from the external source, score and persist the new ones,
// and roll the touched region up the tier hierarchy. The whole pipeline is
// idempotent by external id, so re-running after a partial failure is the
// recovery mechanism.
type SyncService struct {
	source       ObservationSource
	grid         grid.Adapter
	terrain      terrain.Resolver
	players      PlayerStore
	observations ObservationStore
	cells        CellStore
	ingest       IngestStore
	syncRuns     SyncRunStore
	aggregator   *Aggregator
	invalidator  Invalidator
	logger       zerolog.Logger

	cellLocks   *keyedMutex
	playerLocks *keyedMutex
}

func NewSyncService(
	source ObservationSource,
	g grid.Adapter,
	t terrain.Resolver,
	players PlayerStore,
	observations ObservationStore,
	cells CellStore,
	ingest IngestStore,
	syncRuns SyncRunStore,
	aggregator *Aggregator,
	invalidator Invalidator,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		source:       source,
		grid:         g,
		terrain:      t,
		players:      players,
		observations: observations,
		cells:        cells,
		ingest:       ingest,
		syncRuns:     syncRuns,
		aggregator:   aggregator,
		invalidator:  invalidator,
		logger:       logger,
		cellLocks:    newKeyedMutex(),
		playerLocks:  newKeyedMutex(),
	}
}

// SyncPlayer ingests one player's observations end to end. One sync per
// player runs at a time; syncs for different players may run concurrently.
func (s *SyncService) SyncPlayer(ctx context.Context, login string) (*domain.SyncResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.SyncTimeout)
	defer cancel()

	unlock := s.playerLocks.Lock(login)
	defer unlock()

	started := time.Now()
	s.logger.Info().Str("login", login).Msg("starting player sync")

	player, err := s.resolvePlayer(ctx, login)
	if err != nil {
		return nil, err
	}

	records, err := s.fetchAll(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("fetch observations for %s: %w", login, err)
	}

	// Ingest in stable earliest-observed-first order so the scarcity
	// multiplier decays correctly within the batch.
	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := records[i].ObservedTime(), records[j].ObservedTime()
		if ti.Equal(tj) {
			return records[i].ID < records[j].ID
		}
		return ti.Before(tj)
	})

	added, skipped := 0, 0
	touched := make(map[string]struct{})

	for i := range records {
		cellID, ok, err := s.ingestRecord(ctx, player, &records[i])
		if err != nil {
			return nil, fmt.Errorf("ingest observation %d: %w", records[i].ID, err)
		}
		if ok {
			added++
			touched[cellID] = struct{}{}
		} else {
			skipped++
		}
	}

	if err := s.refreshPlayerStats(ctx, player); err != nil {
		return nil, fmt.Errorf("refresh stats for %s: %w", login, err)
	}

	if len(touched) > 0 {
		fineIDs := make([]string, 0, len(touched))
		for id := range touched {
			fineIDs = append(fineIDs, id)
		}
		sort.Strings(fineIDs)
		if err := s.aggregator.RebuildForFineCells(ctx, fineIDs); err != nil {
			return nil, fmt.Errorf("aggregate region for %s: %w", login, err)
		}
	}

	s.invalidator.Invalidate()

	s.recordRun(player.ID, added, skipped, started)

	s.logger.Info().
		Str("login", login).
		Int("added", added).
		Int("skipped", skipped).
		Int("cells_touched", len(touched)).
		Dur("duration", time.Since(started)).
		Msg("player sync complete")

	return &domain.SyncResult{
		Added:             added,
		Skipped:           skipped,
		TotalObservations: player.ObservationCount,
	}, nil
}

// resolvePlayer finds the player locally or creates them from the external
// source on first sync.
func (s *SyncService) resolvePlayer(ctx context.Context, login string) (*domain.Player, error) {
	player, err := s.players.GetByLogin(ctx, login)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	user, err := s.source.GetUser(apiCtx, login)
	if err != nil {
		return nil, err
	}

	player = &domain.Player{
		ID:          user.ID,
		Login:       user.Login,
		DisplayName: user.Name,
		AvatarURL:   user.IconURL,
	}
	if player.DisplayName == "" {
		player.DisplayName = user.Login
	}
	if err := s.players.Upsert(ctx, player); err != nil {
		return nil, err
	}
	s.logger.Info().Str("login", login).Int64("player", player.ID).Msg("player created")
	return player, nil
}

func (s *SyncService) fetchAll(ctx context.Context, login string) ([]api.ObservationRecord, error) {
	var records []api.ObservationRecord
	for page := 1; page <= constants.SourceMaxPages; page++ {
		apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		result, err := s.source.GetObservations(apiCtx, login, page)
		cancel()
		if err != nil {
			return nil, err
		}
		records = append(records, result.Records...)
		if !result.HasMore {
			break
		}
	}
	return records, nil
}

// ingestRecord processes one raw record. Returns added=false for records
// skipped by validation or deduplication; a non-nil error aborts the batch
// (already-committed records stay committed and the sync is safely re-run).
func (s *SyncService) ingestRecord(ctx context.Context, player *domain.Player, rec *api.ObservationRecord) (string, bool, error) {
	lat, lng, ok := rec.Coordinates()
	if !ok {
		s.logger.Debug().Err(domain.ErrInvalidCoordinates).Int64("observation", rec.ID).Msg("skipping record")
		return "", false, nil
	}

	exists, err := s.observations.Exists(ctx, rec.ID)
	if err != nil {
		return "", false, err
	}
	if exists {
		return "", false, nil
	}

	cellID, err := s.grid.PointToCell(lat, lng, constants.ResolutionFine)
	if err != nil {
		return "", false, err
	}

	cellSeed, err := buildCell(ctx, s.grid, s.terrain, cellID, domain.TierFine)
	if err != nil {
		return "", false, err
	}
	if _, err := s.cells.GetOrCreate(ctx, cellSeed); err != nil {
		return "", false, err
	}

	obs := &domain.Observation{
		ExternalID:    rec.ID,
		PlayerID:      player.ID,
		Latitude:      lat,
		Longitude:     lng,
		CellID:        cellID,
		ResearchGrade: rec.ResearchGrade(),
		ObservedAt:    rec.ObservedTime(),
		URI:           rec.URI,
		PhotoURL:      rec.FirstPhotoURL(),
	}
	if rec.Taxon != nil {
		obs.TaxonID = rec.Taxon.ID
		obs.TaxonName = rec.Taxon.Name
		obs.IconicTaxon = rec.Taxon.IconicTaxonName
	}

	// Scoring and the ownership recompute for a cell must serialize across
	// concurrent player syncs; the store makes the write itself atomic.
	err = s.cellLocks.With(ctx, cellID, func() error {
		return s.ingest.ApplyScored(ctx, obs)
	})
	if errors.Is(err, domain.ErrDuplicateObservation) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return cellID, true, nil
}

// refreshPlayerStats re-derives the player's cumulative stats from their full
// observation set instead of accumulating increments, so a partially-failed
// earlier batch cannot leave drift behind.
func (s *SyncService) refreshPlayerStats(ctx context.Context, player *domain.Player) error {
	obs, err := s.observations.ListByPlayer(ctx, player.ID)
	if err != nil {
		return err
	}

	totalPoints := 0
	firstObservations := 0
	species := make(map[int64]struct{})
	for i := range obs {
		totalPoints += obs[i].TotalPoints
		if obs[i].ScarcityMultiplier == 3.0 {
			firstObservations++
		}
		if obs[i].TaxonID != 0 {
			species[obs[i].TaxonID] = struct{}{}
		}
	}

	cellsOwned, err := s.cells.CountOwnedBy(ctx, player.ID)
	if err != nil {
		return err
	}

	player.TotalPoints = totalPoints
	player.ObservationCount = len(obs)
	player.SpeciesCount = len(species)
	player.CellsOwned = cellsOwned
	player.FirstObservations = firstObservations
	player.LastSyncAt = time.Now()

	return s.players.Upsert(ctx, player)
}

func (s *SyncService) recordRun(playerID int64, added, skipped int, started time.Time) {
	id, err := gonanoid.New()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to generate sync run id")
		return
	}
	run := &domain.SyncRun{
		ID:         id,
		PlayerID:   playerID,
		Added:      added,
		Skipped:    skipped,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	// Audit only; a failed insert never fails the sync.
	if err := s.syncRuns.Insert(context.Background(), run); err != nil {
		s.logger.Warn().Err(err).Int64("player", playerID).Msg("failed to record sync run")
	}
}

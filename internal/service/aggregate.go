package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/constants"
	"github.com/mmulqu/biome/internal/domain"
	"github.com/mmulqu/biome/internal/grid"
	"github.com/mmulqu/biome/internal/terrain"
)

// Aggregator rolls fine cells up into the medium and coarse tiers. Each
// parent is rebuilt from a full recount of its direct children rather than
// patched incrementally: counts are derived data, and a rebuild of just the
// touched parents is cheap and immune to double-counting. The pass is
// idempotent and safe to run concurrently with further ingestion — it reads
// committed children and overwrites derived parent fields only.
type Aggregator struct {
	grid    grid.Adapter
	terrain terrain.Resolver
	cells   CellStore
	logger  zerolog.Logger
}

func NewAggregator(g grid.Adapter, t terrain.Resolver, cells CellStore, logger zerolog.Logger) *Aggregator {
	return &Aggregator{grid: g, terrain: t, cells: cells, logger: logger}
}

// RebuildForFineCells recomputes every medium and coarse ancestor of the
// given fine cells.
func (a *Aggregator) RebuildForFineCells(ctx context.Context, fineIDs []string) error {
	started := time.Now()

	mediumIDs, err := a.parentSet(fineIDs, constants.ResolutionMedium)
	if err != nil {
		return err
	}
	for _, id := range mediumIDs {
		if err := a.rebuildParent(ctx, id, domain.TierMedium, domain.TierFine); err != nil {
			return fmt.Errorf("rebuild medium cell %s: %w", id, err)
		}
	}

	coarseIDs, err := a.parentSet(mediumIDs, constants.ResolutionCoarse)
	if err != nil {
		return err
	}
	for _, id := range coarseIDs {
		if err := a.rebuildParent(ctx, id, domain.TierCoarse, domain.TierMedium); err != nil {
			return fmt.Errorf("rebuild coarse cell %s: %w", id, err)
		}
	}

	a.logger.Debug().
		Int("fine", len(fineIDs)).
		Int("medium", len(mediumIDs)).
		Int("coarse", len(coarseIDs)).
		Dur("duration", time.Since(started)).
		Msg("aggregation pass complete")
	return nil
}

func (a *Aggregator) parentSet(ids []string, resolution int) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		parent, err := a.grid.CellToParent(id, resolution)
		if err != nil {
			return nil, err
		}
		seen[parent] = struct{}{}
	}
	parents := make([]string, 0, len(seen))
	for id := range seen {
		parents = append(parents, id)
	}
	sort.Strings(parents)
	return parents, nil
}

// childRollup accumulates one player's holdings across a parent's children.
type childRollup struct {
	playerID    int64
	login       string
	displayName string
	cellsOwned  int
	points      int
}

func (a *Aggregator) rebuildParent(ctx context.Context, parentID string, parentTier, childTier domain.Tier) error {
	seed, err := buildCell(ctx, a.grid, a.terrain, parentID, parentTier)
	if err != nil {
		return err
	}
	parent, err := a.cells.GetOrCreate(ctx, seed)
	if err != nil {
		return err
	}

	children, err := a.cells.ListByParent(ctx, parentID, childTier)
	if err != nil {
		return err
	}

	totalObs := 0
	rollups := make(map[int64]*childRollup)
	for i := range children {
		ch := &children[i]
		totalObs += ch.ObservationCount
		if ch.OwnerID == 0 {
			continue
		}
		r, ok := rollups[ch.OwnerID]
		if !ok {
			r = &childRollup{
				playerID:    ch.OwnerID,
				login:       ch.OwnerLogin,
				displayName: ch.OwnerDisplayName,
			}
			rollups[ch.OwnerID] = r
		}
		r.cellsOwned++
		r.points += ch.OwnerPoints
	}

	if parent.ChildTilesTotal == len(children) && parent.ObservationCount != totalObs {
		// Stale derived counts from an interleaved write; this rebuild is
		// the self-heal.
		a.logger.Debug().
			Err(domain.ErrIntegrity).
			Str("cell", parentID).
			Int("stored", parent.ObservationCount).
			Int("recomputed", totalObs).
			Msg("correcting inconsistent parent counts")
	}

	leader := chooseLeader(rollups)

	parent.ObservationCount = totalObs
	parent.PlayerCount = len(rollups)
	parent.ChildTilesTotal = len(children)
	if leader != nil {
		parent.OwnerID = leader.playerID
		parent.OwnerLogin = leader.login
		parent.OwnerDisplayName = leader.displayName
		parent.OwnerPoints = leader.points
		parent.ChildTilesOwned = leader.cellsOwned
	} else {
		parent.OwnerID = 0
		parent.OwnerLogin = ""
		parent.OwnerDisplayName = ""
		parent.OwnerPoints = 0
		parent.ChildTilesOwned = 0
	}

	return a.cells.Update(ctx, parent)
}

// chooseLeader picks the parent-cell owner: most owned children wins, ties
// broken by summed points, then by lower player id.
func chooseLeader(rollups map[int64]*childRollup) *childRollup {
	var best *childRollup
	for _, r := range rollups {
		if best == nil {
			best = r
			continue
		}
		if r.cellsOwned != best.cellsOwned {
			if r.cellsOwned > best.cellsOwned {
				best = r
			}
			continue
		}
		if r.points != best.points {
			if r.points > best.points {
				best = r
			}
			continue
		}
		if r.playerID < best.playerID {
			best = r
		}
	}
	return best
}

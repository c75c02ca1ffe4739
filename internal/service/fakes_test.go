package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mmulqu/biome/internal/api"
	"github.com/mmulqu/biome/internal/domain"
	"github.com/mmulqu/biome/internal/scoring"
)

// fakeGrid is a deterministic stand-in for the hex grid: cells are square
// degree tiles whose size depends on resolution, with ids of the form
// "r<res>:<latIdx>:<lngIdx>". Parent/child relationships fall out of the
// coarser tiling, which is all the services rely on.
type fakeGrid struct {
	mu        sync.Mutex
	polyErr   error
	polyCalls int
}

func spanFor(resolution int) float64 {
	switch resolution {
	case 5:
		return 30
	case 7:
		return 10
	default:
		return 1
	}
}

func (g *fakeGrid) PointToCell(lat, lng float64, resolution int) (string, error) {
	span := spanFor(resolution)
	return fmt.Sprintf("r%d:%d:%d", resolution, int(math.Floor(lat/span)), int(math.Floor(lng/span))), nil
}

func (g *fakeGrid) parse(cellID string) (res, latIdx, lngIdx int, err error) {
	if _, err = fmt.Sscanf(cellID, "r%d:%d:%d", &res, &latIdx, &lngIdx); err != nil {
		return 0, 0, 0, fmt.Errorf("bad fake cell id %q: %w", cellID, err)
	}
	return res, latIdx, lngIdx, nil
}

func (g *fakeGrid) CellToCenter(cellID string) (domain.LatLng, error) {
	res, latIdx, lngIdx, err := g.parse(cellID)
	if err != nil {
		return domain.LatLng{}, err
	}
	span := spanFor(res)
	return domain.LatLng{
		Lat: (float64(latIdx) + 0.5) * span,
		Lng: (float64(lngIdx) + 0.5) * span,
	}, nil
}

func (g *fakeGrid) CellToBoundary(cellID string) ([]domain.LatLng, error) {
	center, err := g.CellToCenter(cellID)
	if err != nil {
		return nil, err
	}
	res, _, _, _ := g.parse(cellID)
	r := spanFor(res) / 2
	boundary := make([]domain.LatLng, 0, 6)
	for i := 0; i < 6; i++ {
		angle := float64(i) * math.Pi / 3
		boundary = append(boundary, domain.LatLng{
			Lat: center.Lat + r*math.Sin(angle),
			Lng: center.Lng + r*math.Cos(angle),
		})
	}
	return boundary, nil
}

func (g *fakeGrid) CellToParent(cellID string, resolution int) (string, error) {
	res, _, _, err := g.parse(cellID)
	if err != nil {
		return "", err
	}
	if resolution >= res {
		return "", fmt.Errorf("resolution %d is not coarser than %d", resolution, res)
	}
	center, err := g.CellToCenter(cellID)
	if err != nil {
		return "", err
	}
	return g.PointToCell(center.Lat, center.Lng, resolution)
}

func (g *fakeGrid) PolygonToCells(loop []domain.LatLng, resolution int) ([]string, error) {
	g.mu.Lock()
	g.polyCalls++
	err := g.polyErr
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	for _, p := range loop {
		minLat, maxLat = math.Min(minLat, p.Lat), math.Max(maxLat, p.Lat)
		minLng, maxLng = math.Min(minLng, p.Lng), math.Max(maxLng, p.Lng)
	}

	span := spanFor(resolution)
	var cells []string
	for la := int(math.Floor(minLat / span)); la <= int(math.Floor(maxLat/span)); la++ {
		for lo := int(math.Floor(minLng / span)); lo <= int(math.Floor(maxLng/span)); lo++ {
			cells = append(cells, fmt.Sprintf("r%d:%d:%d", resolution, la, lo))
		}
	}
	return cells, nil
}

type fakePlayers struct {
	mu      sync.Mutex
	players map[int64]domain.Player
}

func newFakePlayers() *fakePlayers {
	return &fakePlayers{players: make(map[int64]domain.Player)}
}

func (f *fakePlayers) Get(ctx context.Context, id int64) (*domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (f *fakePlayers) GetByLogin(ctx context.Context, login string) (*domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.Login == login {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakePlayers) Upsert(ctx context.Context, p *domain.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[p.ID] = *p
	return nil
}

func (f *fakePlayers) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.players[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.players, id)
	return nil
}

func (f *fakePlayers) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players), nil
}

type fakeObservations struct {
	mu  sync.Mutex
	obs map[int64]domain.Observation
}

func newFakeObservations() *fakeObservations {
	return &fakeObservations{obs: make(map[int64]domain.Observation)}
}

func (f *fakeObservations) Exists(ctx context.Context, externalID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.obs[externalID]
	return ok, nil
}

func (f *fakeObservations) Insert(ctx context.Context, o *domain.Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.obs[o.ExternalID]; ok {
		return domain.ErrDuplicateObservation
	}
	f.obs[o.ExternalID] = *o
	return nil
}

func (f *fakeObservations) ListByPlayer(ctx context.Context, playerID int64) ([]domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Observation
	for _, o := range f.obs {
		if o.PlayerID == playerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

func (f *fakeObservations) ListRecentByCell(ctx context.Context, cellID string, limit int) ([]domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Observation
	for _, o := range f.obs {
		if o.CellID == cellID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeObservations) ListTopInBuckets(ctx context.Context, buckets []domain.Bucket, limit int) ([]domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Observation
	for _, o := range f.obs {
		if inBuckets(buckets, o.Latitude, o.Longitude) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeObservations) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.obs), nil
}

func (f *fakeObservations) CountDistinctSpecies(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	species := make(map[int64]struct{})
	for _, o := range f.obs {
		if o.TaxonID != 0 {
			species[o.TaxonID] = struct{}{}
		}
	}
	return len(species), nil
}

func inBuckets(buckets []domain.Bucket, lat, lng float64) bool {
	if buckets == nil {
		return true
	}
	b := domain.BucketFor(lat, lng)
	for _, want := range buckets {
		if b == want {
			return true
		}
	}
	return false
}

type fakeCells struct {
	mu    sync.Mutex
	cells map[string]domain.Cell
}

func newFakeCells() *fakeCells {
	return &fakeCells{cells: make(map[string]domain.Cell)}
}

func (f *fakeCells) Get(ctx context.Context, id string) (*domain.Cell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cells[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCells) GetOrCreate(ctx context.Context, c *domain.Cell) (*domain.Cell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.cells[c.ID]; ok {
		return &existing, nil
	}
	f.cells[c.ID] = *c
	cp := *c
	return &cp, nil
}

func (f *fakeCells) Update(ctx context.Context, c *domain.Cell) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cells[c.ID]; !ok {
		return domain.ErrNotFound
	}
	f.cells[c.ID] = *c
	return nil
}

func (f *fakeCells) ListByParent(ctx context.Context, parentID string, childTier domain.Tier) ([]domain.Cell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Cell
	for _, c := range f.cells {
		if c.Tier != childTier {
			continue
		}
		parent := c.ParentMedium
		if childTier == domain.TierMedium {
			parent = c.ParentCoarse
		}
		if parent == parentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCells) ListByIDs(ctx context.Context, ids []string) ([]domain.Cell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Cell
	for _, id := range ids {
		if c, ok := f.cells[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCells) ListTopInBuckets(ctx context.Context, tier domain.Tier, buckets []domain.Bucket, limit int) ([]domain.Cell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Cell
	for _, c := range f.cells {
		if c.Tier == tier && inBuckets(buckets, c.CenterLat, c.CenterLng) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ObservationCount != out[j].ObservationCount {
			return out[i].ObservationCount > out[j].ObservationCount
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCells) CountOwned(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.cells {
		if c.Tier == domain.TierFine && c.OwnerID != 0 {
			n++
		}
	}
	return n, nil
}

func (f *fakeCells) CountOwnedBy(ctx context.Context, playerID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.cells {
		if c.Tier == domain.TierFine && c.OwnerID == playerID {
			n++
		}
	}
	return n, nil
}

// fakeScores stamps UpdatedAt from a monotonic tick so "first to reach the
// score" ordering is reproducible.
type fakeScores struct {
	mu      sync.Mutex
	entries map[string]map[int64]*domain.ScoreEntry
	tick    time.Time
	logins  map[int64]string
}

func newFakeScores() *fakeScores {
	return &fakeScores{
		entries: make(map[string]map[int64]*domain.ScoreEntry),
		tick:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		logins:  make(map[int64]string),
	}
}

func (f *fakeScores) AddPoints(ctx context.Context, cellID string, playerID int64, points, observations int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick = f.tick.Add(time.Second)
	byPlayer, ok := f.entries[cellID]
	if !ok {
		byPlayer = make(map[int64]*domain.ScoreEntry)
		f.entries[cellID] = byPlayer
	}
	e, ok := byPlayer[playerID]
	if !ok {
		e = &domain.ScoreEntry{CellID: cellID, PlayerID: playerID, CreatedAt: f.tick}
		byPlayer[playerID] = e
	}
	e.Points += points
	e.ObservationCount += observations
	e.UpdatedAt = f.tick
	return nil
}

func (f *fakeScores) ListByCell(ctx context.Context, cellID string) ([]domain.ScoreEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScoreEntry
	for _, e := range f.entries[cellID] {
		cp := *e
		cp.PlayerLogin = f.logins[e.PlayerID]
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return domain.Outranks(out[i], out[j]) })
	return out, nil
}

// fakeIngest mirrors the transactional apply: on an injected failure nothing
// is committed, matching the all-or-nothing store contract.
type fakeIngest struct {
	observations *fakeObservations
	cells        *fakeCells
	scores       *fakeScores

	mu     sync.Mutex
	failOn map[int64]error
}

func (f *fakeIngest) failNext(externalID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == nil {
		f.failOn = make(map[int64]error)
	}
	f.failOn[externalID] = err
}

func (f *fakeIngest) ApplyScored(ctx context.Context, o *domain.Observation) error {
	f.mu.Lock()
	if err, ok := f.failOn[o.ExternalID]; ok {
		delete(f.failOn, o.ExternalID)
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	cell, err := f.cells.Get(ctx, o.CellID)
	if err != nil {
		return err
	}

	factors := scoring.Score(o.IconicTaxon, cell.Biome, cell.ObservationCount, o.ResearchGrade)
	o.BasePoints = factors.Base
	o.TaxaMultiplier = factors.TaxaMultiplier
	o.ScarcityMultiplier = factors.ScarcityMultiplier
	o.QualityBonus = factors.QualityBonus
	o.TotalPoints = factors.TotalPoints

	if err := f.observations.Insert(ctx, o); err != nil {
		return err
	}
	if err := f.scores.AddPoints(ctx, o.CellID, o.PlayerID, o.TotalPoints, 1); err != nil {
		return err
	}
	entries, err := f.scores.ListByCell(ctx, o.CellID)
	if err != nil {
		return err
	}

	cell.ObservationCount++
	cell.PlayerCount = len(entries)
	if owner, ok := domain.ChooseOwner(entries); ok {
		cell.OwnerID = owner.PlayerID
		cell.OwnerLogin = owner.PlayerLogin
		cell.OwnerDisplayName = owner.PlayerDisplayName
		cell.OwnerPoints = owner.Points
	}
	return f.cells.Update(ctx, cell)
}

type fakeSyncRuns struct {
	mu   sync.Mutex
	runs []domain.SyncRun
}

func (f *fakeSyncRuns) Insert(ctx context.Context, run *domain.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

// fakeSource serves a canned user and fixed pages of observation records.
type fakeSource struct {
	user  *api.User
	pages [][]api.ObservationRecord
}

func (f *fakeSource) GetUser(ctx context.Context, login string) (*api.User, error) {
	if f.user == nil || f.user.Login != login {
		return nil, domain.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeSource) GetObservations(ctx context.Context, login string, page int) (*api.ObservationPage, error) {
	if page > len(f.pages) {
		return &api.ObservationPage{}, nil
	}
	return &api.ObservationPage{
		Records: f.pages[page-1],
		HasMore: page < len(f.pages),
	}, nil
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) Invalidate() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeInvalidator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

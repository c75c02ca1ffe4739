// Package server is the thin JSON-over-HTTP surface in front of the
// territory engine. Handlers parse, delegate, and encode; all game logic
// lives in the services.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/domain"
	"github.com/mmulqu/biome/internal/service"
)

type BiomeServer struct {
	syncSvc     *service.SyncService
	cellSvc     *service.CellQueryService
	viewportSvc *service.ViewportService
	playerSvc   *service.PlayerService
	logger      zerolog.Logger
}

func NewBiomeServer(
	syncSvc *service.SyncService,
	cellSvc *service.CellQueryService,
	viewportSvc *service.ViewportService,
	playerSvc *service.PlayerService,
	logger zerolog.Logger,
) *BiomeServer {
	return &BiomeServer{
		syncSvc:     syncSvc,
		cellSvc:     cellSvc,
		viewportSvc: viewportSvc,
		playerSvc:   playerSvc,
		logger:      logger,
	}
}

// Register mounts all routes on the mux.
func (s *BiomeServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sync/{login}", s.handleSyncPlayer)
	mux.HandleFunc("GET /api/v1/cells/{id}", s.handleCellDetail)
	mux.HandleFunc("GET /api/v1/viewport/cells", s.handleViewportCells)
	mux.HandleFunc("GET /api/v1/viewport/observations", s.handleViewportObservations)
	mux.HandleFunc("GET /api/v1/stats", s.handleGlobalStats)
	mux.HandleFunc("GET /api/v1/players/{login}", s.handleGetPlayer)
	mux.HandleFunc("DELETE /api/v1/players/{id}", s.handleRemovePlayer)
}

func (s *BiomeServer) handleSyncPlayer(w http.ResponseWriter, r *http.Request) {
	login := r.PathValue("login")
	if login == "" {
		writeError(w, http.StatusBadRequest, "login is required")
		return
	}

	result, err := s.syncSvc.SyncPlayer(r.Context(), login)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *BiomeServer) handleCellDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.cellSvc.GetCellDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *BiomeServer) handleViewportCells(w http.ResponseWriter, r *http.Request) {
	box, zoom, limit, err := parseViewportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cells, err := s.viewportSvc.GetCellsInViewport(r.Context(), box, zoom, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cells": cells})
}

func (s *BiomeServer) handleViewportObservations(w http.ResponseWriter, r *http.Request) {
	box, zoom, limit, err := parseViewportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	observations, err := s.viewportSvc.GetObservationsInViewport(r.Context(), box, zoom, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"observations": observations})
}

func (s *BiomeServer) handleGlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cellSvc.GetGlobalStats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *BiomeServer) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := s.playerSvc.GetPlayer(r.Context(), r.PathValue("login"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (s *BiomeServer) handleRemovePlayer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "player id must be numeric")
		return
	}

	if err := s.playerSvc.RemovePlayer(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseViewportQuery(r *http.Request) (domain.BoundingBox, int, int, error) {
	q := r.URL.Query()

	parse := func(name string) (float64, error) {
		v, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			return 0, errors.New(name + " must be a number")
		}
		return v, nil
	}

	var box domain.BoundingBox
	var err error
	if box.MinLat, err = parse("min_lat"); err != nil {
		return box, 0, 0, err
	}
	if box.MinLng, err = parse("min_lng"); err != nil {
		return box, 0, 0, err
	}
	if box.MaxLat, err = parse("max_lat"); err != nil {
		return box, 0, 0, err
	}
	if box.MaxLng, err = parse("max_lng"); err != nil {
		return box, 0, 0, err
	}

	zoom, err := strconv.Atoi(q.Get("zoom"))
	if err != nil {
		return box, 0, 0, errors.New("zoom must be an integer")
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return box, 0, 0, errors.New("limit must be an integer")
		}
	}

	return box, zoom, limit, nil
}

func (s *BiomeServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidCellID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream source unavailable, try again")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

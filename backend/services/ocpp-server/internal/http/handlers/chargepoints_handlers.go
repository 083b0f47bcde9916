package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/models"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/redisstore"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/repository"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ws"
)

const (
	defaultFramesLimit = 50
	maxFramesLimit     = 500
)

// SessionLister lists connected charge points.
type SessionLister interface {
	Snapshot() []ws.SessionInfo
}

// StationReader reads the reported station state.
type StationReader interface {
	Get(stationID string) (models.Station, bool)
	Snapshot() map[string]models.Station
}

// ProfileReader reads the last applied charging profile.
type ProfileReader interface {
	Get(ctx context.Context, chargePointID string) (*models.AppliedProfile, error)
}

// FrameReader reads the OCPP frame audit log.
type FrameReader interface {
	Recent(ctx context.Context, chargePointID string, limit int) ([]repository.Frame, error)
}

// ChargePoint combines the live session and the reported state of one charge point.
type ChargePoint struct {
	ID        string          `json:"id"`
	Connected bool            `json:"connected"`
	Session   *ws.SessionInfo `json:"session,omitempty"`
	Station   *models.Station `json:"station,omitempty"`
}

// ChargePointsHandlers serves charge point views. profiles and frames may be nil.
type ChargePointsHandlers struct {
	sessions SessionLister
	stations StationReader
	profiles ProfileReader
	frames   FrameReader
	logger   *zap.Logger
}

// NewChargePointsHandlers returns handler.
func NewChargePointsHandlers(sessions SessionLister, stations StationReader, profiles ProfileReader, frames FrameReader, logger *zap.Logger) *ChargePointsHandlers {
	return &ChargePointsHandlers{
		sessions: sessions,
		stations: stations,
		profiles: profiles,
		frames:   frames,
		logger:   logger,
	}
}

// List handles GET /api/chargepoints.
func (h *ChargePointsHandlers) List(w http.ResponseWriter, r *http.Request) {
	views := make(map[string]*ChargePoint)
	view := func(id string) *ChargePoint {
		cp, ok := views[id]
		if !ok {
			cp = &ChargePoint{ID: id}
			views[id] = cp
		}
		return cp
	}

	for _, session := range h.sessions.Snapshot() {
		session := session
		cp := view(session.ChargePointID)
		cp.Connected = true
		cp.Session = &session
	}
	for id, station := range h.stations.Snapshot() {
		station := station
		view(id).Station = &station
	}

	out := make([]ChargePoint, 0, len(views))
	for _, cp := range views {
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/chargepoints/{id}.
func (h *ChargePointsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cp := ChargePoint{ID: id}
	for _, session := range h.sessions.Snapshot() {
		if session.ChargePointID == id {
			session := session
			cp.Connected = true
			cp.Session = &session
			break
		}
	}
	if station, ok := h.stations.Get(id); ok {
		cp.Station = &station
	}
	if cp.Session == nil && cp.Station == nil {
		writeError(w, http.StatusNotFound, "charge point not found")
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

// Profile handles GET /api/chargepoints/{id}/profile.
func (h *ChargePointsHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		writeError(w, http.StatusServiceUnavailable, "profile store not configured")
		return
	}
	id := chi.URLParam(r, "id")
	profile, err := h.profiles.Get(r.Context(), id)
	if errors.Is(err, redisstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no profile applied")
		return
	}
	if err != nil {
		h.logger.Error("read applied profile failed", zap.String("charge_point_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "profile store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Frames handles GET /api/chargepoints/{id}/frames?limit=N.
func (h *ChargePointsHandlers) Frames(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		writeError(w, http.StatusServiceUnavailable, "frame log not configured")
		return
	}
	limit := defaultFramesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxFramesLimit)
	}

	id := chi.URLParam(r, "id")
	frames, err := h.frames.Recent(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("read frame log failed", zap.String("charge_point_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "frame log unavailable")
		return
	}
	if frames == nil {
		frames = []repository.Frame{}
	}
	writeJSON(w, http.StatusOK, frames)
}

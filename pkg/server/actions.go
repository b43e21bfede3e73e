package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hometwin/hometwin/pkg/autopilot"
	"github.com/hometwin/hometwin/pkg/log"
	"github.com/hometwin/hometwin/pkg/optimizer"
	"github.com/hometwin/hometwin/pkg/storage"
	"github.com/hometwin/hometwin/pkg/types"
)

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := s.engine.Snapshot()
	if err != nil {
		writeJSONError(w, "twin not seeded", http.StatusConflict)
		return
	}
	prefs, err := s.engine.Preferences()
	if err != nil {
		writeJSONError(w, "twin not seeded", http.StatusConflict)
		return
	}

	actions, err := s.opt.Recommend(ctx, optimizer.Input{
		Prefs:    prefs,
		Scenario: s.engine.Scenario(),
		Snapshot: snap,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, a := range actions {
		if err := s.storage.InsertAction(ctx, s.homeID, a); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to store action",
				slog.String("actionID", a.ID), slog.Any("error", err))
			writeJSONError(w, "failed to store actions", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, actions)
}

func (s *Server) handleApplyAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeJSONError(w, "action id is required", http.StatusBadRequest)
		return
	}

	action, err := s.storage.GetAction(ctx, s.homeID, req.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, "action not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get action",
			slog.String("actionID", req.ID), slog.Any("error", err))
		writeJSONError(w, "failed to get action", http.StatusInternalServerError)
		return
	}
	if !action.AppliedAt.IsZero() {
		writeJSONError(w, "action already applied", http.StatusConflict)
		return
	}

	if err := s.ApplyAction(ctx, action); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	action.Source = types.SourceManual
	action.AppliedAt = time.Now().UTC()
	if err := s.storage.UpdateAction(ctx, s.homeID, action); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to update action",
			slog.String("actionID", action.ID), slog.Any("error", err))
		writeJSONError(w, "failed to update action", http.StatusInternalServerError)
		return
	}

	writeJSON(w, action)
}

// ApplyAction carries an action's maneuver into the twin. Setpoint maneuvers
// move the AC immediately; schedule shifts take effect through the devices'
// own programs and are recorded as applied.
func (s *Server) ApplyAction(ctx context.Context, action types.Action) error {
	m := action.Maneuver
	switch m.Kind {
	case types.ManeuverACPrecool:
		if err := s.engine.SetSetpoint(ctx, m.DeviceID, m.PrecoolToC); err != nil {
			return fmt.Errorf("applying precool: %w", err)
		}
	case types.ManeuverEVShift, types.ManeuverWaterPreheat, types.ManeuverWasherDelay:
		// schedule-only maneuvers
	default:
		return fmt.Errorf("unknown maneuver kind: %s", m.Kind)
	}
	log.Ctx(ctx).InfoContext(ctx, "applied action",
		slog.String("actionID", action.ID),
		slog.String("maneuver", string(m.Kind)),
		slog.String("deviceID", m.DeviceID))
	return nil
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	actions, err := s.storage.GetActionHistory(ctx, s.homeID, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get actions", slog.Any("error", err))
		writeJSONError(w, "failed to get actions", http.StatusInternalServerError)
		return
	}
	if actions == nil {
		actions = []types.Action{}
	}
	writeJSON(w, actions)
}

func (s *Server) handleAutopilot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	enabled, msg := s.pilot.SetEnabled(ctx, req.Enabled)
	status := s.pilot.Status()
	writeJSON(w, struct {
		Enabled bool             `json:"enabled"`
		Message string           `json:"message"`
		Status  autopilot.Status `json:"status"`
	}{Enabled: enabled, Message: msg, Status: status})
}

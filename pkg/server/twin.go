package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hometwin/hometwin/pkg/log"
	"github.com/hometwin/hometwin/pkg/optimizer"
	"github.com/hometwin/hometwin/pkg/twin"
	"github.com/hometwin/hometwin/pkg/types"
)

func (s *Server) handleTwinUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var sample types.Telemetry
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeJSONError(w, "invalid telemetry: "+err.Error(), http.StatusBadRequest)
		return
	}
	if sample.DeviceID == "" {
		writeJSONError(w, "deviceID is required", http.StatusBadRequest)
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	snap, err := s.engine.ApplyTelemetry(ctx, sample)
	if err != nil {
		if errors.Is(err, twin.ErrNotInitialized) {
			writeJSONError(w, "twin not seeded", http.StatusConflict)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.storage.InsertTelemetry(ctx, s.homeID, sample); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to store telemetry",
			slog.String("deviceID", sample.DeviceID), slog.Any("error", err))
		// the twin already stepped, keep serving
	}

	s.live.BroadcastSnapshot(ctx, snap)
	s.runAutopilot(ctx, snap)

	writeJSON(w, snap)
}

func (s *Server) handleTwinState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot()
	if err != nil {
		writeJSONError(w, "twin not seeded", http.StatusConflict)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleTelemetryHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	// Empty device means all devices.
	deviceID := r.URL.Query().Get("device")
	samples, err := s.storage.GetTelemetryHistory(ctx, s.homeID, deviceID, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get telemetry", slog.Any("error", err))
		writeJSONError(w, "failed to get telemetry", http.StatusInternalServerError)
		return
	}
	if samples == nil {
		samples = []types.Telemetry{}
	}
	writeJSON(w, samples)
}

// runAutopilot evaluates the autopilot after a twin step and records any
// action it applied.
func (s *Server) runAutopilot(ctx context.Context, snap types.TwinSnapshot) {
	if s.pilot == nil {
		return
	}
	prefs, err := s.engine.Preferences()
	if err != nil {
		return
	}
	applied, err := s.pilot.OnStep(ctx, snap, optimizer.Input{
		Prefs:    prefs,
		Scenario: s.engine.Scenario(),
		Snapshot: snap,
		Now:      snap.Timestamp,
	})
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "autopilot step failed", slog.Any("error", err))
		return
	}
	if applied == nil {
		return
	}
	if err := s.storage.InsertAction(ctx, s.homeID, *applied); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to store autopilot action",
			slog.String("actionID", applied.ID), slog.Any("error", err))
	}
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hometwin/hometwin/pkg/log"
	"github.com/hometwin/hometwin/pkg/storage"
	"github.com/hometwin/hometwin/pkg/types"
)

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name := r.URL.Query().Get("scenario")
	if name == "" {
		name = "normal"
	}

	sc, err := s.lookupScenario(ctx, name)
	if err != nil {
		writeJSONError(w, "unknown scenario: "+name, http.StatusBadRequest)
		return
	}

	prefs, err := s.engine.Preferences()
	if err != nil {
		prefs = types.DefaultPreferences(s.homeID)
	}

	res := s.opt.Simulate(sc, prefs, time.Now().UTC())
	writeJSON(w, res)
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	compliance := 100.0
	if snap, err := s.engine.Snapshot(); err == nil {
		compliance = snap.Comfort.CompliancePct
	}
	sc := s.engine.Scenario()

	prefs, err := s.engine.Preferences()
	if err != nil {
		prefs = types.DefaultPreferences(s.homeID)
	}

	res := s.opt.Simulate(sc, prefs, time.Now().UTC())
	writeJSON(w, s.opt.KPIs(res, compliance))
}

// lookupScenario resolves a scenario by name, preferring a stored override
// and falling back to the builtins.
func (s *Server) lookupScenario(ctx context.Context, name string) (*types.Scenario, error) {
	stored, err := s.storage.GetScenario(ctx, s.homeID, name)
	if err == nil {
		return &stored, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.Ctx(ctx).WarnContext(ctx, "failed to get scenario",
			slog.String("name", name), slog.Any("error", err))
	}
	sc, ok := types.BuiltinScenario(name)
	if !ok {
		return nil, fmt.Errorf("scenario %q not found", name)
	}
	return &sc, nil
}

package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hometwin/hometwin/pkg/forecast"
	"github.com/hometwin/hometwin/pkg/log"
)

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	horizon := forecast.DefaultHorizonHours
	if h := r.URL.Query().Get("horizon"); h != "" {
		v, err := strconv.Atoi(h)
		if err != nil || v < 1 || v > 48 {
			writeJSONError(w, "horizon must be an integer between 1 and 48", http.StatusBadRequest)
			return
		}
		horizon = v
	}

	now := time.Now().UTC()

	// Recent telemetry nudges the curve toward what the home actually drew.
	var historyAvg float64
	samples, err := s.storage.GetTelemetryHistory(ctx, s.homeID, "", now.Add(-6*time.Hour), now)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get telemetry history", slog.Any("error", err))
	} else {
		powers := make([]float64, 0, len(samples))
		for _, sample := range samples {
			powers = append(powers, sample.PowerKW)
		}
		historyAvg = forecast.HistoryAverage(powers)
	}

	points := forecast.Next24h(s.engine.Scenario(), now, historyAvg, horizon)
	writeJSON(w, points)
}

package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hometwin/hometwin/pkg/types"
)

func TestForecastDefaultHorizon(t *testing.T) {
	_, h := testServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/forecast", nil)
	require.Equal(t, http.StatusOK, w.Code)

	points := decodeBody[[]types.ForecastPoint](t, w)
	require.Len(t, points, 24)
	for _, p := range points {
		assert.Greater(t, p.PredictedKW, 0.0)
		assert.LessOrEqual(t, p.LowerKW, p.PredictedKW)
		assert.GreaterOrEqual(t, p.UpperKW, p.PredictedKW)
	}
}

func TestForecastCustomHorizon(t *testing.T) {
	_, h := testServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/forecast?horizon=6", nil)
	require.Equal(t, http.StatusOK, w.Code)

	points := decodeBody[[]types.ForecastPoint](t, w)
	assert.Len(t, points, 6)
}

func TestForecastRejectsBadHorizon(t *testing.T) {
	_, h := testServer(t)

	for _, horizon := range []string{"0", "49", "-3", "abc"} {
		w := doJSON(t, h, http.MethodGet, "/api/forecast?horizon="+horizon, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "horizon=%s", horizon)
	}
}

func TestSimulateDefaultScenario(t *testing.T) {
	_, h := testServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/simulate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeBody[types.SimulationResult](t, w)
	require.Len(t, res.TS, 24)
	require.Len(t, res.BaselineKW, 24)
	require.Len(t, res.OptimizedKW, 24)
	require.Len(t, res.DeltaKW, 24)
}

func TestSimulateUnknownScenario(t *testing.T) {
	_, h := testServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/simulate?scenario=apocalypse", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKPIsEndpoint(t *testing.T) {
	_, h := testServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/kpis", nil)
	require.Equal(t, http.StatusOK, w.Code)

	kpis := decodeBody[types.KPIs](t, w)
	assert.GreaterOrEqual(t, kpis.KWHSaved, 0.0)
	assert.GreaterOrEqual(t, kpis.ComfortCompliancePct, 0.0)
	assert.LessOrEqual(t, kpis.ComfortCompliancePct, 100.0)
}

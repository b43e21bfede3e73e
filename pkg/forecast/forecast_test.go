package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hometwin/hometwin/pkg/types"
)

func TestNext24hDeterministic(t *testing.T) {
	sc, ok := types.BuiltinScenario("normal")
	require.True(t, ok)
	now := time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)

	a := Next24h(&sc, now, 4.2, 24)
	b := Next24h(&sc, now, 4.2, 24)
	assert.Equal(t, a, b)
}

func TestNext24hShape(t *testing.T) {
	sc, ok := types.BuiltinScenario("normal")
	require.True(t, ok)
	now := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)

	points := Next24h(&sc, now, 0, 24)
	require.Len(t, points, 24)

	for i, p := range points {
		assert.Greater(t, p.PredictedKW, 0.0, "hour %d", i)
		assert.LessOrEqual(t, p.LowerKW, p.PredictedKW, "hour %d", i)
		assert.GreaterOrEqual(t, p.UpperKW, p.PredictedKW, "hour %d", i)
		if i > 0 {
			assert.Equal(t, time.Hour, p.TS.Sub(points[i-1].TS))
		}
	}
}

func TestNext24hAfternoonPeak(t *testing.T) {
	sc, ok := types.BuiltinScenario("peak")
	require.True(t, ok)
	now := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)

	points := Next24h(&sc, now, 0, 24)
	require.Len(t, points, 24)

	var night, afternoon float64
	for _, p := range points {
		switch p.TS.Hour() {
		case 3:
			night = p.PredictedKW
		case 15:
			afternoon = p.PredictedKW
		}
	}
	assert.Greater(t, afternoon, night, "afternoon AC load should exceed overnight load")
}

func TestNext24hHistoryBlending(t *testing.T) {
	sc, ok := types.BuiltinScenario("normal")
	require.True(t, ok)
	now := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)

	without := Next24h(&sc, now, 0, 1)
	heavy := Next24h(&sc, now, 50, 1)
	require.Len(t, without, 1)
	require.Len(t, heavy, 1)
	assert.Greater(t, heavy[0].PredictedKW, without[0].PredictedKW)
}

func TestNext24hNilScenario(t *testing.T) {
	now := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)
	points := Next24h(nil, now, 0, 24)
	require.Len(t, points, 24)
	for _, p := range points {
		assert.Greater(t, p.PredictedKW, 0.0)
	}
}

func TestHistoryAverage(t *testing.T) {
	assert.Zero(t, HistoryAverage(nil))
	assert.Zero(t, HistoryAverage([]float64{0, 0}))
	assert.InDelta(t, 2.0, HistoryAverage([]float64{2, 2, 2, 2}), 0.001)

	// Recent samples dominate: a jump at the tail pulls the average up past
	// the plain mean of the last 12.
	v := []float64{1, 1, 1, 1, 1, 1, 1, 1, 5, 5, 5, 5}
	got := HistoryAverage(v)
	assert.InDelta(t, 0.6*5+0.4*(8*1+4*5)/12.0, got, 0.001)
}

func TestTimeOfDayFactor(t *testing.T) {
	assert.Equal(t, 0.35, timeOfDayFactor(3))
	assert.Equal(t, 1.0, timeOfDayFactor(16))
	assert.Equal(t, 0.80, timeOfDayFactor(19.5))
	assert.Equal(t, 0.40, timeOfDayFactor(23.5))
}

func TestTempFactorClamped(t *testing.T) {
	assert.Equal(t, 1.0, tempFactor(35))
	assert.Equal(t, 0.5, tempFactor(5))
	assert.Equal(t, 1.5, tempFactor(90))
}

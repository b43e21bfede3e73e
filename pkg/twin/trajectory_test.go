package twin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hometwin/hometwin/pkg/types"
)

func TestSimulateRoomConvergesToSetpoint(t *testing.T) {
	sc, ok := types.BuiltinScenario("normal")
	require.True(t, ok)
	start := time.Date(2026, 7, 14, 11, 0, 0, 0, time.UTC)

	tr := SimulateRoom("Living Room", 26, &sc, start, 2*time.Hour, 24)
	require.Len(t, tr.TempsC, 121)

	final := tr.TempsC[len(tr.TempsC)-1]
	assert.InDelta(t, 24, final, 0.3)
	assert.GreaterOrEqual(t, tr.Min(), 23.5, "controller must not undershoot the setpoint")
	assert.Greater(t, tr.MaxCoolingKW, 0.0)
}

func TestSimulateRoomCapacityLimit(t *testing.T) {
	sc, ok := types.BuiltinScenario("heatwave")
	require.True(t, ok)
	start := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)

	// A garage has a leaky envelope; pinning it at 18 in a heatwave demands
	// more than the rated capacity, so the cooling saturates.
	tr := SimulateRoom("Garage", 35, &sc, start, time.Hour, 18)
	assert.Equal(t, acRatedCoolingKW, tr.MaxCoolingKW)
}

func TestSimulateRoomDeterministic(t *testing.T) {
	sc, ok := types.BuiltinScenario("peak")
	require.True(t, ok)
	start := time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)

	a := SimulateRoom("Bedroom", 27, &sc, start, time.Hour, 23)
	b := SimulateRoom("Bedroom", 27, &sc, start, time.Hour, 23)
	assert.Equal(t, a, b)
}

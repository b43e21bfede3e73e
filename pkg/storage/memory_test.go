package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hometwin/hometwin/pkg/types"
)

func TestMemoryRegistry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.GetHome(ctx, "villa-a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.CreateHome(ctx, types.Home{ID: "villa-a", Name: "Villa A"}))
	home, err := m.GetHome(ctx, "villa-a")
	require.NoError(t, err)
	assert.Equal(t, "Villa A", home.Name)

	rooms := []types.Room{
		{ID: "living-room", HomeID: "villa-a", Name: "Living Room"},
		{ID: "garage", HomeID: "villa-a", Name: "Garage"},
	}
	require.NoError(t, m.SetRooms(ctx, "villa-a", rooms))
	got, err := m.ListRooms(ctx, "villa-a")
	require.NoError(t, err)
	assert.Equal(t, rooms, got)

	devices := []types.Device{
		{ID: "ac-living", RoomID: "living-room", Kind: types.DeviceAC},
	}
	require.NoError(t, m.SetDevices(ctx, "villa-a", devices))
	gotDevices, err := m.ListDevices(ctx, "villa-a")
	require.NoError(t, err)
	assert.Equal(t, devices, gotDevices)
}

func TestMemoryPreferences(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, _, err := m.GetPreferences(ctx, "villa-a")
	assert.ErrorIs(t, err, ErrNotFound)

	p := types.DefaultPreferences("villa-a")
	require.NoError(t, m.SetPreferences(ctx, "villa-a", p, types.CurrentPreferencesVersion))
	got, version, err := m.GetPreferences(ctx, "villa-a")
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, types.CurrentPreferencesVersion, version)
}

func TestMemoryActions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)

	a1 := types.Action{ID: "a-1", Timestamp: base, Title: "first"}
	a2 := types.Action{ID: "a-2", Timestamp: base.Add(time.Hour), Title: "second"}
	require.NoError(t, m.InsertAction(ctx, "villa-a", a2))
	require.NoError(t, m.InsertAction(ctx, "villa-a", a1))

	t.Run("get by id", func(t *testing.T) {
		got, err := m.GetAction(ctx, "villa-a", "a-1")
		require.NoError(t, err)
		assert.Equal(t, "first", got.Title)
		_, err = m.GetAction(ctx, "villa-a", "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("history sorted and bounded", func(t *testing.T) {
		got, err := m.GetActionHistory(ctx, "villa-a", base, base.Add(30*time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "a-1", got[0].ID)

		got, err = m.GetActionHistory(ctx, "villa-a", base, base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a-1", got[0].ID)
		assert.Equal(t, "a-2", got[1].ID)
	})

	t.Run("update", func(t *testing.T) {
		a1.Source = types.SourceManual
		a1.AppliedAt = base.Add(5 * time.Minute)
		require.NoError(t, m.UpdateAction(ctx, "villa-a", a1))
		got, err := m.GetAction(ctx, "villa-a", "a-1")
		require.NoError(t, err)
		assert.Equal(t, types.SourceManual, got.Source)

		missing := types.Action{ID: "nope"}
		assert.ErrorIs(t, m.UpdateAction(ctx, "villa-a", missing), ErrNotFound)
	})
}

func TestMemoryTelemetry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, m.InsertTelemetry(ctx, "villa-a", types.Telemetry{
			DeviceID:  "ac-living",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			PowerKW:   1.5,
		}))
	}
	require.NoError(t, m.InsertTelemetry(ctx, "villa-a", types.Telemetry{
		DeviceID:  "ev-charger",
		Timestamp: base,
		PowerKW:   7.4,
	}))

	all, err := m.GetTelemetryHistory(ctx, "villa-a", "", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 6)

	ac, err := m.GetTelemetryHistory(ctx, "villa-a", "ac-living", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, ac, 5)
}

func TestMemoryScenarios(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.GetScenario(ctx, "villa-a", "normal")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, name := range []string{"normal", "peak", "heatwave"} {
		sc, ok := types.BuiltinScenario(name)
		require.True(t, ok)
		require.NoError(t, m.UpsertScenario(ctx, "villa-a", sc))
	}

	names, err := m.ListScenarios(ctx, "villa-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"heatwave", "normal", "peak"}, names)

	sc, err := m.GetScenario(ctx, "villa-a", "peak")
	require.NoError(t, err)
	assert.Equal(t, "peak", sc.Name)
	assert.Len(t, sc.OutsideTempC, types.ScenarioSamples)
}

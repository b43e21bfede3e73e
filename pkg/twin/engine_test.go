package twin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hometwin/hometwin/pkg/types"
)

func seededEngine(t *testing.T, now time.Time) *Engine {
	t.Helper()
	e := New(DefaultConfig())
	home := types.Home{ID: "villa-a", Name: "Villa A"}
	rooms := []types.Room{
		{ID: "living-room", HomeID: "villa-a", Name: "Living Room"},
		{ID: "bedroom", HomeID: "villa-a", Name: "Bedroom"},
		{ID: "garage", HomeID: "villa-a", Name: "Garage"},
	}
	devices := []types.Device{
		{ID: "ac-living", RoomID: "living-room", Kind: types.DeviceAC, Name: "Living AC", Status: "on", SetpointC: 24},
		{ID: "ev-charger", RoomID: "garage", Kind: types.DeviceEVCharger, Name: "EV Charger", Status: "idle"},
		{ID: "water-heater", RoomID: "garage", Kind: types.DeviceWaterHeater, Name: "Water Heater", Status: "standby"},
		{ID: "washer-dryer", RoomID: "garage", Kind: types.DeviceWasherDryer, Name: "Washer", Status: "idle"},
	}
	sc, ok := types.BuiltinScenario("normal")
	require.True(t, ok)
	require.NoError(t, e.Seed(context.Background(), home, rooms, devices, types.DefaultPreferences("villa-a"), &sc, now))
	return e
}

func TestEngineNotInitialized(t *testing.T) {
	e := New(DefaultConfig())
	_, err := e.Snapshot()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = e.Tick(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = e.ApplyTelemetry(context.Background(), types.Telemetry{DeviceID: "ac-living"})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestEngineSeedSnapshot(t *testing.T) {
	now := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)
	e := seededEngine(t, now)

	snap, err := e.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "Villa A", snap.HomeName)
	assert.Len(t, snap.Rooms, 3)
	assert.Len(t, snap.Devices, 4)
	assert.Equal(t, uint64(1), snap.StepCount)
	assert.Greater(t, snap.Environment.OutsideTempC, 0.0)
}

func TestEngineStepMonotonic(t *testing.T) {
	now := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)
	e := seededEngine(t, now)
	ctx := context.Background()

	var lastStep uint64
	var lastKWH, lastCost, lastCO2, lastPeak float64
	for i := 0; i < 120; i++ {
		now = now.Add(30 * time.Second)
		snap, err := e.Tick(ctx, now)
		require.NoError(t, err)
		assert.Greater(t, snap.StepCount, lastStep)
		assert.GreaterOrEqual(t, snap.Energy.TotalEnergyKWH, lastKWH)
		assert.GreaterOrEqual(t, snap.Energy.Cost, lastCost)
		assert.GreaterOrEqual(t, snap.Energy.CO2Kg, lastCO2)
		assert.GreaterOrEqual(t, snap.Energy.PeakPowerKW, lastPeak)
		lastStep = snap.StepCount
		lastKWH = snap.Energy.TotalEnergyKWH
		lastCost = snap.Energy.Cost
		lastCO2 = snap.Energy.CO2Kg
		lastPeak = snap.Energy.PeakPowerKW
	}
}

func TestEngineTelemetryOutsideTemp(t *testing.T) {
	now := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)
	e := seededEngine(t, now)
	ctx := context.Background()

	reported := 45.0
	snap, err := e.ApplyTelemetry(ctx, types.Telemetry{
		DeviceID:  "ac-living",
		Timestamp: now.Add(time.Minute),
		PowerKW:   1.2,
		TempC:     &reported,
	})
	require.NoError(t, err)
	assert.Equal(t, 45.0, snap.Environment.OutsideTempC)

	t.Run("carried through later steps", func(t *testing.T) {
		snap, err := e.Tick(ctx, now.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 45.0, snap.Environment.OutsideTempC)
	})

	t.Run("non-AC readings ignored", func(t *testing.T) {
		tank := 55.0
		snap, err := e.ApplyTelemetry(ctx, types.Telemetry{
			DeviceID:  "water-heater",
			Timestamp: now.Add(3 * time.Minute),
			PowerKW:   2.0,
			TempC:     &tank,
		})
		require.NoError(t, err)
		assert.Equal(t, 45.0, snap.Environment.OutsideTempC)
	})

	t.Run("next AC reading replaces", func(t *testing.T) {
		cooler := 41.0
		snap, err := e.ApplyTelemetry(ctx, types.Telemetry{
			DeviceID:  "ac-living",
			Timestamp: now.Add(4 * time.Minute),
			PowerKW:   1.2,
			TempC:     &cooler,
		})
		require.NoError(t, err)
		assert.Equal(t, 41.0, snap.Environment.OutsideTempC)
	})
}

func TestEngineTelemetryDedup(t *testing.T) {
	now := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)
	e := seededEngine(t, now)
	ctx := context.Background()

	ts := now.Add(time.Minute)
	sample := types.Telemetry{DeviceID: "ac-living", Timestamp: ts, PowerKW: 1.2, Status: "on"}
	snap1, err := e.ApplyTelemetry(ctx, sample)
	require.NoError(t, err)

	t.Run("same timestamp dropped", func(t *testing.T) {
		snap2, err := e.ApplyTelemetry(ctx, sample)
		require.NoError(t, err)
		assert.Equal(t, snap1.StepCount, snap2.StepCount)
	})

	t.Run("older timestamp dropped", func(t *testing.T) {
		old := sample
		old.Timestamp = ts.Add(-time.Second)
		snap2, err := e.ApplyTelemetry(ctx, old)
		require.NoError(t, err)
		assert.Equal(t, snap1.StepCount, snap2.StepCount)
	})

	t.Run("newer timestamp accepted", func(t *testing.T) {
		next := sample
		next.Timestamp = ts.Add(30 * time.Second)
		snap2, err := e.ApplyTelemetry(ctx, next)
		require.NoError(t, err)
		assert.Greater(t, snap2.StepCount, snap1.StepCount)
	})

	t.Run("per device tracking", func(t *testing.T) {
		other := types.Telemetry{DeviceID: "water-heater", Timestamp: ts, PowerKW: 2.0, Status: "heating"}
		before, err := e.Snapshot()
		require.NoError(t, err)
		snap2, err := e.ApplyTelemetry(ctx, other)
		require.NoError(t, err)
		assert.Greater(t, snap2.StepCount, before.StepCount)
	})
}

func TestEngineRejectsBadTelemetry(t *testing.T) {
	now := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)
	e := seededEngine(t, now)
	ctx := context.Background()

	_, err := e.ApplyTelemetry(ctx, types.Telemetry{DeviceID: "nope", Timestamp: now.Add(time.Second)})
	assert.ErrorContains(t, err, "unknown device")

	_, err = e.ApplyTelemetry(ctx, types.Telemetry{DeviceID: "ac-living", Timestamp: now.Add(time.Second), Status: "charging"})
	assert.ErrorContains(t, err, "not valid")
}

func TestEngineStepCapsLargeGaps(t *testing.T) {
	now := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)
	e := seededEngine(t, now)
	ctx := context.Background()

	before, err := e.Snapshot()
	require.NoError(t, err)

	// An hour-long gap must integrate at most 60 seconds of energy.
	snap, err := e.Tick(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	maxKWH := snap.Energy.CurrentPowerKW * maxStepSeconds / 3600.0
	assert.LessOrEqual(t, snap.Energy.TotalEnergyKWH-before.Energy.TotalEnergyKWH, maxKWH+0.01)
}

func TestEnginePeakResetsDaily(t *testing.T) {
	now := time.Date(2026, 7, 14, 23, 59, 0, 0, time.UTC)
	e := seededEngine(t, now)
	ctx := context.Background()

	// Force a high peak by running the EV charger.
	_, err := e.ApplyTelemetry(ctx, types.Telemetry{
		DeviceID: "ev-charger", Timestamp: now.Add(10 * time.Second), Status: "charging",
	})
	require.NoError(t, err)
	snap, err := e.Snapshot()
	require.NoError(t, err)
	peak := snap.Energy.PeakPowerKW
	require.Greater(t, peak, evMaxChargeRateKW-1)

	// Stop charging and cross midnight: the peak starts over.
	_, err = e.ApplyTelemetry(ctx, types.Telemetry{
		DeviceID: "ev-charger", Timestamp: now.Add(20 * time.Second), Status: "idle",
	})
	require.NoError(t, err)
	snap, err = e.Tick(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Less(t, snap.Energy.PeakPowerKW, peak)
}

func TestEngineACCoolsRoomTowardSetpoint(t *testing.T) {
	now := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)
	e := seededEngine(t, now)
	ctx := context.Background()

	first, err := e.Snapshot()
	require.NoError(t, err)
	var start float64
	for _, r := range first.Rooms {
		if r.RoomID == "living-room" {
			start = r.TempC
		}
	}

	var snap types.TwinSnapshot
	for i := 0; i < 240; i++ {
		now = now.Add(30 * time.Second)
		snap, err = e.Tick(ctx, now)
		require.NoError(t, err)
	}
	for _, r := range snap.Rooms {
		if r.RoomID == "living-room" {
			assert.Less(t, r.TempC, start, "AC should pull the room down from %0.1f", start)
			assert.Greater(t, r.CoolingKW, 0.0)
		}
	}
}

func TestEngineSetSetpoint(t *testing.T) {
	now := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)
	e := seededEngine(t, now)
	ctx := context.Background()

	before, err := e.Snapshot()
	require.NoError(t, err)

	require.NoError(t, e.SetSetpoint(ctx, "ac-living", 22))
	assert.Equal(t, 22.0, e.devices["ac-living"].ac.setpointC)

	// The published snapshot reflects the change immediately, without
	// simulated time or energy advancing.
	snap, err := e.Snapshot()
	require.NoError(t, err)
	found := false
	for _, ds := range snap.Devices {
		if ds.DeviceID == "ac-living" {
			require.NotNil(t, ds.AC)
			assert.Equal(t, 22.0, ds.AC.SetpointC)
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, before.Timestamp, snap.Timestamp)
	assert.Equal(t, before.Energy.TotalEnergyKWH, snap.Energy.TotalEnergyKWH)

	err = e.SetSetpoint(ctx, "water-heater", 22)
	assert.ErrorContains(t, err, "setpoints apply to ACs only")
	err = e.SetSetpoint(ctx, "nope", 22)
	assert.ErrorContains(t, err, "unknown device")
}

func TestEngineSetPreferences(t *testing.T) {
	now := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)
	e := seededEngine(t, now)
	ctx := context.Background()

	p := types.DefaultPreferences("villa-a")
	p.ComfortMinC = 20
	p.ComfortMaxC = 25
	require.NoError(t, e.SetPreferences(ctx, p))
	got, err := e.Preferences()
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.ComfortMinC)

	bad := p
	bad.ComfortMinC = 30
	bad.ComfortMaxC = 20
	assert.Error(t, e.SetPreferences(ctx, bad))
}

func TestEngineSubscribe(t *testing.T) {
	now := time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)
	e := seededEngine(t, now)

	var got []types.TwinSnapshot
	e.Subscribe(func(s types.TwinSnapshot) { got = append(got, s) })

	_, err := e.Tick(context.Background(), now.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].StepCount)
}

func TestClassifyComfort(t *testing.T) {
	for _, tt := range []struct {
		temp float64
		want types.ComfortStatus
	}{
		{24, types.ComfortComfortable},
		{22, types.ComfortComfortable},
		{26, types.ComfortComfortable},
		{27, types.ComfortWarm},
		{28, types.ComfortWarm},
		{21, types.ComfortCool},
		{20, types.ComfortCool},
		{29, types.ComfortOutOfBand},
		{19, types.ComfortOutOfBand},
	} {
		assert.Equal(t, tt.want, classifyComfort(tt.temp, 22, 26, 2), "temp %0.1f", tt.temp)
	}
}

func TestSolarIrradiance(t *testing.T) {
	assert.Zero(t, solarIrradiance(2))
	assert.Zero(t, solarIrradiance(22))
	noon := solarIrradiance(12.25)
	assert.InDelta(t, solarPeakWM2, noon, 5)
	assert.Greater(t, noon, solarIrradiance(8))
	assert.Greater(t, noon, solarIrradiance(17))
}

package twin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/hometwin/hometwin/pkg/common"
	"github.com/hometwin/hometwin/pkg/types"
)

// ErrNotInitialized is returned when the engine is asked for state before a
// home has been loaded.
var ErrNotInitialized = errors.New("twin is not initialized, seed a home first")

// maxStepSeconds caps the simulated time a single step may advance. Gaps in
// telemetry larger than this are truncated rather than integrated.
const maxStepSeconds = 60.0

// Config controls the engine's accounting and control parameters.
type Config struct {
	// TariffPerKWH is the flat energy price used for cost accounting.
	TariffPerKWH float64
	// EmissionKgPerKWH is the grid carbon intensity for CO2 accounting.
	EmissionKgPerKWH float64
	// ComfortToleranceC widens the warm/cool comfort bands.
	ComfortToleranceC float64
	// CompressorGainPct is the AC proportional gain in percent per °C.
	CompressorGainPct float64
}

// DefaultConfig returns the engine defaults used when no flags are set.
func DefaultConfig() Config {
	return Config{
		TariffPerKWH:      0.38,
		EmissionKgPerKWH:  0.45,
		ComfortToleranceC: 2.0,
		CompressorGainPct: 20.0,
	}
}

// Configured returns an Engine configured via lflag.
func Configured() *Engine {
	tariff := common.Float64Flag("twin-tariff-per-kwh", 0.38, "Flat electricity tariff used for cost accounting")
	emission := common.Float64Flag("twin-emission-kg-per-kwh", 0.45, "Grid carbon intensity in kg CO2 per kWh")
	tolerance := common.Float64Flag("twin-comfort-tolerance-c", 2.0, "Degrees beyond the comfort band before a room is out of band")
	gain := common.Float64Flag("twin-compressor-gain-pct", 20.0, "AC compressor proportional gain in percent per degree of error")

	e := &Engine{}
	lflag.Do(func() {
		e.cfg = Config{
			TariffPerKWH:      tariff(),
			EmissionKgPerKWH:  emission(),
			ComfortToleranceC: tolerance(),
			CompressorGainPct: gain(),
		}
	})
	return e
}

// New returns an Engine with the given config. Tests use this directly.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Engine is the digital twin. All mutation happens under mu, one step at a
// time; reads hand out the last snapshot, which is never mutated after
// publication.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	home     types.Home
	prefs    types.Preferences
	scenario *types.Scenario

	rooms       map[string]*roomModel
	roomOrder   []string
	devices     map[string]*DeviceModel
	deviceOrder []string

	lastSeen  map[string]time.Time // per-device last accepted telemetry timestamp
	observers []func(types.TwinSnapshot)

	// reportedOutsideC is the most recent outside temperature reported by an
	// AC's ambient sensor. While set it overrides the scenario's curve.
	reportedOutsideC *float64

	stepCount uint64
	startedAt time.Time
	lastStep  time.Time
	peakDay   time.Time

	totalKWH  float64
	totalCost float64
	totalCO2  float64
	peakKW    float64

	snapshot *types.TwinSnapshot
}

// Seed loads a home, its rooms and devices, preferences, and the active
// scenario, and computes an initial snapshot. It replaces any prior state.
func (e *Engine) Seed(ctx context.Context, home types.Home, rooms []types.Room, devices []types.Device, prefs types.Preferences, sc *types.Scenario, now time.Time) error {
	if err := prefs.Validate(); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.home = home
	e.prefs = prefs
	e.scenario = sc
	e.rooms = make(map[string]*roomModel, len(rooms))
	e.roomOrder = e.roomOrder[:0]
	env := EnvironmentAt(sc, now)
	for _, r := range rooms {
		// Rooms start near outside temperature minus a few degrees of lag.
		e.rooms[r.ID] = newRoomModel(r, env.OutsideTempC-6.0)
		e.roomOrder = append(e.roomOrder, r.ID)
	}
	sort.Strings(e.roomOrder)

	e.devices = make(map[string]*DeviceModel, len(devices))
	e.deviceOrder = e.deviceOrder[:0]
	for _, d := range devices {
		if _, ok := e.rooms[d.RoomID]; !ok {
			return fmt.Errorf("device %s references unknown room %s", d.ID, d.RoomID)
		}
		m, err := NewDeviceModel(d)
		if err != nil {
			return err
		}
		e.devices[d.ID] = m
		e.deviceOrder = append(e.deviceOrder, d.ID)
	}
	sort.Strings(e.deviceOrder)

	e.lastSeen = make(map[string]time.Time)
	e.reportedOutsideC = nil
	e.stepCount = 0
	e.startedAt = now
	e.lastStep = now
	e.peakDay = now.UTC().Truncate(24 * time.Hour)
	e.totalKWH = 0
	e.totalCost = 0
	e.totalCO2 = 0
	e.peakKW = 0

	e.stepLocked(ctx, now, nil)
	slog.InfoContext(ctx, "twin seeded",
		slog.String("homeID", home.ID),
		slog.Int("rooms", len(rooms)),
		slog.Int("devices", len(devices)),
	)
	return nil
}

// ApplyTelemetry ingests one sample and advances the twin one step. Samples
// at or before the device's last accepted timestamp are dropped and the
// current snapshot is returned unchanged.
func (e *Engine) ApplyTelemetry(ctx context.Context, t types.Telemetry) (types.TwinSnapshot, error) {
	e.mu.Lock()
	if e.snapshot == nil {
		e.mu.Unlock()
		return types.TwinSnapshot{}, ErrNotInitialized
	}
	dm, ok := e.devices[t.DeviceID]
	if !ok {
		snap := *e.snapshot
		e.mu.Unlock()
		return snap, fmt.Errorf("unknown device %q", t.DeviceID)
	}
	if last, ok := e.lastSeen[t.DeviceID]; ok && !t.Timestamp.After(last) {
		slog.DebugContext(ctx, "dropping duplicate telemetry",
			slog.String("deviceID", t.DeviceID),
			slog.Time("timestamp", t.Timestamp),
		)
		snap := *e.snapshot
		e.mu.Unlock()
		return snap, nil
	}
	if t.Status != "" && !dm.Device().Kind.ValidStatus(t.Status) {
		snap := *e.snapshot
		e.mu.Unlock()
		return snap, fmt.Errorf("status %q is not valid for a %s", t.Status, dm.Device().Kind)
	}
	e.lastSeen[t.DeviceID] = t.Timestamp

	// An AC's ambient sensor reads the outside air. Its reading drives the
	// environment until the next one arrives.
	if t.TempC != nil && dm.Device().Kind == types.DeviceAC {
		e.reportedOutsideC = t.TempC
	}

	snap := e.stepLocked(ctx, t.Timestamp, &t)
	obs := e.observers
	e.mu.Unlock()

	notify(obs, snap)
	return snap, nil
}

// Tick advances the twin without new telemetry, letting the scenario drive
// the environment. Used by the simulation loop between real samples.
func (e *Engine) Tick(ctx context.Context, now time.Time) (types.TwinSnapshot, error) {
	e.mu.Lock()
	if e.snapshot == nil {
		e.mu.Unlock()
		return types.TwinSnapshot{}, ErrNotInitialized
	}
	snap := e.stepLocked(ctx, now, nil)
	obs := e.observers
	e.mu.Unlock()

	notify(obs, snap)
	return snap, nil
}

// stepLocked runs one full simulation step. Callers hold mu.
func (e *Engine) stepLocked(ctx context.Context, now time.Time, t *types.Telemetry) types.TwinSnapshot {
	dt := now.Sub(e.lastStep)
	if dt < 0 {
		dt = 0
	}
	if dt.Seconds() > maxStepSeconds {
		dt = time.Duration(maxStepSeconds * float64(time.Second))
	}
	e.lastStep = now

	env := EnvironmentAt(e.scenario, now)
	if e.reportedOutsideC != nil {
		env.OutsideTempC = *e.reportedOutsideC
	}
	env.GridCarbonKgPerKWH = e.cfg.EmissionKgPerKWH

	// Devices step first so rooms see this step's cooling and waste heat.
	deviceStates := make([]types.DeviceState, 0, len(e.deviceOrder))
	coolingByRoom := make(map[string]float64, len(e.roomOrder))
	heatByRoom := make(map[string]float64, len(e.roomOrder))
	var totalPowerKW float64
	for _, id := range e.deviceOrder {
		dm := e.devices[id]
		in := StepInput{
			DT:                dt,
			Env:               env,
			RoomTempC:         e.rooms[dm.Device().RoomID].tempC,
			ReportedPowerKW:   -1,
			CompressorGainPct: e.cfg.CompressorGainPct,
		}
		if t != nil && t.DeviceID == id {
			in.ReportedPowerKW = t.PowerKW
			in.ReportedStatus = t.Status
		}
		st := dm.Step(in)
		deviceStates = append(deviceStates, st)
		coolingByRoom[st.RoomID] += dm.CoolingKW()
		heatByRoom[st.RoomID] += dm.WasteHeatKW()
		totalPowerKW += st.PowerKW
	}

	roomStates := make([]types.RoomState, 0, len(e.roomOrder))
	comfortable := 0
	for _, id := range e.roomOrder {
		rm := e.rooms[id]
		rs := rm.step(roomStepInput{
			dt:           dt,
			now:          now,
			outside:      env,
			coolingKW:    coolingByRoom[id],
			deviceHeatKW: heatByRoom[id],
			toleranceC:   e.cfg.ComfortToleranceC,
			comfortMinC:  e.prefs.ComfortMinC,
			comfortMaxC:  e.prefs.ComfortMaxC,
			setpointC:    e.roomSetpointLocked(id),
		})
		if rs.Comfort == types.ComfortComfortable {
			comfortable++
		}
		roomStates = append(roomStates, rs)
	}

	// Energy accounting. Peak demand resets at midnight UTC.
	day := now.UTC().Truncate(24 * time.Hour)
	if day.After(e.peakDay) {
		e.peakDay = day
		e.peakKW = 0
	}
	hours := dt.Hours()
	stepKWH := totalPowerKW * hours
	e.totalKWH += stepKWH
	e.totalCost += stepKWH * e.cfg.TariffPerKWH
	e.totalCO2 += stepKWH * e.cfg.EmissionKgPerKWH
	if totalPowerKW > e.peakKW {
		e.peakKW = totalPowerKW
	}

	e.stepCount++
	snap := types.TwinSnapshot{
		Timestamp:   now,
		HomeName:    e.home.Name,
		Environment: env,
		Rooms:       roomStates,
		Devices:     deviceStates,
		Energy: types.EnergyTotals{
			CurrentPowerKW: round3(totalPowerKW),
			TotalEnergyKWH: round3(e.totalKWH),
			Cost:           round3(e.totalCost),
			CO2Kg:          round3(e.totalCO2),
			PeakPowerKW:    round3(e.peakKW),
		},
		Comfort: types.ComfortSummary{
			CompliancePct:    compliancePct(comfortable, len(roomStates)),
			RoomsComfortable: comfortable,
			RoomsTotal:       len(roomStates),
		},
		StepCount:     e.stepCount,
		UptimeSeconds: now.Sub(e.startedAt).Seconds(),
	}
	e.snapshot = &snap
	return snap
}

func compliancePct(comfortable, total int) float64 {
	if total == 0 {
		return 100
	}
	return round1(float64(comfortable) / float64(total) * 100)
}

func (e *Engine) roomSetpointLocked(roomID string) float64 {
	for _, id := range e.deviceOrder {
		dm := e.devices[id]
		if dm.Device().RoomID == roomID && dm.Device().Kind == types.DeviceAC {
			return dm.ac.setpointC
		}
	}
	return 0
}

// Snapshot returns the last published snapshot.
func (e *Engine) Snapshot() (types.TwinSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		return types.TwinSnapshot{}, ErrNotInitialized
	}
	return *e.snapshot, nil
}

// Preferences returns the active preferences.
func (e *Engine) Preferences() (types.Preferences, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		return types.Preferences{}, ErrNotInitialized
	}
	return e.prefs, nil
}

// SetPreferences validates and swaps the active preferences. The next step
// picks up the new comfort band.
func (e *Engine) SetPreferences(ctx context.Context, p types.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		return ErrNotInitialized
	}
	e.prefs = p
	slog.InfoContext(ctx, "preferences updated",
		slog.Float64("comfortMinC", p.ComfortMinC),
		slog.Float64("comfortMaxC", p.ComfortMaxC),
		slog.String("mode", string(p.Mode)),
	)
	return nil
}

// Scenario returns the active scenario, nil before seeding.
func (e *Engine) Scenario() *types.Scenario {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenario
}

// SetScenario swaps the environment driver. The twin's accumulated energy
// and room temperatures carry over.
func (e *Engine) SetScenario(sc *types.Scenario) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenario = sc
}

// SetSetpoint points an AC device at a new target temperature and republishes
// the snapshot so reads see the change before the next telemetry sample.
func (e *Engine) SetSetpoint(ctx context.Context, deviceID string, c float64) error {
	e.mu.Lock()
	if e.snapshot == nil {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	dm, ok := e.devices[deviceID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("unknown device %q", deviceID)
	}
	if dm.Device().Kind != types.DeviceAC {
		e.mu.Unlock()
		return fmt.Errorf("device %q is a %s, setpoints apply to ACs only", deviceID, dm.Device().Kind)
	}
	dm.SetSetpoint(c)
	// A zero-duration step rebuilds the snapshot with the new setpoint
	// without advancing simulated time.
	snap := e.stepLocked(ctx, e.lastStep, nil)
	obs := e.observers
	slog.InfoContext(ctx, "setpoint changed",
		slog.String("deviceID", deviceID),
		slog.Float64("setpointC", c),
	)
	e.mu.Unlock()

	notify(obs, snap)
	return nil
}

// Subscribe registers an observer called with each new snapshot. Observers
// must not block; they run outside the engine lock.
func (e *Engine) Subscribe(fn func(types.TwinSnapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

func notify(obs []func(types.TwinSnapshot), snap types.TwinSnapshot) {
	for _, fn := range obs {
		fn(snap)
	}
}

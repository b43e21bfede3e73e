package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hometwin/hometwin/pkg/types"
)

// MemoryProvider implements the Database interface in process memory. It
// backs demo mode and tests; nothing survives a restart.
type MemoryProvider struct {
	mu sync.RWMutex

	homes     map[string]types.Home
	rooms     map[string][]types.Room
	devices   map[string][]types.Device
	prefs     map[string]versionedPrefs
	actions   map[string][]types.Action
	telemetry map[string][]types.Telemetry
	scenarios map[string]map[string]types.Scenario
}

type versionedPrefs struct {
	prefs   types.Preferences
	version int
}

// NewMemory returns an empty in-memory provider.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{
		homes:     make(map[string]types.Home),
		rooms:     make(map[string][]types.Room),
		devices:   make(map[string][]types.Device),
		prefs:     make(map[string]versionedPrefs),
		actions:   make(map[string][]types.Action),
		telemetry: make(map[string][]types.Telemetry),
		scenarios: make(map[string]map[string]types.Scenario),
	}
}

func (m *MemoryProvider) GetHome(ctx context.Context, homeID string) (types.Home, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	home, ok := m.homes[homeID]
	if !ok {
		return types.Home{}, ErrNotFound
	}
	return home, nil
}

func (m *MemoryProvider) CreateHome(ctx context.Context, home types.Home) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homes[home.ID] = home
	return nil
}

func (m *MemoryProvider) SetRooms(ctx context.Context, homeID string, rooms []types.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[homeID] = append([]types.Room(nil), rooms...)
	return nil
}

func (m *MemoryProvider) ListRooms(ctx context.Context, homeID string) ([]types.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.Room(nil), m.rooms[homeID]...), nil
}

func (m *MemoryProvider) SetDevices(ctx context.Context, homeID string, devices []types.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[homeID] = append([]types.Device(nil), devices...)
	return nil
}

func (m *MemoryProvider) ListDevices(ctx context.Context, homeID string) ([]types.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.Device(nil), m.devices[homeID]...), nil
}

func (m *MemoryProvider) GetPreferences(ctx context.Context, homeID string) (types.Preferences, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vp, ok := m.prefs[homeID]
	if !ok {
		return types.Preferences{}, 0, ErrNotFound
	}
	return vp.prefs, vp.version, nil
}

func (m *MemoryProvider) SetPreferences(ctx context.Context, homeID string, prefs types.Preferences, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[homeID] = versionedPrefs{prefs: prefs, version: version}
	return nil
}

func (m *MemoryProvider) InsertAction(ctx context.Context, homeID string, action types.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[homeID] = append(m.actions[homeID], action)
	return nil
}

func (m *MemoryProvider) UpdateAction(ctx context.Context, homeID string, action types.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.actions[homeID] {
		if a.ID == action.ID {
			m.actions[homeID][i] = action
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryProvider) GetAction(ctx context.Context, homeID, actionID string) (types.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.actions[homeID] {
		if a.ID == actionID {
			return a, nil
		}
	}
	return types.Action{}, ErrNotFound
}

func (m *MemoryProvider) GetActionHistory(ctx context.Context, homeID string, start, end time.Time) ([]types.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Action
	for _, a := range m.actions[homeID] {
		if !a.Timestamp.Before(start) && a.Timestamp.Before(end) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryProvider) InsertTelemetry(ctx context.Context, homeID string, sample types.Telemetry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.telemetry[homeID] = append(m.telemetry[homeID], sample)
	return nil
}

func (m *MemoryProvider) GetTelemetryHistory(ctx context.Context, homeID, deviceID string, start, end time.Time) ([]types.Telemetry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Telemetry
	for _, s := range m.telemetry[homeID] {
		if deviceID != "" && s.DeviceID != deviceID {
			continue
		}
		if !s.Timestamp.Before(start) && s.Timestamp.Before(end) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryProvider) UpsertScenario(ctx context.Context, homeID string, sc types.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scenarios[homeID] == nil {
		m.scenarios[homeID] = make(map[string]types.Scenario)
	}
	m.scenarios[homeID][sc.Name] = sc
	return nil
}

func (m *MemoryProvider) GetScenario(ctx context.Context, homeID, name string) (types.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.scenarios[homeID][name]
	if !ok {
		return types.Scenario{}, ErrNotFound
	}
	return sc, nil
}

func (m *MemoryProvider) ListScenarios(ctx context.Context, homeID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.scenarios[homeID]))
	for name := range m.scenarios[homeID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryProvider) Close() error { return nil }

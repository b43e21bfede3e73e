package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hometwin/hometwin/pkg/storage"
	"github.com/hometwin/hometwin/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetHome(ctx context.Context, homeID string) (types.Home, error) {
	args := m.Called(ctx, homeID)
	if len(args) > 0 {
		return args.Get(0).(types.Home), args.Error(1)
	}
	return types.Home{}, nil
}

func (m *MockDatabase) CreateHome(ctx context.Context, home types.Home) error {
	args := m.Called(ctx, home)
	return args.Error(0)
}

func (m *MockDatabase) SetRooms(ctx context.Context, homeID string, rooms []types.Room) error {
	args := m.Called(ctx, homeID, rooms)
	return args.Error(0)
}

func (m *MockDatabase) ListRooms(ctx context.Context, homeID string) ([]types.Room, error) {
	args := m.Called(ctx, homeID)
	if len(args) > 0 {
		rooms, _ := args.Get(0).([]types.Room)
		return rooms, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) SetDevices(ctx context.Context, homeID string, devices []types.Device) error {
	args := m.Called(ctx, homeID, devices)
	return args.Error(0)
}

func (m *MockDatabase) ListDevices(ctx context.Context, homeID string) ([]types.Device, error) {
	args := m.Called(ctx, homeID)
	if len(args) > 0 {
		devices, _ := args.Get(0).([]types.Device)
		return devices, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetPreferences(ctx context.Context, homeID string) (types.Preferences, int, error) {
	args := m.Called(ctx, homeID)
	if len(args) > 0 {
		return args.Get(0).(types.Preferences), args.Int(1), args.Error(2)
	}
	return types.Preferences{}, 0, nil
}

func (m *MockDatabase) SetPreferences(ctx context.Context, homeID string, prefs types.Preferences, version int) error {
	args := m.Called(ctx, homeID, prefs, version)
	return args.Error(0)
}

func (m *MockDatabase) InsertAction(ctx context.Context, homeID string, action types.Action) error {
	args := m.Called(ctx, homeID, action)
	return args.Error(0)
}

func (m *MockDatabase) UpdateAction(ctx context.Context, homeID string, action types.Action) error {
	args := m.Called(ctx, homeID, action)
	return args.Error(0)
}

func (m *MockDatabase) GetAction(ctx context.Context, homeID, actionID string) (types.Action, error) {
	args := m.Called(ctx, homeID, actionID)
	if len(args) > 0 {
		return args.Get(0).(types.Action), args.Error(1)
	}
	return types.Action{}, nil
}

func (m *MockDatabase) GetActionHistory(ctx context.Context, homeID string, start, end time.Time) ([]types.Action, error) {
	args := m.Called(ctx, homeID, start, end)
	if len(args) > 0 {
		actions, _ := args.Get(0).([]types.Action)
		return actions, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) InsertTelemetry(ctx context.Context, homeID string, sample types.Telemetry) error {
	args := m.Called(ctx, homeID, sample)
	return args.Error(0)
}

func (m *MockDatabase) GetTelemetryHistory(ctx context.Context, homeID, deviceID string, start, end time.Time) ([]types.Telemetry, error) {
	args := m.Called(ctx, homeID, deviceID, start, end)
	if len(args) > 0 {
		samples, _ := args.Get(0).([]types.Telemetry)
		return samples, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertScenario(ctx context.Context, homeID string, sc types.Scenario) error {
	args := m.Called(ctx, homeID, sc)
	return args.Error(0)
}

func (m *MockDatabase) GetScenario(ctx context.Context, homeID, name string) (types.Scenario, error) {
	args := m.Called(ctx, homeID, name)
	if len(args) > 0 {
		return args.Get(0).(types.Scenario), args.Error(1)
	}
	return types.Scenario{}, nil
}

func (m *MockDatabase) ListScenarios(ctx context.Context, homeID string) ([]string, error) {
	args := m.Called(ctx, homeID)
	if len(args) > 0 {
		names, _ := args.Get(0).([]string)
		return names, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}

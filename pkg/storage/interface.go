package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/hometwin/hometwin/pkg/types"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Database defines the interface for persisting twin data.
type Database interface {
	// Registry
	GetHome(ctx context.Context, homeID string) (types.Home, error)
	CreateHome(ctx context.Context, home types.Home) error
	SetRooms(ctx context.Context, homeID string, rooms []types.Room) error
	ListRooms(ctx context.Context, homeID string) ([]types.Room, error)
	SetDevices(ctx context.Context, homeID string, devices []types.Device) error
	ListDevices(ctx context.Context, homeID string) ([]types.Device, error)

	// Preferences
	GetPreferences(ctx context.Context, homeID string) (types.Preferences, int, error)
	SetPreferences(ctx context.Context, homeID string, prefs types.Preferences, version int) error

	// Actions
	InsertAction(ctx context.Context, homeID string, action types.Action) error
	UpdateAction(ctx context.Context, homeID string, action types.Action) error
	GetAction(ctx context.Context, homeID, actionID string) (types.Action, error)
	GetActionHistory(ctx context.Context, homeID string, start, end time.Time) ([]types.Action, error)

	// Telemetry
	InsertTelemetry(ctx context.Context, homeID string, sample types.Telemetry) error
	GetTelemetryHistory(ctx context.Context, homeID, deviceID string, start, end time.Time) ([]types.Telemetry, error)

	// Scenarios
	UpsertScenario(ctx context.Context, homeID string, sc types.Scenario) error
	GetScenario(ctx context.Context, homeID, name string) (types.Scenario, error)
	ListScenarios(ctx context.Context, homeID string) ([]string, error)

	// Lifecycle
	Close() error
}

// Configured sets up the storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "memory", "Storage provider to use (available: firestore, memory)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemory()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

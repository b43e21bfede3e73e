package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/levenlabs/go-lflag"

	"github.com/hometwin/hometwin/pkg/log"
	"github.com/hometwin/hometwin/pkg/storage"
	"github.com/hometwin/hometwin/pkg/types"
)

func main() {
	db := storage.Configured()
	homeID := lflag.String("home-id", "villa-a", "home to seed")
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding home", slog.String("homeID", *homeID))

	home := types.Home{ID: *homeID, Name: "Villa A"}
	rooms := []types.Room{
		{ID: "living-room", HomeID: *homeID, Name: "Living Room"},
		{ID: "bedroom", HomeID: *homeID, Name: "Bedroom"},
		{ID: "kitchen", HomeID: *homeID, Name: "Kitchen"},
		{ID: "garage", HomeID: *homeID, Name: "Garage"},
	}
	devices := []types.Device{
		{ID: types.SeedDeviceACLiving, RoomID: "living-room", Kind: types.DeviceAC, Name: "Living Room AC", Status: "on", SetpointC: 24},
		{ID: types.SeedDeviceACBedroom, RoomID: "bedroom", Kind: types.DeviceAC, Name: "Bedroom AC", Status: "on", SetpointC: 23},
		{ID: types.SeedDeviceWaterHeater, RoomID: "garage", Kind: types.DeviceWaterHeater, Name: "Water Heater", Status: "standby"},
		{ID: types.SeedDeviceWasherDryer, RoomID: "kitchen", Kind: types.DeviceWasherDryer, Name: "Washer-Dryer", Status: "idle"},
		{ID: types.SeedDeviceEVCharger, RoomID: "garage", Kind: types.DeviceEVCharger, Name: "EV Charger", Status: "idle"},
	}

	if err := db.CreateHome(ctx, home); err != nil {
		fatal(ctx, "failed to create home", err)
	}
	if err := db.SetRooms(ctx, *homeID, rooms); err != nil {
		fatal(ctx, "failed to set rooms", err)
	}
	if err := db.SetDevices(ctx, *homeID, devices); err != nil {
		fatal(ctx, "failed to set devices", err)
	}
	if err := db.SetPreferences(ctx, *homeID, types.DefaultPreferences(*homeID), types.CurrentPreferencesVersion); err != nil {
		fatal(ctx, "failed to set preferences", err)
	}

	for _, name := range types.BuiltinScenarioNames {
		sc, _ := types.BuiltinScenario(name)
		if err := db.UpsertScenario(ctx, *homeID, sc); err != nil {
			fatal(ctx, "failed to upsert scenario "+name, err)
		}
	}

	if err := db.Close(); err != nil {
		fatal(ctx, "failed to close storage", err)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded",
		slog.Int("rooms", len(rooms)),
		slog.Int("devices", len(devices)),
		slog.Int("scenarios", len(types.BuiltinScenarioNames)))
}

func fatal(ctx context.Context, msg string, err error) {
	log.Ctx(ctx).ErrorContext(ctx, msg, slog.Any("error", err))
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"github.com/hometwin/hometwin/pkg/autopilot"
	"github.com/hometwin/hometwin/pkg/log"
	"github.com/hometwin/hometwin/pkg/optimizer"
	"github.com/hometwin/hometwin/pkg/server"
	"github.com/hometwin/hometwin/pkg/storage"
	"github.com/hometwin/hometwin/pkg/twin"
	"github.com/hometwin/hometwin/pkg/types"
	"github.com/hometwin/hometwin/pkg/ws"
)

func main() {
	// init packages
	db := storage.Configured()
	eng := twin.Configured()
	opt := optimizer.Configured()

	// the autopilot applies actions through the server, which doesn't exist
	// yet when flags are registered
	var srv *server.Server
	pilot := autopilot.Configured(opt, func(ctx context.Context, a types.Action) error {
		return srv.ApplyAction(ctx, a)
	})

	live := ws.NewHandler(ws.NewHub(), eng.Snapshot)
	srv = server.Configured(db, eng, opt, pilot, live)

	tickInterval := lflag.Duration("twin-tick-interval", 30*time.Second, "Interval between twin steps without telemetry")
	scenarioName := lflag.String("scenario", "normal", "Scenario driving the environment (normal, peak, heatwave)")

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer func() {
		if err := db.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	if err := seedTwin(ctx, db, eng, srv.HomeID(), *scenarioName); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "twin not seeded, waiting for seed data",
			slog.String("homeID", srv.HomeID()), slog.Any("error", err))
	}

	// advance the twin even when no telemetry arrives
	go func() {
		ticker := time.NewTicker(*tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				snap, err := eng.Tick(ctx, now.UTC())
				if err != nil {
					if !errors.Is(err, twin.ErrNotInitialized) {
						log.Ctx(ctx).ErrorContext(ctx, "twin tick failed", slog.Any("error", err))
					}
					continue
				}
				live.BroadcastSnapshot(ctx, snap)
			}
		}
	}()

	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}

// seedTwin loads the home's registry and preferences from storage and seeds
// the engine. Returns an error if the home has not been seeded yet.
func seedTwin(ctx context.Context, db storage.Database, eng *twin.Engine, homeID, scenarioName string) error {
	home, err := db.GetHome(ctx, homeID)
	if err != nil {
		return fmt.Errorf("loading home: %w", err)
	}
	rooms, err := db.ListRooms(ctx, homeID)
	if err != nil {
		return fmt.Errorf("loading rooms: %w", err)
	}
	devices, err := db.ListDevices(ctx, homeID)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	prefs, _, err := db.GetPreferences(ctx, homeID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("loading preferences: %w", err)
		}
		prefs = types.DefaultPreferences(homeID)
	}

	sc, err := db.GetScenario(ctx, homeID, scenarioName)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("loading scenario: %w", err)
		}
		builtin, ok := types.BuiltinScenario(scenarioName)
		if !ok {
			return fmt.Errorf("unknown scenario: %s", scenarioName)
		}
		sc = builtin
	}

	if err := eng.Seed(ctx, home, rooms, devices, prefs, &sc, time.Now().UTC()); err != nil {
		return fmt.Errorf("seeding twin: %w", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "twin seeded",
		slog.String("homeID", homeID),
		slog.Int("rooms", len(rooms)),
		slog.Int("devices", len(devices)),
		slog.String("scenario", scenarioName))
	return nil
}

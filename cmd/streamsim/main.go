package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/hometwin/hometwin/pkg/common"
	"github.com/hometwin/hometwin/pkg/log"
	"github.com/hometwin/hometwin/pkg/types"
)

// streamsim replays a scenario's baseline profiles against a running server
// as if real devices were reporting telemetry.
func main() {
	serverURL := lflag.String("server-url", "http://localhost:8080", "Base URL of the hometwin server")
	scenarioName := lflag.String("scenario", "normal", "Scenario to replay (normal, peak, heatwave)")
	interval := lflag.Duration("interval", 5*time.Second, "Wall-clock time between samples")
	speedupFlag := common.Float64Flag("speedup", 60, "Simulated seconds advanced per wall-clock second")
	lflag.Configure()
	speedup := speedupFlag()

	sc, ok := types.BuiltinScenario(*scenarioName)
	if !ok {
		log.Ctx(context.Background()).Error("unknown scenario", slog.String("scenario", *scenarioName))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := common.HTTPClient(10 * time.Second)
	simTime := time.Now().UTC()

	log.Ctx(ctx).InfoContext(ctx, "streaming telemetry",
		slog.String("server", *serverURL),
		slog.String("scenario", *scenarioName),
		slog.Float64("speedup", speedup))

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).InfoContext(ctx, "stream stopped")
			return
		case <-ticker.C:
			simTime = simTime.Add(time.Duration(float64(*interval) * speedup))
			for id, profile := range sc.Devices {
				kw := types.SampleAt(profile.BaselineKW, simTime, 0)
				if err := postSample(ctx, client, *serverURL, types.Telemetry{
					DeviceID:  id,
					Timestamp: simTime,
					PowerKW:   kw,
				}); err != nil {
					log.Ctx(ctx).WarnContext(ctx, "failed to post sample",
						slog.String("deviceID", id), slog.Any("error", err))
				}
			}
		}
	}
}

func postSample(ctx context.Context, client *http.Client, baseURL string, sample types.Telemetry) error {
	body, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshaling sample: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/twin/update", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

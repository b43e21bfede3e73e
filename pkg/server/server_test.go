package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hometwin/hometwin/pkg/autopilot"
	"github.com/hometwin/hometwin/pkg/optimizer"
	"github.com/hometwin/hometwin/pkg/storage"
	"github.com/hometwin/hometwin/pkg/twin"
	"github.com/hometwin/hometwin/pkg/types"
	"github.com/hometwin/hometwin/pkg/ws"
)

var testNow = time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)

// testServer builds a fully wired server on memory storage with a seeded
// twin. The autopilot starts disabled.
func testServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	eng := twin.New(twin.DefaultConfig())
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
	require.NoError(t, eng.Seed(context.Background(), home, rooms, devices,
		types.DefaultPreferences("villa-a"), &sc, testNow))

	opt := optimizer.New(optimizer.DefaultConfig())
	db := storage.NewMemory()

	srv := &Server{
		engine:  eng,
		opt:     opt,
		storage: db,
		homeID:  "villa-a",
	}
	srv.pilot = autopilot.New(autopilot.DefaultConfig(), opt, srv.ApplyAction)
	srv.live = ws.NewHandler(ws.NewHub(), eng.Snapshot)

	return srv, srv.setupHandler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Accept-Encoding", "identity")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	_, h := testServer(t)
	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	_, h := testServer(t)
	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestTwinState(t *testing.T) {
	_, h := testServer(t)
	w := doJSON(t, h, http.MethodGet, "/api/twin/state", nil)
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeBody[types.TwinSnapshot](t, w)
	assert.Equal(t, "Villa A", snap.HomeName)
	assert.Len(t, snap.Rooms, 3)
	assert.Len(t, snap.Devices, 4)
}

func TestTwinStateUnseeded(t *testing.T) {
	srv, _ := testServer(t)
	srv.engine = twin.New(twin.DefaultConfig())
	h := srv.setupHandler()

	w := doJSON(t, h, http.MethodGet, "/api/twin/state", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTwinUpdate(t *testing.T) {
	srv, h := testServer(t)

	sample := types.Telemetry{
		DeviceID:  "ev-charger",
		Timestamp: testNow.Add(30 * time.Second),
		PowerKW:   7.2,
		Status:    "charging",
	}
	w := doJSON(t, h, http.MethodPost, "/api/twin/update", sample)
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeBody[types.TwinSnapshot](t, w)
	assert.Equal(t, sample.Timestamp, snap.Timestamp)

	// sample was persisted
	stored, err := srv.storage.GetTelemetryHistory(context.Background(),
		"villa-a", "ev-charger", testNow, testNow.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 7.2, stored[0].PowerKW)
}

func TestTwinUpdateRejectsUnknownDevice(t *testing.T) {
	_, h := testServer(t)
	w := doJSON(t, h, http.MethodPost, "/api/twin/update", types.Telemetry{
		DeviceID:  "toaster",
		Timestamp: testNow.Add(time.Minute),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTwinUpdateRequiresDeviceID(t *testing.T) {
	_, h := testServer(t)
	w := doJSON(t, h, http.MethodPost, "/api/twin/update", types.Telemetry{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTelemetryHistory(t *testing.T) {
	srv, h := testServer(t)
	ctx := context.Background()

	require.NoError(t, srv.storage.InsertTelemetry(ctx, "villa-a", types.Telemetry{
		DeviceID: "ev-charger", Timestamp: testNow.Add(time.Minute), PowerKW: 7.2,
	}))
	require.NoError(t, srv.storage.InsertTelemetry(ctx, "villa-a", types.Telemetry{
		DeviceID: "ac-living", Timestamp: testNow.Add(2 * time.Minute), PowerKW: 1.4,
	}))

	rangeQuery := "start=" + testNow.Format(time.RFC3339) +
		"&end=" + testNow.Add(time.Hour).Format(time.RFC3339)

	t.Run("all devices", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/api/telemetry?"+rangeQuery, nil)
		require.Equal(t, http.StatusOK, w.Code)
		samples := decodeBody[[]types.Telemetry](t, w)
		assert.Len(t, samples, 2)
	})

	t.Run("filtered by device", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/api/telemetry?device=ev-charger&"+rangeQuery, nil)
		require.Equal(t, http.StatusOK, w.Code)
		samples := decodeBody[[]types.Telemetry](t, w)
		require.Len(t, samples, 1)
		assert.Equal(t, 7.2, samples[0].PowerKW)
	})

	t.Run("empty range", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/api/telemetry?start="+
			testNow.Add(-2*time.Hour).Format(time.RFC3339)+
			"&end="+testNow.Add(-time.Hour).Format(time.RFC3339), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]\n", w.Body.String())
	})

	t.Run("bad range", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/api/telemetry?start=nope&end=nope", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetPreferencesDefaults(t *testing.T) {
	_, h := testServer(t)
	w := doJSON(t, h, http.MethodGet, "/api/preferences", nil)
	require.Equal(t, http.StatusOK, w.Code)

	prefs := decodeBody[types.Preferences](t, w)
	assert.Equal(t, "villa-a", prefs.HomeID)
	assert.Equal(t, 22.0, prefs.ComfortMinC)
	assert.Equal(t, 26.0, prefs.ComfortMaxC)
}

func TestPutPreferences(t *testing.T) {
	srv, h := testServer(t)

	prefs := types.DefaultPreferences("villa-a")
	prefs.ComfortMinC = 21
	prefs.ComfortMaxC = 25
	prefs.Mode = types.ModeSaver

	w := doJSON(t, h, http.MethodPut, "/api/preferences", prefs)
	require.Equal(t, http.StatusOK, w.Code)

	// storage was updated
	stored, version, err := srv.storage.GetPreferences(context.Background(), "villa-a")
	require.NoError(t, err)
	assert.Equal(t, types.CurrentPreferencesVersion, version)
	assert.Equal(t, 21.0, stored.ComfortMinC)
	assert.Equal(t, types.ModeSaver, stored.Mode)

	// the twin follows
	live, err := srv.engine.Preferences()
	require.NoError(t, err)
	assert.Equal(t, 25.0, live.ComfortMaxC)
}

func TestPutPreferencesRejectsInvertedBand(t *testing.T) {
	_, h := testServer(t)

	prefs := types.DefaultPreferences("villa-a")
	prefs.ComfortMinC = 27
	prefs.ComfortMaxC = 22

	w := doJSON(t, h, http.MethodPut, "/api/preferences", prefs)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPreferencesMigratesOldVersion(t *testing.T) {
	srv, h := testServer(t)

	old := types.DefaultPreferences("villa-a")
	old.MaxShiftMinutes = 0 // field added in version 2
	require.NoError(t, srv.storage.SetPreferences(context.Background(), "villa-a", old, 1))

	w := doJSON(t, h, http.MethodGet, "/api/preferences", nil)
	require.Equal(t, http.StatusOK, w.Code)

	got := decodeBody[types.Preferences](t, w)
	assert.Equal(t, 120, got.MaxShiftMinutes)

	stored, version, err := srv.storage.GetPreferences(context.Background(), "villa-a")
	require.NoError(t, err)
	assert.Equal(t, types.CurrentPreferencesVersion, version)
	assert.Equal(t, 120, stored.MaxShiftMinutes)
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hometwin/hometwin/pkg/log"
	"github.com/hometwin/hometwin/pkg/types"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Records are stored as JSON blobs under homes/{homeID}.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(homeID, name string) (*firestore.CollectionRef, error) {
	if homeID == "" {
		return nil, fmt.Errorf("homeID cannot be empty")
	}
	return f.client.Collection("homes").Doc(homeID).Collection(name), nil
}

// setJSONDoc writes a record as a JSON blob with an optional version field.
func setJSONDoc(ctx context.Context, doc *firestore.DocumentRef, v any, fields map[string]any) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	data := map[string]any{"json": string(jsonBytes)}
	for k, val := range fields {
		data[k] = val
	}
	if _, err := doc.Set(ctx, data); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// decodeJSONDoc unmarshals a document's "json" field into out.
func decodeJSONDoc(doc *firestore.DocumentSnapshot, out any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		return fmt.Errorf("document missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return fmt.Errorf("'json' field is not a string")
	}
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("failed to unmarshal record json: %w", err)
	}
	return nil
}

// GetHome retrieves a home record from the top-level "homes" collection.
func (f *FirestoreProvider) GetHome(ctx context.Context, homeID string) (types.Home, error) {
	doc, err := f.client.Collection("homes").Doc(homeID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Home{}, ErrNotFound
		}
		return types.Home{}, fmt.Errorf("failed to fetch home doc: %w", err)
	}
	var home types.Home
	if err := decodeJSONDoc(doc, &home); err != nil {
		return types.Home{}, err
	}
	return home, nil
}

// CreateHome saves a home record.
func (f *FirestoreProvider) CreateHome(ctx context.Context, home types.Home) error {
	if home.ID == "" {
		return fmt.Errorf("home ID cannot be empty")
	}
	return setJSONDoc(ctx, f.client.Collection("homes").Doc(home.ID), home, nil)
}

// SetRooms replaces the room registry for a home.
func (f *FirestoreProvider) SetRooms(ctx context.Context, homeID string, rooms []types.Room) error {
	coll, err := f.getCollection(homeID, "rooms")
	if err != nil {
		return err
	}
	for _, r := range rooms {
		if err := setJSONDoc(ctx, coll.Doc(r.ID), r, nil); err != nil {
			return fmt.Errorf("failed to save room %s: %w", r.ID, err)
		}
	}
	return nil
}

// ListRooms returns all rooms registered for a home.
func (f *FirestoreProvider) ListRooms(ctx context.Context, homeID string) ([]types.Room, error) {
	coll, err := f.getCollection(homeID, "rooms")
	if err != nil {
		return nil, err
	}
	iter := coll.Documents(ctx)
	defer iter.Stop()

	var rooms []types.Room
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate rooms: %w", err)
		}
		var r types.Room
		if err := decodeJSONDoc(doc, &r); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping malformed room doc",
				slog.String("homeID", homeID), slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			continue
		}
		rooms = append(rooms, r)
	}
	return rooms, nil
}

// SetDevices replaces the device registry for a home.
func (f *FirestoreProvider) SetDevices(ctx context.Context, homeID string, devices []types.Device) error {
	coll, err := f.getCollection(homeID, "devices")
	if err != nil {
		return err
	}
	for _, d := range devices {
		if err := setJSONDoc(ctx, coll.Doc(d.ID), d, nil); err != nil {
			return fmt.Errorf("failed to save device %s: %w", d.ID, err)
		}
	}
	return nil
}

// ListDevices returns all devices registered for a home.
func (f *FirestoreProvider) ListDevices(ctx context.Context, homeID string) ([]types.Device, error) {
	coll, err := f.getCollection(homeID, "devices")
	if err != nil {
		return nil, err
	}
	iter := coll.Documents(ctx)
	defer iter.Stop()

	var devices []types.Device
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate devices: %w", err)
		}
		var d types.Device
		if err := decodeJSONDoc(doc, &d); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping malformed device doc",
				slog.String("homeID", homeID), slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// GetPreferences retrieves preferences from the "config/preferences"
// document along with their stored schema version.
func (f *FirestoreProvider) GetPreferences(ctx context.Context, homeID string) (types.Preferences, int, error) {
	coll, err := f.getCollection(homeID, "config")
	if err != nil {
		return types.Preferences{}, 0, err
	}
	doc, err := coll.Doc("preferences").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Preferences{}, 0, ErrNotFound
		}
		return types.Preferences{}, 0, fmt.Errorf("failed to fetch preferences doc: %w", err)
	}

	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	var p types.Preferences
	if err := decodeJSONDoc(doc, &p); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode preferences", slog.String("homeID", homeID), slog.Any("err", err))
		return types.Preferences{}, 0, err
	}
	return p, version, nil
}

// SetPreferences saves preferences to the "config/preferences" document.
func (f *FirestoreProvider) SetPreferences(ctx context.Context, homeID string, prefs types.Preferences, version int) error {
	coll, err := f.getCollection(homeID, "config")
	if err != nil {
		return err
	}
	return setJSONDoc(ctx, coll.Doc("preferences"), prefs, map[string]any{"version": version})
}

// InsertAction adds an action to the "action_history" collection.
// The document ID is the RFC3339 timestamp plus the action ID so range
// queries by time stay efficient and concurrent actions never collide.
func (f *FirestoreProvider) InsertAction(ctx context.Context, homeID string, action types.Action) error {
	coll, err := f.getCollection(homeID, "action_history")
	if err != nil {
		return err
	}
	docID := actionDocID(action)
	return setJSONDoc(ctx, coll.Doc(docID), action, map[string]any{
		"timestamp": action.Timestamp,
		"actionID":  action.ID,
	})
}

// UpdateAction rewrites a previously stored action, looked up by its ID.
func (f *FirestoreProvider) UpdateAction(ctx context.Context, homeID string, action types.Action) error {
	coll, err := f.getCollection(homeID, "action_history")
	if err != nil {
		return err
	}
	iter := coll.Where("actionID", "==", action.ID).Limit(1).Documents(ctx)
	defer iter.Stop()
	doc, err := iter.Next()
	if err == iterator.Done {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find action %s: %w", action.ID, err)
	}
	return setJSONDoc(ctx, doc.Ref, action, map[string]any{
		"timestamp": action.Timestamp,
		"actionID":  action.ID,
	})
}

// GetAction retrieves one action by its ID.
func (f *FirestoreProvider) GetAction(ctx context.Context, homeID, actionID string) (types.Action, error) {
	coll, err := f.getCollection(homeID, "action_history")
	if err != nil {
		return types.Action{}, err
	}
	iter := coll.Where("actionID", "==", actionID).Limit(1).Documents(ctx)
	defer iter.Stop()
	doc, err := iter.Next()
	if err == iterator.Done {
		return types.Action{}, ErrNotFound
	}
	if err != nil {
		return types.Action{}, fmt.Errorf("failed to find action %s: %w", actionID, err)
	}
	var a types.Action
	if err := decodeJSONDoc(doc, &a); err != nil {
		return types.Action{}, err
	}
	return a, nil
}

// GetActionHistory retrieves actions within the time range using document
// ID range queries, so only matching documents are read.
func (f *FirestoreProvider) GetActionHistory(ctx context.Context, homeID string, start, end time.Time) ([]types.Action, error) {
	coll, err := f.getCollection(homeID, "action_history")
	if err != nil {
		return nil, err
	}
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var actions []types.Action
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate actions: %w", err)
		}
		var a types.Action
		if err := decodeJSONDoc(doc, &a); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping malformed action doc",
				slog.String("homeID", homeID), slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			continue
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// InsertTelemetry appends a telemetry sample to the "telemetry" collection.
func (f *FirestoreProvider) InsertTelemetry(ctx context.Context, homeID string, sample types.Telemetry) error {
	coll, err := f.getCollection(homeID, "telemetry")
	if err != nil {
		return err
	}
	docID := sample.Timestamp.UTC().Format(time.RFC3339) + "-" + sample.DeviceID
	return setJSONDoc(ctx, coll.Doc(docID), sample, map[string]any{
		"timestamp": sample.Timestamp,
		"deviceID":  sample.DeviceID,
	})
}

// GetTelemetryHistory retrieves samples within the time range, optionally
// filtered to one device. An empty deviceID returns every device.
func (f *FirestoreProvider) GetTelemetryHistory(ctx context.Context, homeID, deviceID string, start, end time.Time) ([]types.Telemetry, error) {
	coll, err := f.getCollection(homeID, "telemetry")
	if err != nil {
		return nil, err
	}
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)
	q := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc)
	iter := q.Documents(ctx)
	defer iter.Stop()

	var samples []types.Telemetry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate telemetry: %w", err)
		}
		var s types.Telemetry
		if err := decodeJSONDoc(doc, &s); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping malformed telemetry doc",
				slog.String("homeID", homeID), slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			continue
		}
		if deviceID != "" && s.DeviceID != deviceID {
			continue
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// UpsertScenario saves a scenario keyed by its name.
func (f *FirestoreProvider) UpsertScenario(ctx context.Context, homeID string, sc types.Scenario) error {
	coll, err := f.getCollection(homeID, "scenarios")
	if err != nil {
		return err
	}
	if sc.Name == "" {
		return fmt.Errorf("scenario name cannot be empty")
	}
	return setJSONDoc(ctx, coll.Doc(sc.Name), sc, nil)
}

// GetScenario retrieves one scenario by name.
func (f *FirestoreProvider) GetScenario(ctx context.Context, homeID, name string) (types.Scenario, error) {
	coll, err := f.getCollection(homeID, "scenarios")
	if err != nil {
		return types.Scenario{}, err
	}
	doc, err := coll.Doc(name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Scenario{}, ErrNotFound
		}
		return types.Scenario{}, fmt.Errorf("failed to fetch scenario doc: %w", err)
	}
	var sc types.Scenario
	if err := decodeJSONDoc(doc, &sc); err != nil {
		return types.Scenario{}, err
	}
	return sc, nil
}

// ListScenarios returns the names of all stored scenarios.
func (f *FirestoreProvider) ListScenarios(ctx context.Context, homeID string) ([]string, error) {
	coll, err := f.getCollection(homeID, "scenarios")
	if err != nil {
		return nil, err
	}
	iter := coll.Documents(ctx)
	defer iter.Stop()

	var names []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate scenarios: %w", err)
		}
		names = append(names, doc.Ref.ID)
	}
	return names, nil
}

func actionDocID(action types.Action) string {
	return action.Timestamp.UTC().Format(time.RFC3339) + "-" + action.ID
}

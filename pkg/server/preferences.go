package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hometwin/hometwin/pkg/log"
	"github.com/hometwin/hometwin/pkg/storage"
	"github.com/hometwin/hometwin/pkg/types"
)

// getPreferencesWithMigration loads stored preferences, upgrading old
// versions in place. Missing records fall back to defaults.
func (s *Server) getPreferencesWithMigration(ctx context.Context) (types.Preferences, error) {
	prefs, version, err := s.storage.GetPreferences(ctx, s.homeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.DefaultPreferences(s.homeID), nil
		}
		return types.Preferences{}, err
	}

	if version < types.CurrentPreferencesVersion {
		log.Ctx(ctx).InfoContext(ctx, "migrating preferences",
			slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentPreferencesVersion))
		migrated, changed, err := types.MigratePreferences(prefs, version)
		if err != nil {
			// best effort: serve what we have
			log.Ctx(ctx).ErrorContext(ctx, "failed to migrate preferences",
				slog.Int("currentVersion", version), slog.Any("error", err))
		} else if changed {
			prefs = migrated
			if err := s.storage.SetPreferences(ctx, s.homeID, prefs, types.CurrentPreferencesVersion); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to save migrated preferences", slog.Any("error", err))
			}
		}
	}

	return prefs, nil
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prefs, err := s.getPreferencesWithMigration(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get preferences", slog.Any("error", err))
		writeJSONError(w, "failed to get preferences", http.StatusInternalServerError)
		return
	}
	writeJSON(w, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var prefs types.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeJSONError(w, "invalid preferences: "+err.Error(), http.StatusBadRequest)
		return
	}
	prefs.HomeID = s.homeID
	if err := prefs.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.storage.SetPreferences(ctx, s.homeID, prefs, types.CurrentPreferencesVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save preferences", slog.Any("error", err))
		writeJSONError(w, "failed to save preferences", http.StatusInternalServerError)
		return
	}

	// The twin rejects preference changes until it is seeded. The stored
	// record still wins on the next seed.
	if err := s.engine.SetPreferences(ctx, prefs); err != nil {
		log.Ctx(ctx).DebugContext(ctx, "twin not updated with preferences", slog.Any("error", err))
	}

	writeJSON(w, prefs)
}

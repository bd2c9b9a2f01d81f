// Package flow implements the BioFlow client state: the consultation engine,
// plan generation, trackers and their persistence.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/BioFlow/internal/store"
	"github.com/BTreeMap/BioFlow/internal/util"
	"github.com/goccy/go-json"
)

// DataKey names one persisted slice of client state.
type DataKey string

// Persisted keys.
const (
	KeyToken           DataKey = "bio_token"
	KeyUserChoices     DataKey = "userChoices"
	KeyUserName        DataKey = "userName"
	KeyContext         DataKey = "context"
	KeyWeekPlan        DataKey = "weekPlan"
	KeyWorkoutPlan     DataKey = "workoutPlan"
	KeyJournalEntries  DataKey = "journalEntries"
	KeyMoodHistory     DataKey = "moodHistory"
	KeyJournalAnalysis DataKey = "journalAnalysis"
	KeyAchievements    DataKey = "achievements"
	KeyWaterIntake     DataKey = "waterIntake"
	KeyWaterHistory    DataKey = "waterHistory"
	KeyFastingStart    DataKey = "fastingStart"
	KeyUserStreak      DataKey = "userStreak"
	KeyLastLoginDate   DataKey = "lastLoginDate"
	KeyWorkoutHistory  DataKey = "workoutHistory"
	KeyActivityLog     DataKey = "activityLog"
	KeySchemaVersion   DataKey = "schemaVersion"
)

// stringKeys hold plain strings. Legacy values such as an all-digit token are
// valid JSON numbers and must keep their string form.
var stringKeys = map[DataKey]bool{
	KeyToken:         true,
	KeyUserName:      true,
	KeyLastLoginDate: true,
}

// AllKeys lists every persisted key in export order.
var AllKeys = []DataKey{
	KeyToken, KeyUserName, KeyUserChoices, KeyContext, KeyWeekPlan, KeyWorkoutPlan,
	KeyJournalEntries, KeyMoodHistory, KeyJournalAnalysis, KeyAchievements,
	KeyWaterIntake, KeyWaterHistory, KeyFastingStart, KeyUserStreak, KeyLastLoginDate,
	KeyWorkoutHistory, KeyActivityLog, KeySchemaVersion,
}

// StateManager reads and writes client state through a Store. Every value is
// wrapped in a versioned envelope. Reads never fail the caller: a missing or
// corrupt value leaves the destination untouched.
type StateManager struct {
	store store.Store
}

// NewStateManager creates a StateManager backed by st.
func NewStateManager(st store.Store) *StateManager {
	slog.Debug("Creating StateManager")
	return &StateManager{store: st}
}

// Store returns the underlying store.
func (sm *StateManager) Store() store.Store {
	return sm.store
}

// Load decodes the value stored under key into dst and reports whether it did.
// dst must be a pointer.
func (sm *StateManager) Load(ctx context.Context, key DataKey, dst any) bool {
	raw, ok, err := sm.store.Get(ctx, string(key))
	if err != nil {
		slog.Warn("StateManager Load read failed, using default", "key", key, "error", err)
		return false
	}
	if !ok {
		slog.Debug("StateManager Load not found", "key", key)
		return false
	}

	env := store.Decode(raw)
	if err := env.Unmarshal(dst); err != nil {
		// Plain strings may have been stored as bare numbers (an all-digit token).
		if s, isString := dst.(*string); isString {
			if text, ok := scalarText(env.Payload); ok {
				*s = text
				return true
			}
		}
		slog.Warn("StateManager Load corrupt value, using default", "key", key, "version", env.Version, "error", err)
		return false
	}
	slog.Debug("StateManager Load succeeded", "key", key, "version", env.Version)
	return true
}

// Save overwrites the value under key.
func (sm *StateManager) Save(ctx context.Context, key DataKey, v any) error {
	encoded, err := store.Encode(v)
	if err != nil {
		slog.Error("StateManager Save encode failed", "key", key, "error", err)
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := sm.store.Set(ctx, string(key), encoded); err != nil {
		slog.Error("StateManager Save failed", "key", key, "error", err)
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	slog.Debug("StateManager Save succeeded", "key", key)
	return nil
}

// Remove deletes the value under key.
func (sm *StateManager) Remove(ctx context.Context, key DataKey) error {
	if err := sm.store.Delete(ctx, string(key)); err != nil {
		slog.Error("StateManager Remove failed", "key", key, "error", err)
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	slog.Debug("StateManager Remove succeeded", "key", key)
	return nil
}

// EnsureToken returns the device token, creating and persisting one if absent.
func (sm *StateManager) EnsureToken(ctx context.Context) (string, error) {
	var token string
	if sm.Load(ctx, KeyToken, &token) && token != "" {
		return token, nil
	}
	token = util.GenerateToken()
	if err := sm.Save(ctx, KeyToken, token); err != nil {
		return "", err
	}
	slog.Info("StateManager created device token")
	return token, nil
}

// Migrate rewrites every legacy value into a current-version envelope and
// records the schema version. Values that cannot be parsed are left alone.
func (sm *StateManager) Migrate(ctx context.Context) (int, error) {
	keys, err := sm.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}
	migrated := 0
	for _, k := range keys {
		raw, ok, err := sm.store.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		env := store.Decode(raw)
		if env.Version != store.LegacyVersion {
			continue
		}
		payload := []byte(env.Payload)
		if stringKeys[DataKey(k)] {
			if text, ok := scalarText(env.Payload); ok {
				if payload, err = json.Marshal(text); err != nil {
					continue
				}
			}
		}
		encoded, err := store.EncodePayload(payload)
		if err != nil {
			slog.Warn("StateManager Migrate skipped value", "key", k, "error", err)
			continue
		}
		if err := sm.store.Set(ctx, k, encoded); err != nil {
			return migrated, fmt.Errorf("failed to migrate %s: %w", k, err)
		}
		migrated++
	}
	if err := sm.Save(ctx, KeySchemaVersion, store.CurrentVersion); err != nil {
		return migrated, err
	}
	if migrated > 0 {
		slog.Info("StateManager Migrate rewrote legacy values", "count", migrated)
	}
	return migrated, nil
}

// scalarText returns the literal text of a bare number or boolean payload.
func scalarText(payload []byte) (string, bool) {
	text := strings.TrimSpace(string(payload))
	if text == "" || text == "null" {
		return "", false
	}
	switch c := text[0]; {
	case c == '-' || (c >= '0' && c <= '9'), text == "true", text == "false":
		return text, true
	}
	return "", false
}

// Reset clears every persisted key.
func (sm *StateManager) Reset(ctx context.Context) error {
	if err := sm.store.Clear(ctx); err != nil {
		slog.Error("StateManager Reset failed", "error", err)
		return fmt.Errorf("failed to reset state: %w", err)
	}
	slog.Info("StateManager Reset cleared all state")
	return nil
}

// Export returns every persisted value's payload keyed by its name. Corrupt
// values are skipped.
func (sm *StateManager) Export(ctx context.Context) (map[string]json.RawMessage, error) {
	keys, err := sm.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	out := make(map[string]json.RawMessage, len(keys))
	var errs []error
	for _, k := range keys {
		raw, ok, err := sm.store.Get(ctx, k)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		if !ok {
			continue
		}
		out[k] = store.Decode(raw).Payload
	}
	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	return out, nil
}

package flow

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/BTreeMap/BioFlow/internal/store"
)

func TestStateManagerRoundTrip(t *testing.T) {
	ctx := context.Background()
	sm := NewStateManager(store.NewInMemoryStore())

	if err := sm.Save(ctx, KeyUserChoices, map[string]string{"goal": "Muscle Gain"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got := map[string]string{}
	if !sm.Load(ctx, KeyUserChoices, &got) {
		t.Fatal("expected stored value to load")
	}
	if !reflect.DeepEqual(got, map[string]string{"goal": "Muscle Gain"}) {
		t.Errorf("unexpected choices %v", got)
	}
}

func TestStateManagerCorruptValueKeepsDefault(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	sm := NewStateManager(st)

	if err := sm.Save(ctx, KeyUserChoices, map[string]string{"goal": "Muscle Gain"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, _, _ := st.Get(ctx, string(KeyUserChoices))
	if err := st.Set(ctx, string(KeyUserChoices), raw[:len(raw)/2]); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got := map[string]string{}
	if sm.Load(ctx, KeyUserChoices, &got) {
		t.Error("expected corrupt value to be rejected")
	}
	if len(got) != 0 {
		t.Errorf("expected default empty map, got %v", got)
	}
}

func TestStateManagerMissingKey(t *testing.T) {
	sm := NewStateManager(store.NewInMemoryStore())
	intake := 3
	if sm.Load(context.Background(), KeyWaterIntake, &intake) {
		t.Error("expected missing key to report false")
	}
	if intake != 3 {
		t.Errorf("destination must be untouched, got %d", intake)
	}
}

func TestStateManagerLegacyValues(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	sm := NewStateManager(st)

	legacy := map[DataKey]string{
		KeyToken:         "k3j9x2m1qp",
		KeyWaterIntake:   "5",
		KeyUserChoices:   `{"goal":"Weight Loss"}`,
		KeyLastLoginDate: "2024-03-01",
	}
	for k, v := range legacy {
		st.Set(ctx, string(k), v)
	}

	var token string
	if !sm.Load(ctx, KeyToken, &token) || token != "k3j9x2m1qp" {
		t.Errorf("unexpected legacy token %q", token)
	}
	var intake int
	if !sm.Load(ctx, KeyWaterIntake, &intake) || intake != 5 {
		t.Errorf("unexpected legacy intake %d", intake)
	}

	migrated, err := sm.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if migrated != len(legacy) {
		t.Errorf("expected %d migrated values, got %d", len(legacy), migrated)
	}
	raw, _, _ := st.Get(ctx, string(KeyUserChoices))
	if env := store.Decode(raw); env.Version != store.CurrentVersion {
		t.Errorf("expected value rewritten at version %d, got %d", store.CurrentVersion, env.Version)
	}
	var last string
	if !sm.Load(ctx, KeyLastLoginDate, &last) || last != "2024-03-01" {
		t.Errorf("unexpected last login %q", last)
	}

	again, err := sm.Migrate(ctx)
	if err != nil || again != 0 {
		t.Errorf("expected second migration to be a no-op, got %d %v", again, err)
	}
}

func TestStateManagerNumericLegacyToken(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	st.Set(ctx, string(KeyToken), "12345")
	sm := NewStateManager(st)

	var token string
	if !sm.Load(ctx, KeyToken, &token) || token != "12345" {
		t.Errorf("expected numeric legacy token as string, got %q", token)
	}

	first, err := sm.EnsureToken(ctx)
	if err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if _, err := sm.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	raw, _, _ := st.Get(ctx, string(KeyToken))
	if !strings.Contains(raw, `"payload":"12345"`) {
		t.Errorf("expected token migrated as a JSON string, got %s", raw)
	}
	second, err := sm.EnsureToken(ctx)
	if err != nil {
		t.Fatalf("EnsureToken after Migrate failed: %v", err)
	}
	if first != "12345" || second != first {
		t.Errorf("device token changed across boots: %q then %q", first, second)
	}
}

func TestStateManagerLoadsNumericPayloadAsString(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	st.Set(ctx, string(KeyToken), `{"version":1,"payload":98765}`)
	sm := NewStateManager(st)

	token, err := sm.EnsureToken(ctx)
	if err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if token != "98765" {
		t.Errorf("expected numeric payload kept as token, got %q", token)
	}
}

func TestEnsureTokenIsStable(t *testing.T) {
	ctx := context.Background()
	sm := NewStateManager(store.NewInMemoryStore())

	first, err := sm.EnsureToken(ctx)
	if err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if first == "" || strings.Trim(first, "0123456789abcdefghijklmnopqrstuvwxyz") != "" {
		t.Errorf("expected base-36 token, got %q", first)
	}
	second, _ := sm.EnsureToken(ctx)
	if first != second {
		t.Errorf("token changed between calls: %q vs %q", first, second)
	}
}

func TestStateManagerResetAndExport(t *testing.T) {
	ctx := context.Background()
	sm := NewStateManager(store.NewInMemoryStore())
	sm.Save(ctx, KeyWaterIntake, 4)
	sm.Save(ctx, KeyMoodHistory, map[string]string{"2024-03-01": "Happy"})

	out, err := sm.Export(ctx)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if string(out[string(KeyWaterIntake)]) != "4" {
		t.Errorf("unexpected exported intake %s", out[string(KeyWaterIntake)])
	}
	if !strings.Contains(string(out[string(KeyMoodHistory)]), "Happy") {
		t.Errorf("unexpected exported mood %s", out[string(KeyMoodHistory)])
	}

	if err := sm.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	out, _ = sm.Export(ctx)
	if len(out) != 0 {
		t.Errorf("expected empty export after reset, got %v", out)
	}
}

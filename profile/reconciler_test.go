package profile

import (
	"context"
	"testing"
	"time"

	"culturascape/api/docstore"
	"culturascape/api/models"
)

var syncNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestMergeNilStoreIsNoop(t *testing.T) {
	rec := NewReconciler(nil)
	local := &models.Profile{Preferences: DefaultPreferences()}
	outcome, err := rec.Merge(context.Background(), "visitor_1", local)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if outcome != OutcomeNoChange {
		t.Errorf("outcome = %v, want OutcomeNoChange", outcome)
	}
}

func TestMergeCreatesMissingRemote(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	store.SetClock(func() time.Time { return syncNow })
	rec := NewReconciler(store)

	local := &models.Profile{Preferences: DefaultPreferences(), LastUpdated: syncNow.UnixMilli()}
	outcome, err := rec.Merge(ctx, "visitor_1", local)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if outcome != OutcomeCreatedRemote {
		t.Fatalf("outcome = %v, want OutcomeCreatedRemote", outcome)
	}

	remote, err := store.Get(ctx, CollectionProfiles, "visitor_1")
	if err != nil {
		t.Fatalf("Get remote: %v", err)
	}
	if remote["sessionId"] != "visitor_1" {
		t.Errorf("sessionId = %v, want visitor_1", remote["sessionId"])
	}
	if remote["createdAt"] != syncNow {
		t.Errorf("createdAt = %v, want server-assigned", remote["createdAt"])
	}
}

func TestMergePullsNewerRemote(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	rec := NewReconciler(store)

	remoteTime := syncNow
	err := store.Create(ctx, CollectionProfiles, "visitor_1", docstore.Document{
		"preferences": docstore.Document{"theme": "dark"},
		"lastUpdated": remoteTime,
	})
	if err != nil {
		t.Fatalf("Create remote: %v", err)
	}

	local := &models.Profile{
		Preferences: DefaultPreferences(),
		LastUpdated: remoteTime.Add(-time.Hour).UnixMilli(),
	}
	outcome, err := rec.Merge(ctx, "visitor_1", local)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if outcome != OutcomePulledRemote {
		t.Fatalf("outcome = %v, want OutcomePulledRemote", outcome)
	}
	if local.Preferences.Theme != "dark" {
		t.Errorf("theme = %q, want dark pulled from remote", local.Preferences.Theme)
	}
	// Keys absent from the remote document keep their local values.
	if !local.Preferences.Notifications {
		t.Error("notifications lost during overlay")
	}
	if local.LastUpdated != remoteTime.UnixMilli() {
		t.Errorf("LastUpdated = %d, want %d", local.LastUpdated, remoteTime.UnixMilli())
	}
}

func TestMergePushesNewerLocal(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	store.SetClock(func() time.Time { return syncNow })
	rec := NewReconciler(store)

	err := store.Create(ctx, CollectionProfiles, "visitor_1", docstore.Document{
		"preferences": docstore.Document{"theme": "light"},
		"lastUpdated": syncNow.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Create remote: %v", err)
	}

	prefs := DefaultPreferences()
	prefs.Theme = "dark"
	local := &models.Profile{Preferences: prefs, LastUpdated: syncNow.UnixMilli()}

	outcome, err := rec.Merge(ctx, "visitor_1", local)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if outcome != OutcomePushedLocal {
		t.Fatalf("outcome = %v, want OutcomePushedLocal", outcome)
	}

	remote, _ := store.Get(ctx, CollectionProfiles, "visitor_1")
	remotePrefs := remote["preferences"].(docstore.Document)
	if remotePrefs["theme"] != "dark" {
		t.Errorf("remote theme = %v, want dark pushed from local", remotePrefs["theme"])
	}
	if remote["lastUpdated"] != syncNow {
		t.Errorf("remote lastUpdated = %v, want server-assigned", remote["lastUpdated"])
	}
}

func TestMergeTieTouchesNothing(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	rec := NewReconciler(store)

	err := store.Create(ctx, CollectionProfiles, "visitor_1", docstore.Document{
		"preferences": docstore.Document{"theme": "dark"},
		"lastUpdated": syncNow,
	})
	if err != nil {
		t.Fatalf("Create remote: %v", err)
	}

	local := &models.Profile{Preferences: DefaultPreferences(), LastUpdated: syncNow.UnixMilli()}
	outcome, err := rec.Merge(ctx, "visitor_1", local)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if outcome != OutcomeNoChange {
		t.Errorf("outcome = %v, want OutcomeNoChange on equal timestamps", outcome)
	}
	if local.Preferences.Theme != "light" {
		t.Errorf("local theme = %q, tie must not pull", local.Preferences.Theme)
	}
}

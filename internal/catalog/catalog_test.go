package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dvrguide_test.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return store
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
	v, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 3 {
		t.Errorf("SchemaVersion = %d, want 3", v)
	}
}

func TestUpsertEvent_RejectsMissingPVID(t *testing.T) {
	store := openTestStore(t)
	ev := Event{
		ID: "evt-1", ExternalID: "ext-1", Title: "Test Event",
		StartUTC: time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC),
		StopUTC:  time.Date(2026, 7, 29, 20, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertEvent(context.Background(), ev); err == nil {
		t.Fatal("expected error for missing pvid")
	}
}

func TestUpsertEvent_RejectsEndBeforeStart(t *testing.T) {
	store := openTestStore(t)
	ev := Event{
		ID: "evt-1", ExternalID: "ext-1", PVID: "pv-1", Title: "Test Event",
		StartUTC: time.Date(2026, 7, 29, 20, 0, 0, 0, time.UTC),
		StopUTC:  time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertEvent(context.Background(), ev); err == nil {
		t.Fatal("expected error for stop before start")
	}
}

func TestUpsertEvent_RejectsDuplicatePlayableID(t *testing.T) {
	store := openTestStore(t)
	ev := Event{
		ID: "evt-1", ExternalID: "ext-1", PVID: "pv-1", Title: "Test Event",
		StartUTC: time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC),
		StopUTC:  time.Date(2026, 7, 29, 20, 0, 0, 0, time.UTC),
		Playables: []Playable{
			{EventID: "evt-1", PlayableID: "p1", LogicalService: "espn_web"},
			{EventID: "evt-1", PlayableID: "p1", LogicalService: "espn_plus"},
		},
	}
	if err := store.UpsertEvent(context.Background(), ev); err == nil {
		t.Fatal("expected error for duplicate playable_id")
	}
}

func TestUpsertEvent_RoundTripsPlayablesAndImages(t *testing.T) {
	store := openTestStore(t)
	start := time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC)
	stop := start.Add(2 * time.Hour)
	ev := Event{
		ID: "evt-1", ExternalID: "ext-1", PVID: "pv-1", Title: "Test Event",
		StartUTC: start, StopUTC: stop, Genres: []string{"Soccer"},
		Classification: []Classification{{Type: "sport", Value: "Soccer"}},
		Playables: []Playable{
			{EventID: "evt-1", PlayableID: "p1", LogicalService: "espn_web", Priority: 10},
		},
		Images: []EventImage{{EventID: "evt-1", ImgType: "hero", URL: "http://img/hero.jpg"}},
	}
	if err := store.UpsertEvent(context.Background(), ev); err != nil {
		t.Fatalf("UpsertEvent: %v", err)
	}

	got, err := store.EventByID(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("EventByID: %v", err)
	}
	if got == nil {
		t.Fatal("expected event, got nil")
	}
	if len(got.Playables) != 1 || got.Playables[0].LogicalService != "espn_web" {
		t.Errorf("unexpected playables: %+v", got.Playables)
	}
	if len(got.Images) != 1 || got.Images[0].URL != "http://img/hero.jpg" {
		t.Errorf("unexpected images: %+v", got.Images)
	}
	if got.Sport() != "Soccer" {
		t.Errorf("Sport() = %q, want Soccer", got.Sport())
	}

	// Re-upsert with a disjoint playable set; the old one must be gone.
	ev.Playables = []Playable{{EventID: "evt-1", PlayableID: "p2", LogicalService: "max"}}
	if err := store.UpsertEvent(context.Background(), ev); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got2, err := store.EventByID(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("EventByID after re-upsert: %v", err)
	}
	if len(got2.Playables) != 1 || got2.Playables[0].PlayableID != "p2" {
		t.Errorf("expected only p2 to survive re-upsert, got %+v", got2.Playables)
	}
}

func TestWindowEvents_FiltersByRange(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	inWindow := Event{
		ID: "in", ExternalID: "in", PVID: "pv-in", Title: "In Window",
		StartUTC: now.Add(time.Hour), StopUTC: now.Add(2 * time.Hour),
	}
	outOfWindow := Event{
		ID: "out", ExternalID: "out", PVID: "pv-out", Title: "Out Of Window",
		StartUTC: now.Add(30 * 24 * time.Hour), StopUTC: now.Add(31 * 24 * time.Hour),
	}
	for _, ev := range []Event{inWindow, outOfWindow} {
		if err := store.UpsertEvent(context.Background(), ev); err != nil {
			t.Fatalf("UpsertEvent %s: %v", ev.ID, err)
		}
	}

	events, err := store.WindowEvents(context.Background(), now, 0, 7)
	if err != nil {
		t.Fatalf("WindowEvents: %v", err)
	}
	if len(events) != 1 || events[0].ID != "in" {
		t.Fatalf("expected only 'in' event in window, got %+v", events)
	}
}

func TestLanes_ResetAndInsertRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.ResetLanes(ctx, 2, 9000, "Fruit Lane"); err != nil {
		t.Fatalf("ResetLanes: %v", err)
	}
	lanes, err := store.ListLanes(ctx)
	if err != nil {
		t.Fatalf("ListLanes: %v", err)
	}
	if len(lanes) != 2 {
		t.Fatalf("expected 2 lanes, got %d", len(lanes))
	}

	start := time.Date(2026, 7, 29, 11, 0, 0, 0, time.UTC)
	le := LaneEvent{LaneID: 9000, EventID: "evt-1", StartUTC: start, EndUTC: start.Add(time.Hour), Title: "Test Event"}
	if err := store.InsertLaneEvent(ctx, le); err != nil {
		t.Fatalf("InsertLaneEvent: %v", err)
	}

	current, err := store.CurrentLaneEvent(ctx, 9000, start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("CurrentLaneEvent: %v", err)
	}
	if current == nil || current.EventID != "evt-1" {
		t.Fatalf("expected current lane event evt-1, got %+v", current)
	}

	none, err := store.CurrentLaneEvent(ctx, 9000, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("CurrentLaneEvent (after end): %v", err)
	}
	if none != nil {
		t.Fatalf("expected no current lane event after slot ends, got %+v", none)
	}
}

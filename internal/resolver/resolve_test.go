package resolver

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/mapper"
)

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resolver_test.db")
	store, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return store
}

func seedLaneEvent(t *testing.T, store *catalog.Store, laneID int, start time.Time) {
	t.Helper()
	ctx := context.Background()
	ev := catalog.Event{
		ID: "evt-1", ExternalID: "ext-1", PVID: "pv-1", Title: "Cup Final",
		StartUTC: start, StopUTC: start.Add(time.Hour),
		Playables: []catalog.Playable{
			{EventID: "evt-1", PlayableID: "p1", LogicalService: "espn_web", DeeplinkPlay: "espn://watch/p1", HTTPDeeplinkURL: "https://plus.espn.com/watch/p1"},
		},
	}
	if err := store.UpsertEvent(ctx, ev); err != nil {
		t.Fatalf("UpsertEvent: %v", err)
	}
	if err := store.ResetLanes(ctx, 1, laneID, "Lane One"); err != nil {
		t.Fatalf("ResetLanes: %v", err)
	}
	le := catalog.LaneEvent{LaneID: laneID, EventID: "evt-1", StartUTC: start, EndUTC: start.Add(time.Hour), Title: ev.Title}
	if err := store.InsertLaneEvent(ctx, le); err != nil {
		t.Fatalf("InsertLaneEvent: %v", err)
	}
}

func emptyPrefs() catalog.Preferences {
	return catalog.Preferences{ServicePriorities: map[string]int{}, LanguagePreference: "both"}
}

func TestResolve_ReturnsDeeplinkDuringEvent(t *testing.T) {
	store := openTestStore(t)
	start := time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC)
	seedLaneEvent(t, store, 1, start)

	got, err := Resolve(context.Background(), store, emptyPrefs(), 1, start.Add(10*time.Minute), 5, mapper.DefaultPriority)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !got.OK || got.IsFallback {
		t.Fatalf("expected ok, non-fallback result, got %+v", got)
	}
	if got.EventUID != "evt-1" {
		t.Errorf("EventUID = %q, want evt-1", got.EventUID)
	}
	if got.DeeplinkURL == "" || got.DeeplinkURLFull == "" {
		t.Errorf("expected both deeplink forms populated, got %+v", got)
	}
}

func TestResolve_FallsBackWithinPaddingWindow(t *testing.T) {
	store := openTestStore(t)
	start := time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC)
	seedLaneEvent(t, store, 1, start)

	after := start.Add(time.Hour).Add(2 * time.Minute)
	got, err := Resolve(context.Background(), store, emptyPrefs(), 1, after, 5, mapper.DefaultPriority)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !got.OK || !got.IsFallback {
		t.Fatalf("expected fallback result within padding window, got %+v", got)
	}
}

func TestResolve_NoResultPastPaddingWindow(t *testing.T) {
	store := openTestStore(t)
	start := time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC)
	seedLaneEvent(t, store, 1, start)

	after := start.Add(time.Hour).Add(time.Hour)
	got, err := Resolve(context.Background(), store, emptyPrefs(), 1, after, 5, mapper.DefaultPriority)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.OK {
		t.Fatalf("expected no result past padding window, got %+v", got)
	}
}

func TestResolve_UnknownLaneReturnsNotOK(t *testing.T) {
	store := openTestStore(t)
	got, err := Resolve(context.Background(), store, emptyPrefs(), 999, time.Now(), 5, mapper.DefaultPriority)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.OK {
		t.Fatalf("expected not-ok for unscheduled lane, got %+v", got)
	}
}

func TestResolveAdb_ReturnsDeeplinkDuringEvent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC)

	ev := catalog.Event{
		ID: "evt-1", ExternalID: "ext-1", PVID: "pv-1", Title: "Cup Final",
		StartUTC: start, StopUTC: start.Add(time.Hour),
		Playables: []catalog.Playable{
			{EventID: "evt-1", PlayableID: "p1", LogicalService: "espn_web", DeeplinkPlay: "espn://watch/p1", HTTPDeeplinkURL: "https://plus.espn.com/watch/p1"},
		},
	}
	if err := store.UpsertEvent(ctx, ev); err != nil {
		t.Fatalf("UpsertEvent: %v", err)
	}
	if err := store.ResetAdbLanes(ctx, "espn"); err != nil {
		t.Fatalf("ResetAdbLanes: %v", err)
	}
	al := catalog.AdbLane{ProviderCode: "espn", LaneNumber: 1, ChannelID: "espn01", EventID: "evt-1", StartUTC: start, StopUTC: start.Add(time.Hour)}
	if err := store.InsertAdbLane(ctx, al); err != nil {
		t.Fatalf("InsertAdbLane: %v", err)
	}

	serviceSet := map[string]bool{"espn_web": true}
	got, err := ResolveAdb(ctx, store, emptyPrefs(), "espn", 1, start.Add(10*time.Minute), serviceSet, mapper.DefaultPriority)
	if err != nil {
		t.Fatalf("ResolveAdb: %v", err)
	}
	if !got.OK || got.IsFallback {
		t.Fatalf("expected ok, non-fallback result, got %+v", got)
	}
	if got.Lane != "espn/1" {
		t.Errorf("Lane = %q, want espn/1", got.Lane)
	}
}

func TestResolveAdb_NoFallbackAfterEventEnds(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC)

	ev := catalog.Event{
		ID: "evt-1", ExternalID: "ext-1", PVID: "pv-1", Title: "Cup Final",
		StartUTC: start, StopUTC: start.Add(time.Hour),
		Playables: []catalog.Playable{
			{EventID: "evt-1", PlayableID: "p1", LogicalService: "espn_web"},
		},
	}
	if err := store.UpsertEvent(ctx, ev); err != nil {
		t.Fatalf("UpsertEvent: %v", err)
	}
	if err := store.ResetAdbLanes(ctx, "espn"); err != nil {
		t.Fatalf("ResetAdbLanes: %v", err)
	}
	al := catalog.AdbLane{ProviderCode: "espn", LaneNumber: 1, ChannelID: "espn01", EventID: "evt-1", StartUTC: start, StopUTC: start.Add(time.Hour)}
	if err := store.InsertAdbLane(ctx, al); err != nil {
		t.Fatalf("InsertAdbLane: %v", err)
	}

	serviceSet := map[string]bool{"espn_web": true}
	got, err := ResolveAdb(ctx, store, emptyPrefs(), "espn", 1, start.Add(2*time.Hour), serviceSet, mapper.DefaultPriority)
	if err != nil {
		t.Fatalf("ResolveAdb: %v", err)
	}
	if got.OK {
		t.Fatalf("expected no-fallback not-ok result after ADB slot ends, got %+v", got)
	}
}

func TestBuildStreamPlaylist_NoEndlistAndMonotonicSequence(t *testing.T) {
	t1 := time.Unix(1000*segmentDurationSeconds, 0).UTC()
	t2 := t1.Add(time.Duration(segmentDurationSeconds) * time.Second)

	p1 := BuildStreamPlaylist(t1)
	p2 := BuildStreamPlaylist(t2)

	if strings.Contains(p1, "EXT-X-ENDLIST") {
		t.Error("playlist must never include EXT-X-ENDLIST")
	}
	if !strings.Contains(p1, "#EXT-X-MEDIA-SEQUENCE:1000") {
		t.Errorf("expected media sequence 1000, got %q", p1)
	}
	if !strings.Contains(p2, "#EXT-X-MEDIA-SEQUENCE:1001") {
		t.Errorf("expected media sequence to advance, got %q", p2)
	}
}

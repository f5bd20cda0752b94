package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/logging"
)

type fakeIngester struct {
	code   string
	events []catalog.Event
}

func (f *fakeIngester) Code() string { return f.code }

func (f *fakeIngester) FetchEvents(ctx context.Context, src Source) ([]catalog.Event, error) {
	return f.events, nil
}

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ingest_test.db")
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

func TestRun_NormalizesDedupesAndUpserts(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	events := []catalog.Event{
		{
			ID: "e1", ExternalID: "ext-dup", PVID: "pv-1", Title: "Cup Final",
			Genres: []string{"Soccer"}, StartUTC: now, StopUTC: now.Add(time.Hour),
			LastSeenUTC: now.Add(-time.Minute),
		},
		{
			ID: "e1", ExternalID: "ext-dup", PVID: "pv-1", Title: "Cup Final",
			Genres: []string{"Soccer"}, StartUTC: now, StopUTC: now.Add(time.Hour),
			LastSeenUTC: now,
		},
		{
			ID: "e2", ExternalID: "ext-cooking", PVID: "pv-2", Title: "Cooking Show",
			Genres: []string{"Cooking"}, StartUTC: now, StopUTC: now.Add(time.Hour),
		},
		{
			ID: "e3", ExternalID: "ext-replay", PVID: "pv-3", Title: "Classic Game Replay",
			Genres: []string{"Basketball"}, StartUTC: now, StopUTC: now.Add(time.Hour),
		},
	}

	ing := &fakeIngester{code: "testprovider", events: events}
	res, err := Run(context.Background(), store, ing, Source{Now: now}, logging.New("ingest_test"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Fetched != 4 {
		t.Errorf("Fetched = %d, want 4", res.Fetched)
	}
	if res.DroppedNoSport != 1 {
		t.Errorf("DroppedNoSport = %d, want 1", res.DroppedNoSport)
	}
	if res.DroppedReplay != 1 {
		t.Errorf("DroppedReplay = %d, want 1", res.DroppedReplay)
	}
	if res.Deduplicated != 1 {
		t.Errorf("Deduplicated = %d, want 1", res.Deduplicated)
	}
	if res.Upserted != 1 {
		t.Errorf("Upserted = %d, want 1", res.Upserted)
	}

	window, err := store.WindowEvents(context.Background(), now, 1, 1)
	if err != nil {
		t.Fatalf("WindowEvents: %v", err)
	}
	if len(window) != 1 {
		t.Fatalf("expected exactly one surviving event, got %d", len(window))
	}
	if window[0].ExternalID != "ext-dup" {
		t.Errorf("surviving event external_id = %q, want ext-dup", window[0].ExternalID)
	}
}

func TestRun_RecomputesLogicalServiceAndRemapsGTI(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	if err := store.UpsertAmazonGTI(context.Background(), "amzn1.dv.gti.XXX", "aiv_peacock"); err != nil {
		t.Fatalf("UpsertAmazonGTI: %v", err)
	}

	events := []catalog.Event{
		{
			ID: "e1", ExternalID: "ext-1", PVID: "pv-1", Title: "Evening Match",
			Genres: []string{"Soccer"}, StartUTC: now, StopUTC: now.Add(time.Hour),
			Playables: []catalog.Playable{
				{
					PlayableID:   "p1",
					RawScheme:    "aiv",
					DeeplinkPlay: "aiv://aiv/detail?gti=amzn1.dv.gti.XXX",
					// Upstream-claimed value, which must never be trusted.
					LogicalService: "espn_plus",
				},
				{
					PlayableID:  "p2",
					RawScheme:   "https",
					PlayableURL: "https://www.peacocktv.com/watch/123",
				},
			},
		},
	}

	ing := &fakeIngester{code: "testprovider", events: events}
	if _, err := Run(context.Background(), store, ing, Source{Now: now}, logging.New("ingest_test")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, err := store.EventByID(context.Background(), "e1")
	if err != nil {
		t.Fatalf("EventByID: %v", err)
	}
	if stored == nil || len(stored.Playables) != 2 {
		t.Fatalf("stored event = %+v", stored)
	}
	for _, p := range stored.Playables {
		switch p.PlayableID {
		case "p1":
			if p.LogicalService != "aiv_peacock" {
				t.Errorf("p1 logical_service = %q, want aiv_peacock", p.LogicalService)
			}
		case "p2":
			if p.LogicalService != "peacock_web" {
				t.Errorf("p2 logical_service = %q, want peacock_web", p.LogicalService)
			}
		}
	}
}

func TestRegistry_BuildUnknownCodeErrors(t *testing.T) {
	r := NewRegistry()
	r.Register("espn", func() Ingester { return &fakeIngester{code: "espn"} })

	if _, err := r.Build("espn"); err != nil {
		t.Errorf("Build(espn): %v", err)
	}
	if _, err := r.Build("nope"); err == nil {
		t.Error("expected error building unknown provider code")
	}
}

package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/ingest"
	"github.com/fieldguide/dvrguide/internal/lanes"
	"github.com/fieldguide/dvrguide/internal/logging"
	"github.com/fieldguide/dvrguide/internal/mapper"
)

func testLogger() *logrus.Entry {
	return logging.New("orchestrator_test")
}

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "orchestrator_test.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return store
}

// fakeIngester hands back a fixed event set, satisfying ingest.Ingester.
type fakeIngester struct {
	code   string
	events []catalog.Event
	block  chan struct{} // when non-nil, FetchEvents waits on it
}

func (f fakeIngester) Code() string { return f.code }

func (f fakeIngester) FetchEvents(ctx context.Context, src ingest.Source) ([]catalog.Event, error) {
	if f.block != nil {
		<-f.block
	}
	return f.events, nil
}

func sampleEvent(now time.Time) catalog.Event {
	return catalog.Event{
		ID: "evt-orc-1", ExternalID: "ext-orc-1", PVID: "pv-orc-1", Title: "Derby Day",
		StartUTC: now.Add(time.Hour), StopUTC: now.Add(2 * time.Hour),
		Genres: []string{"Soccer"},
		Playables: []catalog.Playable{
			{EventID: "evt-orc-1", PlayableID: "p1", LogicalService: "espn_web", DeeplinkPlay: "espn://watch/p1", HTTPDeeplinkURL: "https://plus.espn.com/watch/p1"},
		},
	}
}

func testConfig(t *testing.T, store *catalog.Store, registry *ingest.Registry, now time.Time) Config {
	t.Helper()
	return Config{
		Store:                  store,
		Registry:               registry,
		OutDir:                 t.TempDir(),
		ResolverBaseURL:        "http://resolver.local:8730",
		DaysAhead:              7,
		LaneOptions:            lanes.Options{LaneCount: 2, LaneStartCh: 9000, DaysAhead: 7, PaddingMinutes: 5, PlaceholderBlockMinutes: 60, PlaceholderExtraDays: 1, DisplayPrefix: "Test Lane"},
		AdbOptions:             lanes.AdbOptions{DaysAhead: 7},
		ServicesForAdbProvider: mapper.ServicesForAdbProvider,
		DefaultPriority:        mapper.DefaultPriority,
		Now:                    func() time.Time { return now },
		Log:                    testLogger(),
	}
}

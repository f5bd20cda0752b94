package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/ingest"
)

func TestOrchestrator_RunFullPipeline(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	registry := ingest.NewRegistry()
	registry.Register("test", func() ingest.Ingester {
		return fakeIngester{code: "test", events: []catalog.Event{}}
	})

	cfg := testConfig(t, store, registry, now)
	cfg.Ingesters = []IngesterConfig{{Code: "test"}}

	orch := New(cfg, NewLogBuffer())
	if err := orch.Run(context.Background(), KindManual); err != nil {
		t.Fatalf("Run: %v", err)
	}

	manual, auto := orch.Status()
	if manual.Running {
		t.Error("manual.Running should be false after completion")
	}
	if manual.LastStatus != "ok" {
		t.Errorf("manual.LastStatus = %q, want ok", manual.LastStatus)
	}
	if manual.LastRunID == "" {
		t.Error("manual.LastRunID should be set")
	}
	if auto.LastStatus != "never" {
		t.Errorf("auto.LastStatus = %q, want never (untouched)", auto.LastStatus)
	}

	for _, name := range []string{fileDirectM3U, fileDirectXMLTV, fileLanesM3U, fileLanesXMLTV, fileAdbM3U, fileAdbXMLTV} {
		if _, err := os.Stat(filepath.Join(cfg.OutDir, name)); err != nil {
			t.Errorf("expected artifact %s to exist: %v", name, err)
		}
	}
}

func TestOrchestrator_RunWithEventsSchedulesLanes(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	registry := ingest.NewRegistry()
	ev := sampleEvent(now)
	registry.Register("test", func() ingest.Ingester {
		return fakeIngester{code: "test", events: []catalog.Event{ev}}
	})

	cfg := testConfig(t, store, registry, now)
	cfg.Ingesters = []IngesterConfig{{Code: "test"}}

	orch := New(cfg, NewLogBuffer())
	if err := orch.Run(context.Background(), KindManual); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lanesList, err := store.ListLanes(context.Background())
	if err != nil {
		t.Fatalf("ListLanes: %v", err)
	}
	if len(lanesList) != cfg.LaneOptions.LaneCount {
		t.Errorf("expected %d lanes created, got %d", cfg.LaneOptions.LaneCount, len(lanesList))
	}

	body, err := os.ReadFile(filepath.Join(cfg.OutDir, fileDirectM3U))
	if err != nil {
		t.Fatalf("read direct m3u: %v", err)
	}
	if len(body) == 0 {
		t.Error("expected non-empty direct m3u once an event was ingested")
	}
}

func TestOrchestrator_ConcurrentRunRejected(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()

	block := make(chan struct{})
	registry := ingest.NewRegistry()
	registry.Register("slow", func() ingest.Ingester {
		return fakeIngester{code: "slow", block: block}
	})

	cfg := testConfig(t, store, registry, now)
	cfg.Ingesters = []IngesterConfig{{Code: "slow"}}

	orch := New(cfg, NewLogBuffer())

	done := make(chan error, 1)
	go func() { done <- orch.Run(context.Background(), KindManual) }()

	deadline := time.Now().Add(time.Second)
	for {
		manual, _ := orch.Status()
		if manual.Running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the first run to start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := orch.Run(context.Background(), KindAuto); err != ErrAlreadyRunning {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first run returned error: %v", err)
	}
}

package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/ingest"
)

func TestParseHHMM(t *testing.T) {
	cases := []struct {
		in         string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		{"02:30", 2, 30, false},
		{"23:59", 23, 59, false},
		{"0:0", 0, 0, false},
		{"24:00", 0, 0, true},
		{"bogus", 0, 0, true},
		{"12", 0, 0, true},
	}
	for _, c := range cases {
		hour, minute, err := parseHHMM(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseHHMM(%q) expected error, got none", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseHHMM(%q) unexpected error: %v", c.in, err)
			continue
		}
		if hour != c.wantHour || minute != c.wantMinute {
			t.Errorf("parseHHMM(%q) = %d:%d, want %d:%d", c.in, hour, minute, c.wantHour, c.wantMinute)
		}
	}
}

func TestScheduler_FiresWithinGraceWindow(t *testing.T) {
	store := openTestStore(t)
	registry := ingest.NewRegistry()
	cfg := testConfig(t, store, registry, time.Now().UTC())
	orch := New(cfg, NewLogBuffer())

	sched, err := NewScheduler(orch, store, "UTC", testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	now := time.Now().UTC()
	ctx := context.Background()
	if err := store.SetPreference(ctx, catalog.PrefAutoRefreshEnabled, true); err != nil {
		t.Fatalf("SetPreference enabled: %v", err)
	}
	if err := store.SetPreference(ctx, catalog.PrefAutoRefreshTime, fmt.Sprintf("%02d:%02d", now.Hour(), now.Minute())); err != nil {
		t.Fatalf("SetPreference time: %v", err)
	}

	sched.maybeFire(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, auto := orch.Status()
		if auto.LastRunID != "" || auto.Running {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the scheduled auto refresh to start")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_SkipsWhenDisabled(t *testing.T) {
	store := openTestStore(t)
	registry := ingest.NewRegistry()
	cfg := testConfig(t, store, registry, time.Now().UTC())
	orch := New(cfg, NewLogBuffer())

	sched, err := NewScheduler(orch, store, "UTC", testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	sched.maybeFire(context.Background())
	time.Sleep(50 * time.Millisecond)

	_, auto := orch.Status()
	if auto.Running || auto.LastRunID != "" {
		t.Error("expected no auto run to fire while auto_refresh_enabled is unset/false")
	}
}

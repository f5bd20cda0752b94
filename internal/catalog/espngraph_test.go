package catalog

import (
	"context"
	"path/filepath"
	"testing"
)

func TestESPNGraphLookup_FallsBackToLocaleLess(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "espn_test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	if err := store.UpsertESPNGraphID(ctx, "ext-1", "", "espn-watch:abc123"); err != nil {
		t.Fatalf("UpsertESPNGraphID: %v", err)
	}

	got, err := store.ESPNGraphLookup(ctx, "ext-1", "en-US")
	if err != nil {
		t.Fatalf("ESPNGraphLookup: %v", err)
	}
	if got != "espn-watch:abc123" {
		t.Errorf("ESPNGraphLookup = %q, want locale-less fallback", got)
	}

	if err := store.UpsertESPNGraphID(ctx, "ext-1", "en-US", "espn-watch:specific"); err != nil {
		t.Fatalf("UpsertESPNGraphID specific: %v", err)
	}
	got, err = store.ESPNGraphLookup(ctx, "ext-1", "en-US")
	if err != nil {
		t.Fatalf("ESPNGraphLookup: %v", err)
	}
	if got != "espn-watch:specific" {
		t.Errorf("ESPNGraphLookup = %q, want the locale-specific entry", got)
	}

	missing, err := store.ESPNGraphLookup(ctx, "ext-missing", "en-US")
	if err != nil {
		t.Fatalf("ESPNGraphLookup missing: %v", err)
	}
	if missing != "" {
		t.Errorf("expected empty result for unknown external_id, got %q", missing)
	}
}

package filters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/logging"
	"github.com/fieldguide/dvrguide/internal/mapper"
)

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filters_test.db")
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

func seedEvent(t *testing.T, store *catalog.Store, start time.Time) {
	t.Helper()
	ev := catalog.Event{
		ID: "evt-1", ExternalID: "ext-1", PVID: "pv-1", Title: "Cup Final",
		StartUTC: start, StopUTC: start.Add(time.Hour),
		Classification: []catalog.Classification{{Type: "sport", Value: "Soccer"}, {Type: "league", Value: "MLS"}},
		Playables: []catalog.Playable{
			{EventID: "evt-1", PlayableID: "p1", LogicalService: "espn_web", DeeplinkPlay: "espn://watch/p1"},
			{EventID: "evt-1", PlayableID: "p2", LogicalService: "aiv_prime", DeeplinkPlay: "aiv://aiv/detail?gti=x"},
		},
	}
	if err := store.UpsertEvent(context.Background(), ev); err != nil {
		t.Fatalf("UpsertEvent: %v", err)
	}
}

func testServer(t *testing.T, store *catalog.Store) *Server {
	t.Helper()
	s := NewServer(store, mapper.DefaultPriority, logging.New("filters_test"))
	s.now = func() time.Time { return time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestHandleFilters_CountsServicesSportsAndLeagues(t *testing.T) {
	store := openTestStore(t)
	seedEvent(t, store, time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC))
	srv := testServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/filters", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp filtersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Services) != 2 {
		t.Errorf("services = %d, want 2", len(resp.Services))
	}
	if len(resp.Sports) != 1 || resp.Sports[0] != "Soccer" {
		t.Errorf("sports = %v, want [Soccer]", resp.Sports)
	}
	if len(resp.Leagues) != 1 || resp.Leagues[0] != "MLS" {
		t.Errorf("leagues = %v, want [MLS]", resp.Leagues)
	}
}

func TestHandlePutPreferences_PartialUpdateLeavesOtherFieldsAlone(t *testing.T) {
	store := openTestStore(t)
	srv := testServer(t, store)

	body := `{"amazon_penalty": true}`
	req := httptest.NewRequest(http.MethodPut, "/api/filters/preferences", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	body2 := `{"language_preference": "en"}`
	req2 := httptest.NewRequest(http.MethodPut, "/api/filters/preferences", strings.NewReader(body2))
	rec2 := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec2.Code, rec2.Body.String())
	}

	prefs, err := store.LoadPreferences(context.Background())
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	if !prefs.AmazonPenalty {
		t.Errorf("amazon_penalty lost after later partial update")
	}
	if prefs.LanguagePreference != "en" {
		t.Errorf("language_preference = %q, want en", prefs.LanguagePreference)
	}
}

func TestHandleSelectionExamples_ReturnsWinnerAndReason(t *testing.T) {
	store := openTestStore(t)
	seedEvent(t, store, time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC))
	srv := testServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/filters/selection-examples", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var examples []selectionExample
	if err := json.Unmarshal(rec.Body.Bytes(), &examples); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(examples) != 1 {
		t.Fatalf("examples = %d, want 1", len(examples))
	}
	if examples[0].WinningService == "" || examples[0].Reason == "" {
		t.Errorf("expected a winning service and reason, got %+v", examples[0])
	}
}

func TestHandleEventByID_404sWhenMissing(t *testing.T) {
	store := openTestStore(t)
	srv := testServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/events/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleProviderLanes_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	srv := testServer(t, store)

	body := `{"adb_enabled": true, "adb_lane_count": 3}`
	req := httptest.NewRequest(http.MethodPut, "/api/provider_lanes/espn", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/provider_lanes", nil)
	rec2 := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec2, req2)
	var lanes []catalog.ProviderLane
	if err := json.Unmarshal(rec2.Body.Bytes(), &lanes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(lanes) != 1 || lanes[0].ProviderCode != "espn" || lanes[0].AdbLaneCount != 3 {
		t.Errorf("lanes = %+v, want one espn/3", lanes)
	}
}

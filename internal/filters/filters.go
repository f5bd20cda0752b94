// Package filters implements the admin-facing preferences API:
// available-filter discovery, preference CRUD, service priority
// overrides, the selection-examples debuggability endpoint, provider-lane
// admin config, and the read-only events browser the admin UI's filter
// editor and events views call.
//
// The HTML filter editor itself is out of scope; this package
// only serves its JSON backing API.
package filters

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/deeplink"
	"github.com/fieldguide/dvrguide/internal/mapper"
)

// daysAheadForFilters bounds how far out "future events" reaches when
// computing available filters and selection examples: the same days-ahead
// horizon the lane scheduler uses by default, since a filter for an event
// that will never be scheduled isn't useful.
const daysAheadForFilters = 7

// Server is the filters/preferences HTTP surface.
type Server struct {
	store           *catalog.Store
	defaultPriority func(string) int
	now             func() time.Time
	log             *logrus.Entry
}

// NewServer builds a filters Server. now defaults to time.Now.
func NewServer(store *catalog.Store, defaultPriority func(string) int, log *logrus.Entry) *Server {
	return &Server{store: store, defaultPriority: defaultPriority, now: time.Now, log: log}
}

// Register adds the admin filters/preferences/events routes to an
// existing router.
func (s *Server) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.Timeout(20 * time.Second))

		g.Get("/api/filters", s.handleFilters)
		g.Get("/api/filters/preferences", s.handleGetPreferences)
		g.Put("/api/filters/preferences", s.handlePutPreferences)
		g.Get("/api/filters/priorities", s.handleGetPriorities)
		g.Put("/api/filters/priorities", s.handlePutPriorities)
		g.Get("/api/filters/selection-examples", s.handleSelectionExamples)

		g.Get("/api/provider_lanes", s.handleListProviderLanes)
		g.Put("/api/provider_lanes/{provider}", s.handlePutProviderLane)

		g.Get("/api/events", s.handleListEvents)
		g.Get("/api/events/stats", s.handleEventsStats)
		g.Get("/api/events/{id}", s.handleEventByID)
	})
}

// Routes returns a standalone chi router for the admin API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	s.Register(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}

// serviceCount is one row of the "available filters" provider listing.
type serviceCount struct {
	LogicalService string `json:"logical_service"`
	DisplayName    string `json:"display_name"`
	EventCount     int    `json:"event_count"`
}

// filtersResponse is the GET /api/filters payload: everything the admin
// filter editor needs to render its provider/sport/league pickers, with
// per-service event counts computed by scanning future events.
type filtersResponse struct {
	Services []serviceCount `json:"services"`
	Sports   []string       `json:"sports"`
	Leagues  []string       `json:"leagues"`
}

// handleFilters implements GET /api/filters.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.WindowEvents(r.Context(), s.now(), 0, daysAheadForFilters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "window_query_failed", err.Error())
		return
	}

	serviceCounts := map[string]int{}
	sports := map[string]bool{}
	leagues := map[string]bool{}
	for _, ev := range events {
		if sport := ev.Sport(); sport != "" {
			sports[sport] = true
		}
		if league := ev.League(); league != "" {
			leagues[league] = true
		}
		seen := map[string]bool{}
		for _, p := range ev.Playables {
			if seen[p.LogicalService] {
				continue
			}
			seen[p.LogicalService] = true
			serviceCounts[p.LogicalService]++
		}
	}

	resp := filtersResponse{
		Services: make([]serviceCount, 0, len(serviceCounts)),
		Sports:   sortedKeys(sports),
		Leagues:  sortedKeys(leagues),
	}
	for code, count := range serviceCounts {
		resp.Services = append(resp.Services, serviceCount{
			LogicalService: code,
			DisplayName:    mapper.DisplayName(code),
			EventCount:     count,
		})
	}
	sort.Slice(resp.Services, func(i, j int) bool { return resp.Services[i].LogicalService < resp.Services[j].LogicalService })

	writeJSON(w, http.StatusOK, resp)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// handleGetPreferences implements GET /api/filters/preferences.
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.LoadPreferences(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load_preferences_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// handlePutPreferences implements PUT /api/filters/preferences: a partial
// update, only the fields present in the request body are written (zero
// values for the rest are never used to clobber unrelated preferences).
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EnabledServices    *[]string       `json:"enabled_services"`
		DisabledSports     *[]string       `json:"disabled_sports"`
		DisabledLeagues    *[]string       `json:"disabled_leagues"`
		AmazonPenalty      *bool           `json:"amazon_penalty"`
		LanguagePreference *string         `json:"language_preference"`
		ServicePriorities  *map[string]int `json:"service_priorities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.LanguagePreference != nil {
		switch *req.LanguagePreference {
		case "en", "es", "both":
		default:
			writeError(w, http.StatusBadRequest, "bad_request", "language_preference must be en, es, or both")
			return
		}
	}

	ctx := r.Context()
	type kv struct {
		key   string
		value any
	}
	var writes []kv
	if req.EnabledServices != nil {
		writes = append(writes, kv{catalog.PrefEnabledServices, *req.EnabledServices})
	}
	if req.DisabledSports != nil {
		writes = append(writes, kv{catalog.PrefDisabledSports, *req.DisabledSports})
	}
	if req.DisabledLeagues != nil {
		writes = append(writes, kv{catalog.PrefDisabledLeagues, *req.DisabledLeagues})
	}
	if req.AmazonPenalty != nil {
		writes = append(writes, kv{catalog.PrefAmazonPenalty, *req.AmazonPenalty})
	}
	if req.LanguagePreference != nil {
		writes = append(writes, kv{catalog.PrefLanguagePreference, *req.LanguagePreference})
	}
	if req.ServicePriorities != nil {
		writes = append(writes, kv{catalog.PrefServicePriorities, *req.ServicePriorities})
	}
	for _, w2 := range writes {
		if err := s.store.SetPreference(ctx, w2.key, w2.value); err != nil {
			writeError(w, http.StatusInternalServerError, "save_failed", err.Error())
			return
		}
	}

	prefs, err := s.store.LoadPreferences(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load_preferences_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// handleGetPriorities implements GET /api/filters/priorities: the
// effective priority per known logical service, overlaying
// service_priorities overrides on the mapper's default table.
func (s *Server) handleGetPriorities(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.LoadPreferences(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load_preferences_failed", err.Error())
		return
	}
	events, err := s.store.WindowEvents(r.Context(), s.now(), 0, daysAheadForFilters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "window_query_failed", err.Error())
		return
	}
	seen := map[string]bool{}
	for _, ev := range events {
		for _, p := range ev.Playables {
			seen[p.LogicalService] = true
		}
	}

	type priorityRow struct {
		LogicalService string `json:"logical_service"`
		DisplayName    string `json:"display_name"`
		DefaultPriority int   `json:"default_priority"`
		Override        *int  `json:"override,omitempty"`
	}
	rows := make([]priorityRow, 0, len(seen))
	for code := range seen {
		row := priorityRow{
			LogicalService:  code,
			DisplayName:     mapper.DisplayName(code),
			DefaultPriority: s.defaultPriority(code),
		}
		if v, ok := prefs.ServicePriorities[code]; ok {
			row.Override = &v
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LogicalService < rows[j].LogicalService })
	writeJSON(w, http.StatusOK, rows)
}

// handlePutPriorities implements PUT /api/filters/priorities: replaces the
// entire service_priorities override map.
func (s *Server) handlePutPriorities(w http.ResponseWriter, r *http.Request) {
	var overrides map[string]int
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := s.store.SetPreference(r.Context(), catalog.PrefServicePriorities, overrides); err != nil {
		writeError(w, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, overrides)
}

// selectionExample is one row of the selection-examples debuggability
// payload: a sample event with the list of services available and the one
// that would win under current preferences, annotated with a human reason.
type selectionExample struct {
	EventID        string   `json:"event_id"`
	Title          string   `json:"title"`
	StartUTC       time.Time `json:"start_utc"`
	AvailableServices []string `json:"available_services"`
	WinningService string   `json:"winning_service,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// selectionExampleLimit caps the sample size returned by
// GET /api/filters/selection-examples so the admin UI gets a readable
// sample, not a full catalog dump.
const selectionExampleLimit = 50

// handleSelectionExamples implements GET /api/filters/selection-examples.
func (s *Server) handleSelectionExamples(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.LoadPreferences(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load_preferences_failed", err.Error())
		return
	}
	events, err := s.store.WindowEvents(r.Context(), s.now(), 0, daysAheadForFilters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "window_query_failed", err.Error())
		return
	}

	examples := make([]selectionExample, 0, len(events))
	for _, ev := range events {
		if len(ev.Playables) == 0 {
			continue
		}
		ex := selectionExample{EventID: ev.ID, Title: ev.Title, StartUTC: ev.StartUTC}
		for _, p := range ev.Playables {
			ex.AvailableServices = append(ex.AvailableServices, p.LogicalService)
		}
		filtered := deeplink.Filter(ev.Playables, prefs)
		if sel := deeplink.Select(filtered, prefs, s.defaultPriority); sel.Playable != nil {
			ex.WinningService = sel.Playable.LogicalService
			ex.Reason = sel.Reason
		}
		examples = append(examples, ex)
		if len(examples) >= selectionExampleLimit {
			break
		}
	}
	writeJSON(w, http.StatusOK, examples)
}

// handleListProviderLanes implements GET /api/provider_lanes.
func (s *Server) handleListProviderLanes(w http.ResponseWriter, r *http.Request) {
	lanes, err := s.store.ListProviderLanes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lanes)
}

// handlePutProviderLane implements PUT /api/provider_lanes/{provider}.
func (s *Server) handlePutProviderLane(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	var req struct {
		AdbEnabled   bool `json:"adb_enabled"`
		AdbLaneCount int  `json:"adb_lane_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	pl := catalog.ProviderLane{ProviderCode: provider, AdbEnabled: req.AdbEnabled, AdbLaneCount: req.AdbLaneCount}
	if err := s.store.UpsertProviderLane(r.Context(), pl); err != nil {
		writeError(w, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

// handleListEvents implements GET /api/events: the window query, optionally
// narrowed with ?days_back=&days_forward=.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	daysBack := intQueryParam(r, "days_back", 0)
	daysForward := intQueryParam(r, "days_forward", daysAheadForFilters)

	events, err := s.store.WindowEvents(r.Context(), s.now(), daysBack, daysForward)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "window_query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// eventsStats is the GET /api/events/stats payload: simple aggregate
// counts useful for the admin status page.
type eventsStats struct {
	TotalEvents     int            `json:"total_events"`
	WithPVID        int            `json:"with_pvid"`
	WithoutPVID     int            `json:"without_pvid"`
	BySport         map[string]int `json:"by_sport"`
	ByLogicalService map[string]int `json:"by_logical_service"`
}

// handleEventsStats implements GET /api/events/stats.
func (s *Server) handleEventsStats(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.WindowEvents(r.Context(), s.now(), 0, daysAheadForFilters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "window_query_failed", err.Error())
		return
	}
	stats := eventsStats{
		BySport:          map[string]int{},
		ByLogicalService: map[string]int{},
	}
	for _, ev := range events {
		stats.TotalEvents++
		if ev.PVID != "" {
			stats.WithPVID++
		} else {
			stats.WithoutPVID++
		}
		if sport := ev.Sport(); sport != "" {
			stats.BySport[sport]++
		}
		seen := map[string]bool{}
		for _, p := range ev.Playables {
			if seen[p.LogicalService] {
				continue
			}
			seen[p.LogicalService] = true
			stats.ByLogicalService[p.LogicalService]++
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleEventByID implements GET /api/events/{id}.
func (s *Server) handleEventByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, err := s.store.EventByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	if ev == nil {
		writeError(w, http.StatusNotFound, "not_found", "no event with that id")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func intQueryParam(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/mapper"
)

// PreferencesLoader loads the current, singleton user preferences.
type PreferencesLoader func(ctx context.Context) (catalog.Preferences, error)

// DetectorTrigger is called on every /lane/{lane}/stream.m3u8 hit; the
// concrete implementation (internal/detector) owns its own debounce state,
// so the resolver package never needs to import it.
type DetectorTrigger func(laneID int)

// AdbDetectorTrigger is the per-provider-lane equivalent of DetectorTrigger,
// called on every /adb/{provider}/{laneNumber}/stream.m3u8 hit. ADB lanes
// have no single numeric id, only a (provider, laneNumber) pair, so they
// get their own trigger signature rather than overloading DetectorTrigger.
type AdbDetectorTrigger func(providerCode string, laneNumber int)

// Server is the resolver HTTP surface: the "what's on" resolver, its convenience
// wrappers, and the stub HLS endpoints that bait the DVR into requesting a
// lane.
type Server struct {
	store          *catalog.Store
	prefs          PreferencesLoader
	paddingMinutes int
	segment        []byte
	onStreamHit    DetectorTrigger
	onAdbStreamHit AdbDetectorTrigger
	log            *logrus.Entry
}

// NewServer builds a resolver Server. segment may be nil if ffmpeg was
// unavailable at startup; the segment route then 404s.
func NewServer(store *catalog.Store, prefs PreferencesLoader, paddingMinutes int, segment []byte, onStreamHit DetectorTrigger, onAdbStreamHit AdbDetectorTrigger, log *logrus.Entry) *Server {
	return &Server{store: store, prefs: prefs, paddingMinutes: paddingMinutes, segment: segment, onStreamHit: onStreamHit, onAdbStreamHit: onAdbStreamHit, log: log}
}

// Register adds the resolver's routes to an existing router, so the
// resolver, orchestrator, and filters surfaces can share one listener
// without nested mounts.
func (s *Server) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.Timeout(20 * time.Second))

		g.Get("/whatson/{lane}", s.handleWhatsOn)
		g.Get("/api/lane/{lane}/deeplink", s.handleLaneDeeplink)
		g.Get("/api/lane/{lane}/launch", s.handleLaneLaunch)
		g.Get("/api/adb/lanes/{provider}/{laneNumber}/deeplink", s.handleAdbDeeplink)
		g.Get("/lane/{lane}/stream.m3u8", s.handleStreamPlaylist)
		g.Get("/lane/{lane}/segment.ts", s.handleSegment)
		g.Get("/adb/{provider}/{laneNumber}/stream.m3u8", s.handleAdbStreamPlaylist)
		g.Get("/adb/{provider}/{laneNumber}/segment.ts", s.handleSegment)
	})
}

// Routes returns a standalone chi router for the resolver's HTTP surface.
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

func parseAt(r *http.Request) time.Time {
	if v := r.URL.Query().Get("at"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// pickDeeplink returns the URL matching the requested deeplink_format
// ("scheme" default, or "http").
func pickDeeplink(w WhatsOn, format string) string {
	if format == "http" {
		return w.DeeplinkURLFull
	}
	return w.DeeplinkURL
}

// handleWhatsOn implements GET /whatson/{lane}, including the plain-text
// single-value variant used by detector clients.
func (s *Server) handleWhatsOn(w http.ResponseWriter, r *http.Request) {
	laneID, err := strconv.Atoi(chi.URLParam(r, "lane"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_lane", "lane must be an integer")
		return
	}
	prefs, err := s.prefs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "prefs_error", err.Error())
		return
	}

	result, err := Resolve(r.Context(), s.store, prefs, laneID, parseAt(r), s.paddingMinutes, mapper.DefaultPriority)
	if err != nil {
		s.log.WithError(err).WithField("lane", laneID).Error("resolve failed")
		writeError(w, http.StatusInternalServerError, "resolve_error", err.Error())
		return
	}

	if format := r.URL.Query().Get("format"); format == "txt" {
		param := r.URL.Query().Get("param")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		switch param {
		case "event_uid":
			fmt.Fprint(w, result.EventUID)
		case "deeplink_url_full":
			fmt.Fprint(w, result.DeeplinkURLFull)
		default:
			fmt.Fprint(w, result.DeeplinkURL)
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleLaneDeeplink implements GET /api/lane/{lane}/deeplink, a
// convenience wrapper around the same resolution with text/html/json
// rendering.
func (s *Server) handleLaneDeeplink(w http.ResponseWriter, r *http.Request) {
	laneID, err := strconv.Atoi(chi.URLParam(r, "lane"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_lane", "lane must be an integer")
		return
	}
	prefs, err := s.prefs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "prefs_error", err.Error())
		return
	}
	result, err := Resolve(r.Context(), s.store, prefs, laneID, parseAt(r), s.paddingMinutes, mapper.DefaultPriority)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "resolve_error", err.Error())
		return
	}

	link := pickDeeplink(result, r.URL.Query().Get("deeplink_format"))
	switch r.URL.Query().Get("format") {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, link)
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<a href="%s">%s</a>`, link, result.Title)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// handleLaneLaunch implements GET /api/lane/{lane}/launch: a 302 redirect
// to the resolved HTTP deeplink, or 404 with an empty body when nothing
// applies.
func (s *Server) handleLaneLaunch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	laneID, err := strconv.Atoi(chi.URLParam(r, "lane"))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	prefs, err := s.prefs(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	result, err := Resolve(r.Context(), s.store, prefs, laneID, parseAt(r), s.paddingMinutes, mapper.DefaultPriority)
	if err != nil || !result.OK {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	allowFallback := r.URL.Query().Get("allow_fallback") != "0"
	if result.IsFallback && !allowFallback {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	link := pickDeeplink(result, r.URL.Query().Get("deeplink_format"))
	if link == "" {
		link = result.DeeplinkURLFull
	}
	if link == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	http.Redirect(w, r, link, http.StatusFound)
}

// handleAdbDeeplink implements GET /api/adb/lanes/{provider}/{laneNumber}/deeplink.
func (s *Server) handleAdbDeeplink(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	laneNumber, err := strconv.Atoi(chi.URLParam(r, "laneNumber"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_lane", "lane number must be an integer")
		return
	}
	prefs, err := s.prefs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "prefs_error", err.Error())
		return
	}

	services := mapper.ServicesForAdbProvider(provider)
	serviceSet := make(map[string]bool, len(services))
	for _, svc := range services {
		serviceSet[svc] = true
	}

	result, err := ResolveAdb(r.Context(), s.store, prefs, provider, laneNumber, parseAt(r), serviceSet, mapper.DefaultPriority)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "resolve_error", err.Error())
		return
	}

	switch r.URL.Query().Get("format") {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, pickDeeplink(result, r.URL.Query().Get("deeplink_format")))
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// handleStreamPlaylist implements GET /lane/{lane}/stream.m3u8: the
// never-ending stub playlist that baits the DVR into polling, spawning the
// detector on every hit.
func (s *Server) handleStreamPlaylist(w http.ResponseWriter, r *http.Request) {
	laneID, err := strconv.Atoi(chi.URLParam(r, "lane"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_lane", "lane must be an integer")
		return
	}

	if s.onStreamHit != nil {
		s.onStreamHit(laneID)
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprint(w, BuildStreamPlaylist(time.Now().UTC()))
}

// handleAdbStreamPlaylist is the per-provider-lane counterpart of
// handleStreamPlaylist: the channel M3U emitted for ADB lanes points here
// rather than at a direct deeplink, per the same "lanes point to the
// resolver/stub HLS" rule applied to per-provider lanes. It
// shares the same rolling playlist and segment bytes as generic lanes since
// the DVR only needs a pollable target to bait the detector, not a
// provider-distinguished stream.
func (s *Server) handleAdbStreamPlaylist(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	laneNumber, err := strconv.Atoi(chi.URLParam(r, "laneNumber"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_lane", "lane number must be an integer")
		return
	}

	if s.onAdbStreamHit != nil {
		s.onAdbStreamHit(provider, laneNumber)
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprint(w, BuildStreamPlaylist(time.Now().UTC()))
}

// handleSegment implements GET /lane/{lane}/segment.ts. 404s when ffmpeg
// was unavailable at startup.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	if len(s.segment) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(s.segment) //nolint:errcheck
}

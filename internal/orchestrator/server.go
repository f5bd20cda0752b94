package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

// Server is the orchestrator's HTTP surface: refresh triggers, run status, the SSE log
// stream, and the Prometheus /metrics endpoint.
type Server struct {
	orch  *Orchestrator
	store *catalog.Store
	log   *logrus.Entry
}

// NewServer builds an orchestrator Server.
func NewServer(orch *Orchestrator, store *catalog.Store, log *logrus.Entry) *Server {
	return &Server{orch: orch, store: store, log: log}
}

// Register adds the orchestrator's routes to an existing router. The SSE
// log stream stays outside the timeout group: it is a long-lived
// connection by design and keeps itself alive with heartbeats.
func (s *Server) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.Timeout(20 * time.Second))

		g.Post("/api/refresh", s.handleTriggerRefresh)
		g.Get("/api/status", s.handleStatus)
		g.Get("/api/auto-refresh", s.handleGetAutoRefresh)
		g.Put("/api/auto-refresh", s.handlePutAutoRefresh)
		g.Handle("/metrics", promhttp.HandlerFor(s.orch.Metrics().registry, promhttp.HandlerOpts{}))
	})
	r.Get("/api/logs/stream", s.handleLogStream)
}

// Routes returns a standalone chi router for the orchestrator's HTTP surface.
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

// handleTriggerRefresh implements POST /api/refresh: starts a manual run in
// the background and returns immediately; progress is polled via
// /api/status.
func (s *Server) handleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	manual, auto := s.orch.Status()
	if manual.Running || auto.Running {
		writeError(w, http.StatusConflict, "already_running", "a refresh is already in progress")
		return
	}
	// The run outlives this request; r.Context() dies when the handler
	// returns, so the pipeline gets its own context.
	go func() {
		if err := s.orch.Run(context.Background(), KindManual); err != nil && err != ErrAlreadyRunning {
			s.log.WithError(err).Warn("manual refresh run failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// handleStatus implements GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	manual, auto := s.orch.Status()
	writeJSON(w, http.StatusOK, map[string]RunStatus{"manual": manual, "auto": auto})
}

// handleGetAutoRefresh implements GET /api/auto-refresh: the current
// auto_refresh_enabled/auto_refresh_time preference values.
func (s *Server) handleGetAutoRefresh(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.LoadPreferences(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load_preferences_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": prefs.AutoRefreshEnabled,
		"time":    prefs.AutoRefreshTime,
	})
}

type autoRefreshRequest struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"`
}

// handlePutAutoRefresh implements PUT /api/auto-refresh.
func (s *Server) handlePutAutoRefresh(w http.ResponseWriter, r *http.Request) {
	var req autoRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Time != "" {
		if _, _, err := parseHHMM(req.Time); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}

	ctx := r.Context()
	if err := s.store.SetPreference(ctx, catalog.PrefAutoRefreshEnabled, req.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	if req.Time != "" {
		if err := s.store.SetPreference(ctx, catalog.PrefAutoRefreshTime, req.Time); err != nil {
			writeError(w, http.StatusInternalServerError, "save_failed", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, req)
}

// handleLogStream implements GET /api/logs/stream: a Server-Sent Events
// feed of the bounded log ring, with a heartbeat comment every 15s so idle
// connections don't look dead to a proxy. A client reconnecting
// with ?since=N resumes from that sequence id rather than replaying
// everything still buffered.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support flushing")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var lastSeq int64
	if v := r.URL.Query().Get("since"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			lastSeq = n
		}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, line := range s.orch.logBuffer.Since(lastSeq) {
				fmt.Fprintf(w, "id: %d\ndata: %s\n\n", line.Seq, line.Text)
				lastSeq = line.Seq
			}
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

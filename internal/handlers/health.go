// Package handlers provides shared HTTP handler functions for dvrguide.
//
// Two endpoints are defined:
//
//	GET /healthz  - liveness probe. Always 200 if the process is running.
//	GET /ready    - readiness probe. Checks the catalog store connectivity.
//	              Returns 200 {"status":"ok"} when healthy.
//	              Returns 503 {"status":"degraded"} when the store is unreachable.
//
// Mount these early; they never require authentication.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Liveness is a GET /healthz handler. Always 200 as long as the process runs.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Pinger is the interface used by Readiness to check the catalog store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Readiness returns a GET /ready handler that pings the given store.
func Readiness(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		degraded := false

		if store != nil {
			if err := store.PingContext(ctx); err != nil {
				checks["catalog"] = "error: " + err.Error()
				degraded = true
			} else {
				checks["catalog"] = "ok"
			}
		}

		status := "ok"
		code := http.StatusOK
		if degraded {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, healthResponse{Status: status, Checks: checks})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleHealthz responds to liveness probe requests. The tracker is always
// in-process, so liveness only fails when the process itself is wedged.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed checks.
// Memory-only deployments (no DB_DSN) skip the database probe.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error {
			if h.db == nil {
				return nil
			}
			return h.db.PingContext(r.Context())
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports service configuration and uptime alongside the
// tracker counters.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := h.tracker.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"channel":        h.cfg.TwitchChannel,
		"poll_interval":  h.cfg.PollInterval.String(),
		"timezone":       h.cfg.Timezone.String(),
		"db_mirror":      h.db != nil,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"watching_count": st.Stats.Watching,
		"left_count":     st.Stats.Left,
		"history_count":  st.Stats.History,
	})
}

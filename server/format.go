package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// timeLayout is the human-facing timestamp form used across the API and
// dashboard. Instants are stored UTC and rendered in the configured zone
// only here, at the boundary.
const timeLayout = "2006-01-02 15:04:05"

func (h *Handlers) formatTime(t time.Time) string {
	return t.In(h.cfg.Timezone).Format(timeLayout)
}

func (h *Handlers) formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return h.formatTime(*t)
}

// formatDuration renders a watch duration as "0h 1m 5s". A nil duration
// (unknown, e.g. an out-of-order part) renders as "unknown".
func formatDuration(d *time.Duration) string {
	if d == nil {
		return "unknown"
	}
	secs := int(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs%3600)/60, secs%60)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("err", err))
	}
}

package server

import (
	"net/http"
	"time"

	"github.com/wrenolds/lurkwatch/tracker"
)

type watchingUser struct {
	Username string `json:"username"`
	JoinTime string `json:"join_time"`
	Method   string `json:"method"`
	Watching string `json:"watching_for"`
}

type leftUser struct {
	Username  string `json:"username"`
	JoinTime  string `json:"join_time"`
	LeaveTime string `json:"leave_time"`
	Duration  string `json:"duration"`
}

type historyItem struct {
	Username  string `json:"username"`
	Action    string `json:"action"`
	Method    string `json:"method"`
	JoinTime  string `json:"join_time"`
	LeaveTime string `json:"leave_time,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// HandleWatching lists viewers currently tracked as present.
func (h *Handlers) HandleWatching(w http.ResponseWriter, r *http.Request) {
	st := h.tracker.Snapshot()
	now := time.Now().UTC()
	users := make([]watchingUser, 0, len(st.Current))
	for _, v := range st.Current {
		d := now.Sub(v.JoinedAt)
		users = append(users, watchingUser{
			Username: v.Username,
			JoinTime: h.formatTime(v.JoinedAt),
			Method:   string(v.Method),
			Watching: formatDuration(&d),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(users),
		"users":     users,
		"timestamp": h.formatTime(now),
	})
}

// HandleLeft lists viewers that departed, most recent last.
func (h *Handlers) HandleLeft(w http.ResponseWriter, r *http.Request) {
	st := h.tracker.Snapshot()
	users := make([]leftUser, 0, len(st.RecentlyLeft))
	for _, v := range st.RecentlyLeft {
		users = append(users, leftUser{
			Username:  v.Username,
			JoinTime:  h.formatTime(v.JoinedAt),
			LeaveTime: h.formatTimePtr(v.LeftAt),
			Duration:  formatDuration(v.Duration),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(users),
		"users":     users,
		"timestamp": h.formatTime(time.Now().UTC()),
	})
}

// HandleHistory returns the chronological transition log.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	st := h.tracker.Snapshot()
	items := make([]historyItem, 0, len(st.History))
	for _, e := range st.History {
		item := historyItem{
			Username: e.Username,
			Action:   string(e.Action),
			Method:   string(e.Method),
			JoinTime: h.formatTime(e.JoinedAt),
		}
		if e.Action == tracker.ActionLeft {
			item.LeaveTime = h.formatTimePtr(e.LeftAt)
			item.Duration = formatDuration(e.Duration)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(items),
		"history":   items,
		"timestamp": h.formatTime(time.Now().UTC()),
	})
}

// HandleStats returns the aggregate counters.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	st := h.tracker.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"watching_count": st.Stats.Watching,
		"left_count":     st.Stats.Left,
		"history_count":  st.Stats.History,
		"timestamp":      h.formatTime(time.Now().UTC()),
	})
}

// HandleLogs returns the recent in-memory log lines.
func (h *Handlers) HandleLogs(w http.ResponseWriter, r *http.Request) {
	var lines []string
	if h.ring != nil {
		lines = h.ring.Lines()
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(lines),
		"logs":  lines,
	})
}

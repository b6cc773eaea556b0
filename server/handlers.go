// Package server exposes the HTTP API handlers.
package server

import (
	"database/sql"
	"time"

	"github.com/wrenolds/lurkwatch/config"
	"github.com/wrenolds/lurkwatch/ringlog"
	"github.com/wrenolds/lurkwatch/tracker"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	tracker *tracker.Tracker
	db      *sql.DB // nil when the persistence mirror is disabled
	ring    *ringlog.Buffer
	cfg     *config.Config
	started time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// db may be nil; health checks then skip the database probe.
func NewHandlers(tr *tracker.Tracker, db *sql.DB, ring *ringlog.Buffer, cfg *config.Config) *Handlers {
	return &Handlers{
		tracker: tr,
		db:      db,
		ring:    ring,
		cfg:     cfg,
		started: time.Now().UTC(),
	}
}

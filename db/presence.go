package db

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/wrenolds/lurkwatch/tracker"
)

// Mirror writes tracker transitions into Postgres. It plugs into the tracker
// as its Observer; writes happen on a separate goroutine so a slow or down
// database never blocks ingestion or corrupts in-memory state.
type Mirror struct {
	DB      *sql.DB
	Channel string
	// Timeout bounds each write. Zero means 5s.
	Timeout time.Duration
}

func (m *Mirror) timeout() time.Duration {
	if m.Timeout > 0 {
		return m.Timeout
	}
	return 5 * time.Second
}

// Observe is the tracker Observer hook. Best effort: failures are logged and
// dropped.
func (m *Mirror) Observe(e tracker.HistoryEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout())
		defer cancel()
		if err := m.Record(ctx, e); err != nil {
			slog.Warn("db mirror: write failed",
				slog.String("user", e.Username),
				slog.String("action", string(e.Action)),
				slog.Any("err", err))
		}
	}()
}

// Record persists one transition: an append-only presence_events row always,
// plus a viewer_sessions upsert when the transition closes a session.
func (m *Mirror) Record(ctx context.Context, e tracker.HistoryEntry) error {
	var leftAt any
	var durationSecs any
	if e.LeftAt != nil {
		leftAt = e.LeftAt.UTC()
	}
	if e.Duration != nil {
		durationSecs = e.Duration.Seconds()
	}
	_, err := m.DB.ExecContext(ctx,
		`INSERT INTO presence_events (channel, username, action, method, joined_at, left_at, duration_seconds)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.Channel, e.Username, string(e.Action), string(e.Method), e.JoinedAt.UTC(), leftAt, durationSecs)
	if err != nil {
		return err
	}
	if e.Action != tracker.ActionLeft {
		return nil
	}
	_, err = m.DB.ExecContext(ctx,
		`INSERT INTO viewer_sessions (channel, username, joined_at, left_at, duration_seconds, method)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (channel, username, joined_at) DO UPDATE SET
		   left_at=EXCLUDED.left_at,
		   duration_seconds=EXCLUDED.duration_seconds`,
		m.Channel, e.Username, e.JoinedAt.UTC(), leftAt, durationSecs, string(e.Method))
	return err
}

// SessionCount returns how many closed sessions are stored for the channel.
func (m *Mirror) SessionCount(ctx context.Context) (int, error) {
	var n int
	err := m.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM viewer_sessions WHERE channel=$1`, m.Channel).Scan(&n)
	return n, err
}

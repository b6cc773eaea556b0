// Package poll drives the snapshot side of presence tracking: a ticker loop
// that fetches the Helix chatters list for the channel and feeds each full
// listing into the tracker as a snapshot. Each cycle also checks the recent
// followers page so a fresh follow counts as an arrival.
package poll

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/wrenolds/lurkwatch/telemetry"
	"github.com/wrenolds/lurkwatch/tracker"
	"github.com/wrenolds/lurkwatch/twitchapi"
)

// ChattersSource is the slice of the Helix client the poller needs; tests
// substitute a stub.
type ChattersSource interface {
	GetUserID(ctx context.Context, login string) (string, error)
	GetStreams(ctx context.Context, login string) ([]twitchapi.StreamMeta, error)
	GetChatters(ctx context.Context, broadcasterID, moderatorID string) ([]string, error)
	GetRecentFollowers(ctx context.Context, broadcasterID string) ([]twitchapi.Follower, error)
}

// Poller periodically snapshots the channel's chatters list into the tracker.
type Poller struct {
	Source   ChattersSource
	Tracker  *tracker.Tracker
	Channel  string
	Interval time.Duration

	// RequireLive skips chatters fetches while the stream is offline, which
	// keeps lurker records from accumulating between streams. Default off:
	// the chatters endpoint works regardless of live status.
	RequireLive bool

	// Limiter caps Helix request bursts across cycles. Optional; a nil
	// limiter means no cap beyond the tick interval itself.
	Limiter *rate.Limiter

	// Now is overridable for tests.
	Now func() time.Time

	broadcasterID string
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func (p *Poller) wait(ctx context.Context) error {
	if p.Limiter == nil {
		return nil
	}
	return p.Limiter.Wait(ctx)
}

// resolveBroadcaster caches the channel's user id after the first lookup.
func (p *Poller) resolveBroadcaster(ctx context.Context) (string, error) {
	if p.broadcasterID != "" {
		return p.broadcasterID, nil
	}
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	id, err := p.Source.GetUserID(ctx, p.Channel)
	if err != nil {
		return "", err
	}
	p.broadcasterID = id
	return id, nil
}

// Cycle runs one poll: fetch the chatters list and ingest it as a snapshot.
// Transport errors are returned without touching the tracker, so a flaky
// Helix call never fabricates a mass departure.
func (p *Poller) Cycle(ctx context.Context) error {
	start := time.Now()
	telemetry.IncPollCycles()
	defer func() { telemetry.ObservePollDuration(time.Since(start)) }()

	broadcasterID, err := p.resolveBroadcaster(ctx)
	if err != nil {
		telemetry.IncPollFailures()
		return err
	}

	if p.RequireLive {
		if err := p.wait(ctx); err != nil {
			return err
		}
		streams, err := p.Source.GetStreams(ctx, p.Channel)
		if err != nil {
			telemetry.IncPollFailures()
			return err
		}
		if len(streams) == 0 {
			slog.Debug("poll: channel offline; skipping chatters fetch", slog.String("channel", p.Channel))
			return nil
		}
	}

	if err := p.wait(ctx); err != nil {
		return err
	}
	chatters, err := p.Source.GetChatters(ctx, broadcasterID, "")
	if err != nil {
		telemetry.IncPollFailures()
		return err
	}

	// Recent follows are a third arrival signal: someone who just followed
	// is treated as present even before the chatters list picks them up.
	// The fetch needs the moderator:read:followers grant, so a failure here
	// only skips the signal for this cycle.
	if err := p.wait(ctx); err != nil {
		return err
	}
	followers, err := p.Source.GetRecentFollowers(ctx, broadcasterID)
	if err != nil {
		slog.Debug("poll: followers fetch failed; skipping follow signal", slog.Any("err", err))
		followers = nil
	}
	for _, f := range followers {
		p.Tracker.IngestEvent(f.Name, tracker.EventFollow, p.now())
		// Folding the follower into the observed set keeps them out of
		// this cycle's departure diff.
		chatters = append(chatters, f.Name)
	}

	arrived, departed := p.Tracker.IngestSnapshot(chatters, p.now())
	if len(arrived) > 0 || len(departed) > 0 {
		slog.Info("poll: snapshot applied",
			slog.String("channel", p.Channel),
			slog.Int("chatters", len(chatters)),
			slog.Int("arrived", len(arrived)),
			slog.Int("departed", len(departed)))
	} else {
		slog.Debug("poll: snapshot unchanged", slog.String("channel", p.Channel), slog.Int("chatters", len(chatters)))
	}
	return nil
}

// Run polls once immediately and then on every tick until ctx is canceled.
// It returns only after the loop has fully quiesced; no snapshot is ingested
// once cancellation is observed.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	slog.Info("poll: started", slog.String("channel", p.Channel), slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	if err := p.Cycle(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("poll: cycle failed", slog.Any("err", err))
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("poll: stopped", slog.String("channel", p.Channel))
			return
		case <-ticker.C:
			if err := p.Cycle(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("poll: cycle failed", slog.Any("err", err))
			}
		}
	}
}

// Package chat feeds IRC membership and message events from the channel's
// Twitch chat into the presence tracker.
package chat

import (
	"context"
	"log/slog"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/wrenolds/lurkwatch/telemetry"
	"github.com/wrenolds/lurkwatch/tracker"
)

// Listener connects to the channel's IRC chat and translates JOIN/PART and
// chat messages into tracker events. JOIN/PART delivery requires the
// membership capability; Twitch batches these for large channels, so the
// poller remains the authoritative snapshot source.
type Listener struct {
	Channel     string
	BotUsername string
	// OAuthToken is the bot user's chat token ("oauth:..." form). Empty means
	// connect anonymously, which still receives JOIN/PART and messages.
	OAuthToken string
	Tracker    *tracker.Tracker

	// Now is overridable for tests.
	Now func() time.Time
}

func (l *Listener) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

func (l *Listener) handleEvent(username string, kind tracker.EventKind) {
	telemetry.IncChatEvents()
	outcome := l.Tracker.IngestEvent(username, kind, l.now())
	switch outcome {
	case tracker.OutcomeCreated:
		slog.Info("chat: viewer detected",
			slog.String("user", username),
			slog.String("via", kind.String()),
			slog.String("channel", l.Channel))
	case tracker.OutcomeDeparted:
		slog.Info("chat: viewer left",
			slog.String("user", username),
			slog.String("channel", l.Channel))
	case tracker.OutcomeExcluded:
		slog.Debug("chat: bot ignored", slog.String("user", username))
	}
}

// messageLogin picks the identity for a chat message. Display names can be
// localized (e.g. CJK) and then do not fold back to the login that JOIN,
// PART, and the chatters poll report, so the login is the only key that
// keeps all three signals pointing at one record.
func messageLogin(m twitch.PrivateMessage) string {
	return m.User.Name
}

// Run connects and blocks until ctx is canceled or the connection fails
// permanently. Reconnects are handled inside the IRC client.
func (l *Listener) Run(ctx context.Context) error {
	if l.Channel == "" {
		slog.Info("chat: no channel configured; listener disabled")
		return nil
	}

	var client *twitch.Client
	if l.OAuthToken == "" {
		client = twitch.NewAnonymousClient()
		slog.Info("chat: connecting anonymously", slog.String("channel", l.Channel))
	} else {
		client = twitch.NewClient(l.BotUsername, l.OAuthToken)
		slog.Info("chat: connecting", slog.String("channel", l.Channel), slog.String("bot", l.BotUsername))
	}
	client.Capabilities = []string{twitch.TagsCapability, twitch.CommandsCapability, twitch.MembershipCapability}

	client.OnUserJoinMessage(func(m twitch.UserJoinMessage) {
		l.handleEvent(m.User, tracker.EventJoin)
	})
	client.OnUserPartMessage(func(m twitch.UserPartMessage) {
		l.handleEvent(m.User, tracker.EventPart)
	})
	client.OnPrivateMessage(func(m twitch.PrivateMessage) {
		l.handleEvent(messageLogin(m), tracker.EventMessage)
	})
	client.OnConnect(func() {
		slog.Info("chat: connected", slog.String("channel", l.Channel))
	})

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := client.Disconnect(); err != nil {
			slog.Debug("chat: disconnect", slog.Any("err", err))
		}
		close(done)
	}()

	client.Join(l.Channel)
	err := client.Connect()
	if ctx.Err() != nil {
		<-done
		return nil
	}
	if err != nil {
		slog.Error("chat: connection failed", slog.Any("err", err))
	}
	return err
}

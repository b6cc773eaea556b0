// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (e.g., Twitch chat), use ValidateChatReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultBots is the exclusion roster applied when EXCLUDED_BOTS is unset:
// the common moderation/overlay bots that sit in every chat.
var DefaultBots = []string{
	"streamelements",
	"streamlabs",
	"nightbot",
	"moobot",
	"fossabot",
	"wizebot",
	"deepbot",
}

type Config struct {
	// Twitch
	TwitchChannel      string
	TwitchBotUsername  string
	TwitchOAuthToken   string
	TwitchClientID     string
	TwitchClientSecret string

	// Presence tracking
	PollInterval time.Duration
	ExcludedBots []string
	LogArrivals  bool
	HistoryCap   int
	Timezone     *time.Location

	// HTTP
	HTTPAddr string

	// Database (optional; empty disables the persistence mirror)
	DBDsn string
}

// Load reads environment variables and applies defaults. It doesn't fail if
// Twitch creds are missing; use ValidateChatReady() when you require the IRC
// listener with an authenticated bot. Missing optional variables disable
// features (e.g., DB mirror).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")

	cfg.PollInterval = 30 * time.Second
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL (duration): %q", v)
		}
		cfg.PollInterval = d
	}

	cfg.ExcludedBots = DefaultBots
	if v, ok := os.LookupEnv("EXCLUDED_BOTS"); ok {
		cfg.ExcludedBots = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.ExcludedBots = append(cfg.ExcludedBots, b)
			}
		}
	}

	cfg.LogArrivals = true
	if v := os.Getenv("LOG_ARRIVALS"); v != "" {
		cfg.LogArrivals = v == "1" || strings.EqualFold(v, "true")
	}

	cfg.HistoryCap = 1000
	if v := os.Getenv("HISTORY_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid HISTORY_CAP: %q", v)
		}
		cfg.HistoryCap = n
	}

	// The timezone only affects how timestamps render at the API boundary;
	// internal instants stay UTC.
	tz := os.Getenv("TIMEZONE")
	if tz == "" {
		tz = "America/Santiago"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}
	cfg.Timezone = loc

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.DBDsn = os.Getenv("DB_DSN")

	return cfg, nil
}

// ValidateChatReady checks required fields for the authenticated IRC listener.
// The listener can also run anonymously (read-only) without these.
func (c *Config) ValidateChatReady() error {
	if c.TwitchChannel == "" || c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	return nil
}

// ValidatePollReady checks required fields for the Helix chatters poller.
func (c *Config) ValidatePollReady() error {
	if c.TwitchChannel == "" || c.TwitchClientID == "" || c.TwitchClientSecret == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET")
	}
	return nil
}

// Command lurkwatch tracks who is watching a Twitch channel. It:
//   - Loads configuration and initializes structured logging.
//   - Optionally connects to Postgres and runs idempotent migrations for the
//     presence mirror.
//   - Starts the Helix chatters poller and the IRC listener, both feeding the
//     in-memory presence tracker.
//   - Exposes an HTTP server with the presence API, /healthz, /readyz,
//     /status, /metrics, and the embedded dashboard.
//
// Shutdown is graceful on SIGINT/SIGTERM: sources quiesce before exit.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/joho/godotenv"
	"github.com/wrenolds/lurkwatch/chat"
	"github.com/wrenolds/lurkwatch/config"
	"github.com/wrenolds/lurkwatch/db"
	"github.com/wrenolds/lurkwatch/logging"
	"github.com/wrenolds/lurkwatch/poll"
	"github.com/wrenolds/lurkwatch/ringlog"
	"github.com/wrenolds/lurkwatch/server"
	"github.com/wrenolds/lurkwatch/telemetry"
	"github.com/wrenolds/lurkwatch/tracker"
	"github.com/wrenolds/lurkwatch/twitchapi"
)

// recentLogLines is the size of the in-memory buffer behind /api/logs.
const recentLogLines = 50

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	ring := ringlog.New(recentLogLines)
	logging.Setup(ring)

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("lurkwatch", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Optional persistence mirror. No DSN means memory-only mode.
	var mirror *db.Mirror
	if cfg.DBDsn != "" {
		conn, err := db.Connect(cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := conn.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()

		// Dual migration system: versioned migrations first, embedded SQL as
		// fallback for deployments without the migration files on disk.
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.RunMigrations(conn); err != nil {
			slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
				slog.Any("err", err),
				slog.String("component", "db_migrate"))
			if err := db.Migrate(context.Background(), conn); err != nil {
				slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
				os.Exit(1)
			}
		}
		mirror = &db.Mirror{DB: conn, Channel: cfg.TwitchChannel}
	} else {
		slog.Info("DB_DSN not set; presence mirror disabled")
	}

	// Presence tracker, with the mirror observing every transition.
	opts := tracker.Options{
		Bots:        cfg.ExcludedBots,
		LogArrivals: cfg.LogArrivals,
		HistoryCap:  cfg.HistoryCap,
	}
	if mirror != nil {
		opts.Observer = mirror.Observe
	}
	tr := tracker.New(opts)

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Helix chatters poller
	if err := cfg.ValidatePollReady(); err == nil {
		helix := &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			ClientID:       cfg.TwitchClientID,
		}
		poller := &poll.Poller{
			Source:   helix,
			Tracker:  tr,
			Channel:  cfg.TwitchChannel,
			Interval: cfg.PollInterval,
			Limiter:  rate.NewLimiter(rate.Every(time.Second), 3),
		}
		go poller.Run(ctx)
	} else {
		slog.Info("chatters poller disabled", slog.Any("reason", err))
	}

	// IRC listener (anonymous when no bot token is configured)
	if cfg.TwitchChannel != "" {
		listener := &chat.Listener{
			Channel:     cfg.TwitchChannel,
			BotUsername: cfg.TwitchBotUsername,
			OAuthToken:  cfg.TwitchOAuthToken,
			Tracker:     tr,
		}
		go func() {
			if err := listener.Run(ctx); err != nil {
				slog.Error("chat listener exited with error", slog.Any("err", err))
			}
		}()
	} else {
		slog.Info("chat listener disabled (TWITCH_CHANNEL empty)")
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (presence API, health, status, metrics, dashboard)
	var handlers *server.Handlers
	if mirror != nil {
		handlers = server.NewHandlers(tr, mirror.DB, ring, cfg)
	} else {
		handlers = server.NewHandlers(tr, nil, ring, cfg)
	}
	go func() {
		if err := server.Start(ctx, handlers, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}

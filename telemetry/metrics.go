// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	Arrivals          prometheus.Counter
	Departures        prometheus.Counter
	OrderingAnomalies prometheus.Counter
	PollCycles        prometheus.Counter
	PollFailures      prometheus.Counter
	ChatEvents        prometheus.Counter

	// Histograms (seconds)
	PollDuration prometheus.Observer

	// Gauges
	WatchingGauge prometheus.Gauge
)

// Init registers metrics (idempotent). Packages that record metrics go
// through the nil-guarded helpers below so unit tests can run without Init.
func Init() {
	once.Do(func() {
		Arrivals = promauto.NewCounter(prometheus.CounterOpts{Name: "presence_arrivals_total", Help: "Number of viewer arrivals recorded"})
		Departures = promauto.NewCounter(prometheus.CounterOpts{Name: "presence_departures_total", Help: "Number of viewer departures recorded"})
		OrderingAnomalies = promauto.NewCounter(prometheus.CounterOpts{Name: "presence_ordering_anomalies_total", Help: "Number of out-of-order snapshots/events observed"})
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "presence_poll_cycles_total", Help: "Number of chatters poll cycles completed"})
		PollFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "presence_poll_failures_total", Help: "Number of chatters poll cycles that failed upstream"})
		ChatEvents = promauto.NewCounter(prometheus.CounterOpts{Name: "presence_chat_events_total", Help: "Number of IRC join/part/message events ingested"})
		PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "presence_poll_duration_seconds", Help: "Chatters poll cycle duration seconds", Buckets: prometheus.DefBuckets})
		WatchingGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "presence_watching", Help: "Current number of tracked viewers"})
	})
}

// IncArrivals increments the arrivals counter if metrics are initialized.
func IncArrivals() {
	if Arrivals != nil {
		Arrivals.Inc()
	}
}

// IncDepartures increments the departures counter if metrics are initialized.
func IncDepartures() {
	if Departures != nil {
		Departures.Inc()
	}
}

// IncOrderingAnomalies counts an out-of-order snapshot or event.
func IncOrderingAnomalies() {
	if OrderingAnomalies != nil {
		OrderingAnomalies.Inc()
	}
}

// IncPollCycles counts a completed poll cycle.
func IncPollCycles() {
	if PollCycles != nil {
		PollCycles.Inc()
	}
}

// IncPollFailures counts a poll cycle that failed before ingestion.
func IncPollFailures() {
	if PollFailures != nil {
		PollFailures.Inc()
	}
}

// IncChatEvents counts an ingested IRC event.
func IncChatEvents() {
	if ChatEvents != nil {
		ChatEvents.Inc()
	}
}

// SetWatching records the current tracked viewer count.
func SetWatching(n int) {
	if WatchingGauge != nil {
		WatchingGauge.Set(float64(n))
	}
}

// ObservePollDuration records a poll cycle duration.
func ObservePollDuration(d time.Duration) {
	if PollDuration != nil {
		PollDuration.Observe(d.Seconds())
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}

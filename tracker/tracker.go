package tracker

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wrenolds/lurkwatch/telemetry"
)

// Observer is invoked for every lifecycle transition (arrival and departure),
// after tracker state has been updated but still inside the serialized
// ingestion call. Implementations must not call back into the tracker and
// should hand off anything slow (e.g. DB writes) to their own goroutine.
type Observer func(HistoryEntry)

// Options configure a Tracker.
type Options struct {
	// Bots are usernames never tracked as viewers. Matching is
	// case-insensitive and exact.
	Bots []string
	// LogArrivals controls whether arrivals are appended to History.
	// Departures are always appended.
	LogArrivals bool
	// HistoryCap bounds History and RecentlyLeft growth; oldest entries are
	// dropped. 0 means unbounded.
	HistoryCap int
	Observer   Observer
}

// Tracker owns all presence state for one channel. All mutation goes through
// IngestSnapshot/IngestEvent under a single mutex; readers get detached
// copies via Snapshot. Ingestion never blocks on I/O.
type Tracker struct {
	mu          sync.Mutex
	bots        map[string]struct{}
	logArrivals bool
	historyCap  int
	observer    Observer

	current      map[string]*ViewerRecord // keyed by lowercase username
	left         []ViewerRecord
	history      []HistoryEntry
	prevSnapshot map[string]string // lowercase key -> display casing, bot-filtered
	lastObserved time.Time
	primed       bool // true once the first snapshot has been applied
}

// New constructs a Tracker with the given options.
func New(opts Options) *Tracker {
	bots := make(map[string]struct{}, len(opts.Bots))
	for _, b := range opts.Bots {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" {
			bots[b] = struct{}{}
		}
	}
	return &Tracker{
		bots:         bots,
		logArrivals:  opts.LogArrivals,
		historyCap:   opts.HistoryCap,
		observer:     opts.Observer,
		current:      make(map[string]*ViewerRecord),
		prevSnapshot: make(map[string]string),
	}
}

// excluded reports whether a username matches the bot list.
// Single source of truth for both ingestion paths.
func (t *Tracker) excluded(username string) bool {
	_, ok := t.bots[strings.ToLower(username)]
	return ok
}

// IngestSnapshot diffs a full who-is-here-now set against the previous one
// and applies the resulting arrivals and departures. The returned slices are
// the bot-filtered diff (display casing preserved) and are intended for
// logging and tests; they are computed before reconciling with records that
// may already exist via the event path.
//
// A snapshot older than the last applied observation is an ordering anomaly:
// it is rejected whole, leaving state untouched.
func (t *Tracker) IngestSnapshot(usernames []string, observedAt time.Time) (arrived, departed []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastObserved.IsZero() && observedAt.Before(t.lastObserved) {
		telemetry.IncOrderingAnomalies()
		slog.Warn("snapshot out of order; rejected",
			slog.Time("observed_at", observedAt),
			slog.Time("last_observed", t.lastObserved))
		return nil, nil
	}

	// Collapse duplicates and drop bots up front; keep display casing.
	observed := make(map[string]string, len(usernames))
	for _, name := range usernames {
		name = strings.TrimSpace(name)
		if name == "" || t.excluded(name) {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := observed[key]; !ok {
			observed[key] = name
		}
	}

	method := MethodPoll
	if !t.primed {
		method = MethodInitial
	}

	for key, display := range observed {
		if _, inPrev := t.prevSnapshot[key]; inPrev {
			continue
		}
		arrived = append(arrived, display)
		if _, tracked := t.current[key]; !tracked {
			t.arrive(key, display, method, observedAt)
		}
	}
	for key, display := range t.prevSnapshot {
		if _, stillHere := observed[key]; stillHere {
			continue
		}
		if rec, tracked := t.current[key]; tracked {
			departed = append(departed, rec.Username)
			t.depart(key, observedAt)
		} else {
			// Already untracked (e.g. parted via IRC); report the departure
			// with the casing the snapshot originally carried.
			departed = append(departed, display)
		}
	}

	t.prevSnapshot = observed
	t.lastObserved = observedAt
	t.primed = true

	sort.Strings(arrived)
	sort.Strings(departed)
	return arrived, departed
}

// IngestEvent applies a discrete join/part/message signal. Out-of-order
// events are counted as anomalies but still applied; any duration that would
// come out negative is left unknown instead.
func (t *Tracker) IngestEvent(username string, kind EventKind, observedAt time.Time) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	username = strings.TrimSpace(username)
	if username == "" || t.excluded(username) {
		return OutcomeExcluded
	}
	if !t.lastObserved.IsZero() && observedAt.Before(t.lastObserved) {
		telemetry.IncOrderingAnomalies()
		slog.Warn("event out of order",
			slog.String("user", username),
			slog.String("kind", kind.String()),
			slog.Time("observed_at", observedAt),
			slog.Time("last_observed", t.lastObserved))
	} else {
		t.lastObserved = observedAt
	}

	key := strings.ToLower(username)
	switch kind {
	case EventJoin:
		if _, tracked := t.current[key]; tracked {
			return OutcomeAlreadyPresent
		}
		t.arrive(key, username, MethodIRCJoin, observedAt)
		return OutcomeCreated
	case EventPart:
		if _, tracked := t.current[key]; !tracked {
			slog.Debug("part for untracked user", slog.String("user", username))
			return OutcomeNotPresent
		}
		t.depart(key, observedAt)
		return OutcomeDeparted
	case EventMessage:
		if rec, tracked := t.current[key]; tracked {
			rec.LastActivity = observedAt
			return OutcomeAlreadyPresent
		}
		t.arrive(key, username, MethodChatMessage, observedAt)
		return OutcomeCreated
	case EventFollow:
		if _, tracked := t.current[key]; tracked {
			return OutcomeAlreadyPresent
		}
		t.arrive(key, username, MethodFollow, observedAt)
		return OutcomeCreated
	}
	return OutcomeNotPresent
}

// arrive creates a fresh Watching record. Caller holds the lock and has
// verified the username is neither excluded nor already tracked.
func (t *Tracker) arrive(key, display string, method DetectionMethod, observedAt time.Time) {
	rec := &ViewerRecord{
		Username:     display,
		JoinedAt:     observedAt,
		Method:       method,
		LastActivity: observedAt,
		Status:       StatusWatching,
	}
	t.current[key] = rec
	entry := HistoryEntry{ViewerRecord: *rec, Action: ActionArrived}
	if t.logArrivals {
		t.appendHistory(entry)
	}
	telemetry.IncArrivals()
	telemetry.SetWatching(len(t.current))
	if t.observer != nil {
		t.observer(entry)
	}
	slog.Info("viewer arrived", slog.String("user", display), slog.String("method", string(method)))
}

// depart moves a record out of current, computing its duration. Caller holds
// the lock and has verified the record exists.
func (t *Tracker) depart(key string, observedAt time.Time) {
	rec := t.current[key]
	delete(t.current, key)

	leftAt := observedAt
	rec.LeftAt = &leftAt
	rec.Status = StatusLeft
	if !observedAt.Before(rec.JoinedAt) {
		d := observedAt.Sub(rec.JoinedAt).Truncate(time.Second)
		rec.Duration = &d
	} else {
		telemetry.IncOrderingAnomalies()
		slog.Warn("departure before join; duration unknown",
			slog.String("user", rec.Username),
			slog.Time("joined_at", rec.JoinedAt),
			slog.Time("left_at", observedAt))
	}

	t.left = append(t.left, *rec)
	if t.historyCap > 0 && len(t.left) > t.historyCap {
		t.left = t.left[len(t.left)-t.historyCap:]
	}
	entry := HistoryEntry{ViewerRecord: *rec, Action: ActionLeft}
	t.appendHistory(entry)
	telemetry.IncDepartures()
	telemetry.SetWatching(len(t.current))
	if t.observer != nil {
		t.observer(entry)
	}
	slog.Info("viewer left", slog.String("user", rec.Username), slog.Duration("watched", durationOrZero(rec.Duration)))
}

func (t *Tracker) appendHistory(entry HistoryEntry) {
	t.history = append(t.history, entry)
	if t.historyCap > 0 && len(t.history) > t.historyCap {
		t.history = t.history[len(t.history)-t.historyCap:]
	}
}

// Snapshot returns a detached copy of tracker state. Current viewers are
// ordered by join time (then name) for stable display.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := make([]ViewerRecord, 0, len(t.current))
	for _, rec := range t.current {
		current = append(current, *rec)
	}
	sort.Slice(current, func(i, j int) bool {
		if !current[i].JoinedAt.Equal(current[j].JoinedAt) {
			return current[i].JoinedAt.Before(current[j].JoinedAt)
		}
		return current[i].Username < current[j].Username
	})

	left := make([]ViewerRecord, len(t.left))
	copy(left, t.left)
	history := make([]HistoryEntry, len(t.history))
	copy(history, t.history)

	return State{
		Current:      current,
		RecentlyLeft: left,
		History:      history,
		Stats: Stats{
			Watching: len(current),
			Left:     len(left),
			History:  len(history),
		},
	}
}

func durationOrZero(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}

// Package tracker maintains who is currently watching a Twitch channel.
// It consumes raw presence signals from the snapshot poller and the IRC
// listener, derives arrival/departure records with durations, filters
// configured bots, and exposes a copy-on-read view for the HTTP layer.
package tracker

import "time"

// DetectionMethod records how an arrival was discovered.
type DetectionMethod string

const (
	// MethodInitial marks viewers found by the very first snapshot after
	// startup; they were already in chat before we started watching.
	MethodInitial DetectionMethod = "already-present"
	// MethodPoll marks viewers discovered by a Helix chatters poll.
	MethodPoll DetectionMethod = "poll"
	// MethodIRCJoin marks viewers discovered by an IRC JOIN.
	MethodIRCJoin DetectionMethod = "irc-join"
	// MethodChatMessage marks viewers discovered by a chat message before
	// any explicit join or poll saw them.
	MethodChatMessage DetectionMethod = "chat-message"
	// MethodFollow marks viewers discovered by a recent channel follow.
	MethodFollow DetectionMethod = "follow"
)

// Status is the lifecycle state of a ViewerRecord.
type Status string

const (
	StatusWatching Status = "watching"
	StatusLeft     Status = "left"
)

// Action discriminates history entries.
type Action string

const (
	ActionArrived Action = "arrived"
	ActionLeft    Action = "left"
)

// EventKind is a discrete presence signal from an event-driven transport.
type EventKind int

const (
	EventJoin EventKind = iota
	EventPart
	EventMessage
	EventFollow
)

func (k EventKind) String() string {
	switch k {
	case EventJoin:
		return "join"
	case EventPart:
		return "part"
	case EventMessage:
		return "message"
	case EventFollow:
		return "follow"
	}
	return "unknown"
}

// Outcome reports what a discrete event did to tracker state.
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomeDeparted       Outcome = "departed"
	OutcomeExcluded       Outcome = "excluded"
	OutcomeNotPresent     Outcome = "not_present"
)

// ViewerRecord is one viewer's lifecycle. JoinedAt/LeftAt are UTC instants;
// formatting into the display timezone happens at the HTTP boundary.
// Duration is nil while watching, and stays nil after departure when an
// ordering anomaly made it uncomputable (never negative).
type ViewerRecord struct {
	Username     string
	JoinedAt     time.Time
	Method       DetectionMethod
	LastActivity time.Time
	LeftAt       *time.Time
	Duration     *time.Duration
	Status       Status
}

// HistoryEntry is a ViewerRecord frozen at a lifecycle transition.
type HistoryEntry struct {
	ViewerRecord
	Action Action
}

// Stats are aggregate counts for the stats endpoint.
type Stats struct {
	Watching int `json:"watching_count"`
	Left     int `json:"left_count"`
	History  int `json:"history_count"`
}

// State is a detached read-only view of tracker state. Slices are copies;
// mutating them does not affect the tracker.
type State struct {
	Current      []ViewerRecord
	RecentlyLeft []ViewerRecord
	History      []HistoryEntry
	Stats        Stats
}
